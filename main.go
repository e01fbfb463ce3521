package main

import "github.com/brightpath-edu/ms-go-billing/cmd"

func main() {
	cmd.Execute()
}
