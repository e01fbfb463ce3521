package entity

import "github.com/shopspring/decimal"

type Book struct {
	ID    uint64
	Title string
	Price decimal.Decimal
}
