package entity

import "strings"

type Student struct {
	ID         uint64
	GuardianID uint64

	FirstName string
	LastName  string
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
