package entity

import (
	"strings"
	"time"
)

type Guardian struct {
	ID uint64

	FirstName string
	LastName  string
	Email     string

	// CustomerRef is the payment gateway's customer id. Zero-or-one per
	// guardian; once assigned it stays stable until the synchronizer finds it
	// invalid and clears it.
	CustomerRef *string

	HasDefaultPaymentMethod bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *Guardian) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

func (g *Guardian) HasCustomerRef() bool {
	return g.CustomerRef != nil && strings.TrimSpace(*g.CustomerRef) != ""
}
