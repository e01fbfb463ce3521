package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type ChargeInput struct {
	CustomerID       string
	PaymentMethodID  string
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

type ChargeResult struct {
	Status     string
	ExternalID string
}

func (r *ChargeResult) Succeeded() bool {
	return r != nil && r.Status == "succeeded"
}

type LineItem struct {
	Description      string
	AmountMinorUnits int64
}

type InvoiceInput struct {
	CustomerID   string
	Currency     string
	LineItems    []LineItem
	DaysUntilDue int
	// AutoCollect asks the processor to charge the customer's default payment
	// method; otherwise the invoice is emailed and left open for manual payment.
	AutoCollect bool
	Metadata    map[string]string
}

// Invoice is gateway-owned; only the id is persisted locally for correlation.
type Invoice struct {
	ID        string
	Status    string
	AmountDue int64
	HostedURL string
	DueDate   *time.Time
}

type Gateway interface {
	CreateCustomer(ctx context.Context, guardian *entity.Guardian) (string, error)
	ValidateCustomer(ctx context.Context, customerID string) (bool, error)
	ChargeOffSession(ctx context.Context, input *ChargeInput) (*ChargeResult, error)
	CreateInvoice(ctx context.Context, input *InvoiceInput) (*Invoice, error)
}

// Error is any processor-side rejection: 4xx, 5xx, or a transport failure.
// There is no built-in retry; callers record the failure and move on.
type Error struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway request failed: path=%s status=%d body=%s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway request failed: path=%s err=%s", e.Path, e.Message)
}

// MinorUnits converts a ledger major-unit amount to the integral minor units
// the processor expects, e.g. 200.00 -> 20000.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
