package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment status codes. Transitions are one-way; see CanTransition.
const (
	StatusPending     int32 = 1
	StatusTrialActive int32 = 2
	StatusSucceeded   int32 = 10
	StatusFailed      int32 = 20
	StatusRefunded    int32 = 30
)

const (
	KindTermFees    = "term_fees"
	KindBooks       = "books"
	KindFullPayment = "full_payment"
)

var (
	ErrInvalidKind          = errors.New("invalid payment kind")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidTrialMetadata = errors.New("trial payments require a trial end date and a payment method")
	ErrInvalidMetadata      = errors.New("payment metadata must be exactly one of trial or manual")
)

type Payment struct {
	ID uint64

	GuardianID uint64
	// StudentID is nil for payments that apply to all of the guardian's students.
	StudentID *uint64

	// Amount is in decimal major units; minor-unit conversion happens at the
	// gateway boundary.
	Amount   decimal.Decimal
	Currency string
	Kind     string

	Status       int32
	PaidTermFees bool
	PaidForBooks bool

	ProviderChargeID  *string
	ProviderInvoiceID *string
	FailureMessage    *string

	// TrialEndDate mirrors Metadata.Trial.TrialEndDate so the trials-due query
	// stays on an indexed column.
	TrialEndDate *time.Time

	Metadata PaymentMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductSelection struct {
	TermFees bool `json:"term_fees"`
	Books    bool `json:"books"`
}

type TrialMetadata struct {
	TrialEndDate     time.Time        `json:"trial_end_date"`
	PaymentMethodID  string           `json:"payment_method_id"`
	ProductSelection ProductSelection `json:"product_selection"`
}

type ManualMetadata struct {
	Notes      string `json:"notes"`
	OperatorID uint64 `json:"operator_id"`
}

// PaymentMetadata is a tagged union: exactly one branch is set, depending on
// whether the payment originates from the trial-enrollment flow or an operator.
type PaymentMetadata struct {
	Trial  *TrialMetadata  `json:"trial,omitempty"`
	Manual *ManualMetadata `json:"manual,omitempty"`
}

func (m PaymentMetadata) Validate() error {
	if (m.Trial == nil) == (m.Manual == nil) {
		return ErrInvalidMetadata
	}
	if m.Trial != nil {
		if m.Trial.TrialEndDate.IsZero() || strings.TrimSpace(m.Trial.PaymentMethodID) == "" {
			return ErrInvalidTrialMetadata
		}
	}
	return nil
}

// NewTrialPayment records a trial enrollment: the charge is deferred until the
// trial end date passes and the reconciliation job converts it.
func NewTrialPayment(guardianID uint64, studentID *uint64, amount decimal.Decimal, currency, kind string, meta TrialMetadata, now time.Time) (*Payment, error) {
	if !validKind(kind) {
		return nil, ErrInvalidKind
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	metadata := PaymentMetadata{Trial: &meta}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	trialEnd := meta.TrialEndDate
	return &Payment{
		GuardianID:   guardianID,
		StudentID:    studentID,
		Amount:       amount,
		Currency:     strings.ToUpper(strings.TrimSpace(currency)),
		Kind:         kind,
		Status:       StatusTrialActive,
		TrialEndDate: &trialEnd,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewManualPayment records an operator-entered payment, e.g. cash received at
// the front desk. It may be created already succeeded.
func NewManualPayment(guardianID uint64, studentID *uint64, amount decimal.Decimal, currency, kind string, status int32, meta ManualMetadata, now time.Time) (*Payment, error) {
	if !validKind(kind) {
		return nil, ErrInvalidKind
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if status != StatusPending && status != StatusSucceeded {
		return nil, errors.New("manual payments start as pending or succeeded")
	}
	metadata := PaymentMetadata{Manual: &meta}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	p := &Payment{
		GuardianID: guardianID,
		StudentID:  studentID,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(currency)),
		Kind:       kind,
		Status:     status,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == StatusSucceeded {
		p.PaidTermFees = kind == KindTermFees || kind == KindFullPayment
		p.PaidForBooks = kind == KindBooks || kind == KindFullPayment
	}
	return p, nil
}

// CanTransition reports whether the status state machine allows from -> to.
// Succeeded never reverts to trial_active; failed and refunded are terminal.
func CanTransition(from, to int32) bool {
	switch from {
	case StatusPending:
		return to == StatusTrialActive || to == StatusSucceeded || to == StatusFailed
	case StatusTrialActive:
		return to == StatusSucceeded || to == StatusFailed
	case StatusSucceeded:
		return to == StatusRefunded
	default:
		return false
	}
}

func StatusName(status int32) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusTrialActive:
		return "trial_active"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

func ParseStatus(name string) (int32, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, true
	case "trial_active":
		return StatusTrialActive, true
	case "succeeded":
		return StatusSucceeded, true
	case "failed":
		return StatusFailed, true
	case "refunded":
		return StatusRefunded, true
	default:
		return 0, false
	}
}

func validKind(kind string) bool {
	switch kind {
	case KindTermFees, KindBooks, KindFullPayment:
		return true
	default:
		return false
	}
}
