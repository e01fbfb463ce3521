package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type TrialMetadataRequest struct {
	TrialEndDate    string `json:"trial_end_date"`
	PaymentMethodID string `json:"payment_method_id"`
	SelectTermFees  bool   `json:"select_term_fees"`
	SelectBooks     bool   `json:"select_books"`
}

type ManualMetadataRequest struct {
	Notes      string `json:"notes"`
	OperatorID uint64 `json:"operator_id"`
	Status     string `json:"status"`
}

type CreatePaymentRequest struct {
	GuardianID uint64  `json:"guardian_id"`
	StudentID  *uint64 `json:"student_id"`
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	Kind       string  `json:"kind"`

	Trial  *TrialMetadataRequest  `json:"trial"`
	Manual *ManualMetadataRequest `json:"manual"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Amount = strings.TrimSpace(body.Amount)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Kind = strings.ToLower(strings.TrimSpace(body.Kind))

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if r.GuardianID == 0 {
		return errors.New("guardian_id is required")
	}
	if _, err := r.ParsedAmount(); err != nil {
		return err
	}
	if r.Kind != "term_fees" && r.Kind != "books" && r.Kind != "full_payment" {
		return errors.New("kind must be term_fees, books, or full_payment")
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if (r.Trial == nil) == (r.Manual == nil) {
		return errors.New("exactly one of trial or manual metadata is required")
	}
	if r.Trial != nil {
		if strings.TrimSpace(r.Trial.PaymentMethodID) == "" {
			return errors.New("trial.payment_method_id is required")
		}
		if _, err := r.Trial.ParsedTrialEndDate(); err != nil {
			return err
		}
	}
	if r.Manual != nil {
		if r.Manual.OperatorID == 0 {
			return errors.New("manual.operator_id is required")
		}
		switch strings.ToLower(strings.TrimSpace(r.Manual.Status)) {
		case "", "pending", "succeeded":
		default:
			return errors.New("manual.status must be pending or succeeded")
		}
	}
	return nil
}

func (r *CreatePaymentRequest) ParsedAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return decimal.Zero, errors.New("amount must be a decimal number")
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, errors.New("amount must be > 0")
	}
	return amount, nil
}

func (r *TrialMetadataRequest) ParsedTrialEndDate() (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(r.TrialEndDate))
	if err != nil {
		return time.Time{}, errors.New("trial.trial_end_date must be RFC3339")
	}
	return parsed.UTC(), nil
}

type GetPaymentRequest struct {
	ID uint64
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{ID: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

type CorrectPaymentRequest struct {
	ID uint64 `json:"-"`

	Amount *string `json:"amount"`
	Status *string `json:"status"`
	Notes  string  `json:"notes"`
}

func NewCorrectPaymentRequestFromContext(ctx echo.Context) (*CorrectPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body CorrectPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = id
	body.Notes = strings.TrimSpace(body.Notes)

	return &body, nil
}

func (r *CorrectPaymentRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid payment id")
	}
	if r.Amount == nil && r.Status == nil {
		return errors.New("nothing to correct")
	}
	if r.Amount != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*r.Amount))
		if err != nil || amount.Sign() <= 0 {
			return errors.New("amount must be a positive decimal number")
		}
	}
	return nil
}

type ListPaymentsRequest struct {
	GuardianID uint64
	StudentID  uint64
	HasStatus  bool
	Status     int32
	StatusName string
	Kind       string
	Limit      int32
	Offset     int32
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		Kind:   strings.ToLower(strings.TrimSpace(ctx.QueryParam("kind"))),
		Limit:  100,
		Offset: 0,
	}

	if raw := strings.TrimSpace(ctx.QueryParam("guardian_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.GuardianID = id
	}
	if raw := strings.TrimSpace(ctx.QueryParam("student_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.StudentID = id
	}
	if raw := strings.TrimSpace(ctx.QueryParam("status")); raw != "" {
		req.HasStatus = true
		req.StatusName = raw
	}
	if raw := strings.TrimSpace(ctx.QueryParam("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}
	if raw := strings.TrimSpace(ctx.QueryParam("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.HasStatus {
		status, ok := entity.ParseStatus(r.StatusName)
		if !ok {
			return errors.New("invalid status")
		}
		r.Status = status
	}
	return nil
}

type PaymentStatusRequest struct {
	StudentID uint64
	AsOf      time.Time
}

func NewPaymentStatusRequestFromContext(ctx echo.Context) (*PaymentStatusRequest, error) {
	studentID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	req := &PaymentStatusRequest{StudentID: studentID, AsOf: time.Now().UTC()}
	if raw := strings.TrimSpace(ctx.QueryParam("as_of")); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("as_of must be RFC3339")
		}
		req.AsOf = asOf.UTC()
	}
	return req, nil
}

func (r *PaymentStatusRequest) Validate() error {
	if r.StudentID == 0 {
		return errors.New("invalid student id")
	}
	return nil
}

type SyncCustomersRequest struct {
	GuardianIDs []uint64 `json:"guardian_ids"`
}

func NewSyncCustomersRequestFromContext(ctx echo.Context) (*SyncCustomersRequest, error) {
	var body SyncCustomersRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

type GuardianSelectionRequest struct {
	GuardianID uint64                `json:"guardian_id"`
	StudentIDs []uint64              `json:"student_ids"`
	Books      []StudentBooksRequest `json:"books"`
}

type StudentBooksRequest struct {
	StudentID uint64   `json:"student_id"`
	BookIDs   []uint64 `json:"book_ids"`
}

type BulkInvoiceRequest struct {
	Scope           string                     `json:"scope"`
	Guardians       []GuardianSelectionRequest `json:"guardians"`
	InvoiceTermFees bool                       `json:"invoice_term_fees"`
	InvoiceBooks    bool                       `json:"invoice_books"`
	DaysUntilDue    int                        `json:"days_until_due"`
}

func NewBulkInvoiceRequestFromContext(ctx echo.Context) (*BulkInvoiceRequest, error) {
	var body BulkInvoiceRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Scope = strings.ToLower(strings.TrimSpace(body.Scope))
	return &body, nil
}

func (r *BulkInvoiceRequest) Validate() error {
	if r.Scope != "all" && r.Scope != "selected" {
		return errors.New("scope must be all or selected")
	}
	if r.Scope == "selected" && len(r.Guardians) == 0 {
		return errors.New("guardians is required when scope is selected")
	}
	if r.Scope == "all" && len(r.Guardians) > 0 {
		return errors.New("guardians is only valid when scope is selected")
	}
	if !r.InvoiceTermFees && !r.InvoiceBooks {
		return errors.New("at least one of invoice_term_fees or invoice_books is required")
	}
	if r.DaysUntilDue <= 0 {
		return errors.New("days_until_due must be > 0")
	}
	for _, g := range r.Guardians {
		if g.GuardianID == 0 {
			return errors.New("guardian_id is required for every selection")
		}
	}
	return nil
}

type ReconcileTrialsRequest struct {
	AsOf time.Time
}

func NewReconcileTrialsRequestFromContext(ctx echo.Context) (*ReconcileTrialsRequest, error) {
	req := &ReconcileTrialsRequest{AsOf: time.Now().UTC()}
	if raw := strings.TrimSpace(ctx.QueryParam("as_of")); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("as_of must be RFC3339")
		}
		req.AsOf = asOf.UTC()
	}
	return req, nil
}
