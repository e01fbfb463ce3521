package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TrialMetadata struct {
	TrialEndDate    string `json:"trial_end_date"`
	PaymentMethodID string `json:"payment_method_id"`
	SelectTermFees  bool   `json:"select_term_fees"`
	SelectBooks     bool   `json:"select_books"`
}

type ManualMetadata struct {
	Notes      string `json:"notes"`
	OperatorID uint64 `json:"operator_id"`
}

type Payment struct {
	ID               uint64          `json:"id"`
	GuardianID       uint64          `json:"guardian_id"`
	StudentID        *uint64         `json:"student_id,omitempty"`
	Amount           string          `json:"amount"`
	Currency         string          `json:"currency"`
	Kind             string          `json:"kind"`
	Status           string          `json:"status"`
	PaidTermFees     bool            `json:"paid_term_fees"`
	PaidForBooks     bool            `json:"paid_for_books"`
	ProviderChargeID string          `json:"provider_charge_id,omitempty"`
	FailureMessage   string          `json:"failure_message,omitempty"`
	Trial            *TrialMetadata  `json:"trial,omitempty"`
	Manual           *ManualMetadata `json:"manual,omitempty"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
}

type PaymentStatusResponse struct {
	StudentID       uint64 `json:"student_id"`
	HasPaidTermFees bool   `json:"has_paid_term_fees"`
	LastPaymentDate string `json:"last_payment_date,omitempty"`
}

type ReconcileOutcomeResponse struct {
	PaymentID uint64 `json:"payment_id"`
	Outcome   string `json:"outcome"`
	ChargeID  string `json:"charge_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ReconcileTrialsResponse struct {
	Total       int                        `json:"total"`
	Succeeded   int                        `json:"succeeded"`
	Failed      int                        `json:"failed"`
	Skipped     int                        `json:"skipped"`
	LedgerDrift int                        `json:"ledger_drift"`
	FirstError  string                     `json:"first_error,omitempty"`
	Outcomes    []ReconcileOutcomeResponse `json:"outcomes"`
}

type SyncCustomersResponse struct {
	Total      int    `json:"total"`
	Valid      int    `json:"valid"`
	Invalid    int    `json:"invalid"`
	Recreated  int    `json:"recreated"`
	Failed     int    `json:"failed"`
	FirstError string `json:"first_error,omitempty"`
}

type GuardianOutcomeResponse struct {
	GuardianID uint64 `json:"guardian_id"`
	Outcome    string `json:"outcome"`
	InvoiceID  string `json:"invoice_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BulkInvoiceResponse struct {
	Total      int                       `json:"total"`
	Succeeded  int                       `json:"succeeded"`
	Failed     int                       `json:"failed"`
	Skipped    int                       `json:"skipped"`
	FirstError string                    `json:"first_error,omitempty"`
	Outcomes   []GuardianOutcomeResponse `json:"outcomes"`
}
