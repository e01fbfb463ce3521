package types

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

func newJSONContext(t *testing.T, method, target, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestNewCreatePaymentRequestFromContextNormalizesFields(t *testing.T) {
	ctx := newJSONContext(t, "POST", "/billing/payments",
		`{"guardian_id":1,"amount":" 200.00 ","currency":"usd","kind":"Term_Fees","trial":{"trial_end_date":"2026-09-14T00:00:00Z","payment_method_id":"pm_1"}}`)

	parsed, err := NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", parsed.Currency)
	}
	if parsed.Kind != "term_fees" {
		t.Fatalf("expected lower-cased kind, got %q", parsed.Kind)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	amount, err := parsed.ParsedAmount()
	if err != nil {
		t.Fatalf("parsed amount failed: %v", err)
	}
	if amount.String() != "200" {
		t.Fatalf("expected amount 200, got %s", amount)
	}

	trialEnd, err := parsed.Trial.ParsedTrialEndDate()
	if err != nil {
		t.Fatalf("parsed trial end date failed: %v", err)
	}
	if !trialEnd.Equal(time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected trial end date %v", trialEnd)
	}
}

func TestCreatePaymentRequestValidate(t *testing.T) {
	base := func() *CreatePaymentRequest {
		return &CreatePaymentRequest{
			GuardianID: 1,
			Amount:     "200.00",
			Kind:       "term_fees",
			Manual:     &ManualMetadataRequest{OperatorID: 7},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req := base()
	req.GuardianID = 0
	if err := req.Validate(); err == nil {
		t.Fatal("expected guardian_id validation error")
	}

	req = base()
	req.Amount = "-5"
	if err := req.Validate(); err == nil {
		t.Fatal("expected amount validation error")
	}

	req = base()
	req.Kind = "uniforms"
	if err := req.Validate(); err == nil {
		t.Fatal("expected kind validation error")
	}

	req = base()
	req.Trial = &TrialMetadataRequest{TrialEndDate: "2026-09-14T00:00:00Z", PaymentMethodID: "pm_1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected error when both trial and manual are set")
	}

	req = base()
	req.Manual = nil
	if err := req.Validate(); err == nil {
		t.Fatal("expected error when neither trial nor manual is set")
	}

	req = base()
	req.Manual.Status = "refunded"
	if err := req.Validate(); err == nil {
		t.Fatal("expected manual status validation error")
	}

	req = base()
	req.Manual = nil
	req.Trial = &TrialMetadataRequest{TrialEndDate: "tomorrow", PaymentMethodID: "pm_1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected trial end date validation error")
	}
}

func TestNewListPaymentsRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/billing/payments?guardian_id=3&status=succeeded&limit=20", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GuardianID != 3 || parsed.Limit != 20 {
		t.Fatalf("unexpected parsed request %+v", parsed)
	}
	if !parsed.HasStatus || parsed.Status != entity.StatusSucceeded {
		t.Fatalf("expected succeeded status filter, got %+v", parsed)
	}
}

func TestListPaymentsRequestRejectsUnknownStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/billing/payments?status=archived", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected status validation error")
	}
}

func TestCorrectPaymentRequestValidate(t *testing.T) {
	amount := "175.00"
	status := "refunded"

	req := &CorrectPaymentRequest{ID: 1, Amount: &amount, Status: &status}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req = &CorrectPaymentRequest{ID: 1}
	if err := req.Validate(); err == nil {
		t.Fatal("expected error when nothing is corrected")
	}

	bad := "0"
	req = &CorrectPaymentRequest{ID: 1, Amount: &bad}
	if err := req.Validate(); err == nil {
		t.Fatal("expected amount validation error")
	}
}

func TestNewPaymentStatusRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/billing/students/10/status?as_of=2026-06-01T12:00:00Z", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")

	parsed, err := NewPaymentStatusRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.StudentID != 10 {
		t.Fatalf("unexpected student id %d", parsed.StudentID)
	}
	if !parsed.AsOf.Equal(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected as_of %v", parsed.AsOf)
	}
}

func TestPaymentStatusRequestDefaultsAsOfToNow(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/billing/students/10/status", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("10")

	before := time.Now().UTC()
	parsed, err := NewPaymentStatusRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.AsOf.Before(before) || parsed.AsOf.After(time.Now().UTC()) {
		t.Fatalf("expected as_of to default to now, got %v", parsed.AsOf)
	}
}

func TestBulkInvoiceRequestValidate(t *testing.T) {
	valid := &BulkInvoiceRequest{Scope: "all", InvoiceTermFees: true, DaysUntilDue: 14}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cases := []struct {
		name string
		req  BulkInvoiceRequest
	}{
		{"unknown scope", BulkInvoiceRequest{Scope: "some", InvoiceTermFees: true, DaysUntilDue: 14}},
		{"selected without guardians", BulkInvoiceRequest{Scope: "selected", InvoiceTermFees: true, DaysUntilDue: 14}},
		{"all with guardians", BulkInvoiceRequest{Scope: "all", Guardians: []GuardianSelectionRequest{{GuardianID: 1}}, InvoiceTermFees: true, DaysUntilDue: 14}},
		{"no items", BulkInvoiceRequest{Scope: "all", DaysUntilDue: 14}},
		{"zero days until due", BulkInvoiceRequest{Scope: "all", InvoiceTermFees: true}},
		{"zero guardian id", BulkInvoiceRequest{Scope: "selected", Guardians: []GuardianSelectionRequest{{}}, InvoiceTermFees: true, DaysUntilDue: 14}},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewReconcileTrialsRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/billing/trials/reconcile?as_of=2026-06-01T03:00:00Z", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewReconcileTrialsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !parsed.AsOf.Equal(time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected as_of %v", parsed.AsOf)
	}

	req = httptest.NewRequest("POST", "/billing/trials/reconcile?as_of=yesterday", nil)
	ctx = e.NewContext(req, httptest.NewRecorder())
	if _, err := NewReconcileTrialsRequestFromContext(ctx); err == nil {
		t.Fatal("expected as_of parse error")
	}
}
