package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

func TestCreateBulkInvoicesScopeAllFiltersUnlinkedGuardians(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(
		linkedGuardian(1, "cus_1"),
		&entity.Guardian{ID: 2, Email: "unlinked@example.com"},
	)
	studentRepo := newFakeStudentRepo(
		&entity.Student{ID: 10, GuardianID: 1},
		&entity.Student{ID: 11, GuardianID: 1},
	)
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), gw)

	result, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{TermFees: true}, 14)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Total != 1 || result.Succeeded != 1 {
		t.Fatalf("guardian without a customer id must be filtered out under scope all, got %+v", result)
	}

	if len(gw.invoices) != 1 {
		t.Fatalf("expected one invoice, got %d", len(gw.invoices))
	}
	invoice := gw.invoices[0]
	if len(invoice.LineItems) != 1 {
		t.Fatalf("expected a single term fee line, got %d", len(invoice.LineItems))
	}
	if invoice.LineItems[0].AmountMinorUnits != 30000 {
		t.Fatalf("two students at 15000 minor units each must total 30000, got %d", invoice.LineItems[0].AmountMinorUnits)
	}
	if invoice.DaysUntilDue != 14 {
		t.Fatalf("expected 14 days until due, got %d", invoice.DaysUntilDue)
	}
}

func TestCreateBulkInvoicesSelectedGuardianWithoutRefFails(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(&entity.Guardian{ID: 1, Email: "unlinked@example.com"})
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, newFakeStudentRepo(), newFakeBookRepo(), newFakeGateway())

	scope := InvoiceScope{Guardians: []GuardianSelection{{GuardianID: 1}}}
	result, err := svc.CreateBulkInvoices(context.Background(), scope, InvoiceItems{TermFees: true}, 14)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Total != 1 || result.Failed != 1 {
		t.Fatalf("explicitly selected guardian without a customer id is a failure, got %+v", result)
	}
	if result.FirstError == "" {
		t.Fatal("expected the failure reason surfaced")
	}
}

func TestCreateBulkInvoicesOneOutcomePerSelectedGuardian(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(
		linkedGuardian(1, "cus_1"),
		linkedGuardian(2, "cus_2"),
		linkedGuardian(3, "cus_3"),
	)
	studentRepo := newFakeStudentRepo(
		&entity.Student{ID: 10, GuardianID: 1},
		&entity.Student{ID: 20, GuardianID: 2},
		&entity.Student{ID: 30, GuardianID: 3},
	)
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), gw)

	scope := InvoiceScope{Guardians: []GuardianSelection{{GuardianID: 1}, {GuardianID: 2}, {GuardianID: 3}}}
	result, err := svc.CreateBulkInvoices(context.Background(), scope, InvoiceItems{TermFees: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Total != 3 || len(result.Outcomes) != 3 {
		t.Fatalf("expected one outcome record per selected guardian, got %+v", result)
	}
	if result.Succeeded != 3 {
		t.Fatalf("expected three invoices, got %+v", result)
	}
}

func TestCreateBulkInvoicesFailureIsolation(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(
		linkedGuardian(1, "cus_1"),
		linkedGuardian(2, "cus_2"),
		linkedGuardian(3, "cus_3"),
	)
	studentRepo := newFakeStudentRepo(
		&entity.Student{ID: 10, GuardianID: 1},
		&entity.Student{ID: 20, GuardianID: 2},
		&entity.Student{ID: 30, GuardianID: 3},
	)
	gw := newFakeGateway()
	gw.invoiceErrFor["cus_2"] = errors.New("invoice rejected")
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), gw)

	result, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{TermFees: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("one rejected invoice must not block the others, got %+v", result)
	}
	if !strings.Contains(result.FirstError, "invoice rejected") {
		t.Fatalf("expected first error to surface the rejection, got %q", result.FirstError)
	}
}

func TestCreateBulkInvoicesZeroLineItemsSkipped(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(linkedGuardian(1, "cus_1"))
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, newFakeStudentRepo(), newFakeBookRepo(), gw)

	result, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{TermFees: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Total != 1 || result.Skipped != 1 {
		t.Fatalf("guardian with no students yields nothing to bill, got %+v", result)
	}
	if len(gw.invoices) != 0 {
		t.Fatal("no empty invoice may reach the gateway")
	}
}

func TestCreateBulkInvoicesBooksRequireExplicitSelection(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(linkedGuardian(1, "cus_1"))
	studentRepo := newFakeStudentRepo(
		&entity.Student{ID: 10, GuardianID: 1, FirstName: "Amina"},
		&entity.Student{ID: 11, GuardianID: 1, FirstName: "Brian"},
	)
	bookRepo := newFakeBookRepo(
		&entity.Book{ID: 100, Title: "Mathematics 5", Price: money("12.50")},
		&entity.Book{ID: 101, Title: "English 5", Price: money("9.75")},
	)
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, bookRepo, gw)

	scope := InvoiceScope{Guardians: []GuardianSelection{{
		GuardianID:     1,
		BookSelections: map[uint64][]uint64{10: {100, 101}},
	}}}
	result, err := svc.CreateBulkInvoices(context.Background(), scope, InvoiceItems{Books: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected one invoice, got %+v", result)
	}

	invoice := gw.invoices[0]
	if len(invoice.LineItems) != 1 {
		t.Fatalf("student without a book selection gets no line, got %d lines", len(invoice.LineItems))
	}
	if invoice.LineItems[0].AmountMinorUnits != 2225 {
		t.Fatalf("12.50 + 9.75 must total 2225 minor units, got %d", invoice.LineItems[0].AmountMinorUnits)
	}
}

func TestCreateBulkInvoicesUnknownBookFailsGuardian(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(linkedGuardian(1, "cus_1"))
	studentRepo := newFakeStudentRepo(&entity.Student{ID: 10, GuardianID: 1})
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), gw)

	scope := InvoiceScope{Guardians: []GuardianSelection{{
		GuardianID:     1,
		BookSelections: map[uint64][]uint64{10: {999}},
	}}}
	result, err := svc.CreateBulkInvoices(context.Background(), scope, InvoiceItems{Books: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Failed != 1 || len(gw.invoices) != 0 {
		t.Fatalf("unknown book id must fail the guardian before the gateway, got %+v", result)
	}
}

func TestCreateBulkInvoicesStudentOfAnotherGuardianFails(t *testing.T) {
	guardianRepo := newFakeGuardianRepo(linkedGuardian(1, "cus_1"))
	studentRepo := newFakeStudentRepo(&entity.Student{ID: 20, GuardianID: 2})
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), newFakeGateway())

	scope := InvoiceScope{Guardians: []GuardianSelection{{GuardianID: 1, StudentIDs: []uint64{20}}}}
	result, err := svc.CreateBulkInvoices(context.Background(), scope, InvoiceItems{TermFees: true}, 7)
	if err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("selecting another guardian's student must fail, got %+v", result)
	}
}

func TestCreateBulkInvoicesAutoCollectFollowsDefaultPaymentMethod(t *testing.T) {
	withMethod := linkedGuardian(1, "cus_1")
	withMethod.HasDefaultPaymentMethod = true
	withoutMethod := linkedGuardian(2, "cus_2")

	guardianRepo := newFakeGuardianRepo(withMethod, withoutMethod)
	studentRepo := newFakeStudentRepo(
		&entity.Student{ID: 10, GuardianID: 1},
		&entity.Student{ID: 20, GuardianID: 2},
	)
	gw := newFakeGateway()
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, guardianRepo, studentRepo, newFakeBookRepo(), gw)

	if _, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{TermFees: true}, 7); err != nil {
		t.Fatalf("bulk invoices failed: %v", err)
	}
	if len(gw.invoices) != 2 {
		t.Fatalf("expected two invoices, got %d", len(gw.invoices))
	}
	for _, invoice := range gw.invoices {
		wantAuto := invoice.CustomerID == "cus_1"
		if invoice.AutoCollect != wantAuto {
			t.Fatalf("customer %s: auto collect must follow the default payment method", invoice.CustomerID)
		}
	}
}

func TestCreateBulkInvoicesValidatesInput(t *testing.T) {
	svc := newBillingServiceForTest(newFakePaymentRepo(), &fakeEventRepo{}, newFakeGuardianRepo(), newFakeStudentRepo(), newFakeBookRepo(), newFakeGateway())

	if _, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{}, 7); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty items, got %v", err)
	}
	if _, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{All: true}, InvoiceItems{TermFees: true}, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for zero days until due, got %v", err)
	}
	if _, err := svc.CreateBulkInvoices(context.Background(), InvoiceScope{}, InvoiceItems{TermFees: true}, 7); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an empty selection, got %v", err)
	}
}
