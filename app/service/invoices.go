package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
	"github.com/brightpath-edu/ms-go-billing/app/gateway"
)

// InvoiceScope selects the guardians a bulk run targets: every guardian with a
// valid customer id, or an explicit selection with optional student subsets.
type InvoiceScope struct {
	All       bool
	Guardians []GuardianSelection
}

type GuardianSelection struct {
	GuardianID uint64
	// StudentIDs nil means all of the guardian's students.
	StudentIDs []uint64
	// BookSelections maps a student id to the explicitly chosen book ids.
	// Books are never invoiced without an explicit per-student selection.
	BookSelections map[uint64][]uint64
}

type InvoiceItems struct {
	TermFees bool
	Books    bool
}

type GuardianOutcome struct {
	GuardianID uint64
	Outcome    string
	InvoiceID  string
	Error      string
}

type BulkInvoiceResult struct {
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	FirstError string
	Outcomes   []GuardianOutcome
}

// CreateBulkInvoices creates one gateway invoice per in-scope guardian. With
// scope=all, guardians lacking a valid customer id are filtered out before the
// batch and never counted; with an explicit selection they are a failure, since
// the caller asked for them by id. One guardian's failure never aborts the
// batch. Whether the processor auto-collects or leaves the invoice open for
// manual payment depends on the guardian's default payment method and is the
// gateway's business.
func (s *BillingService) CreateBulkInvoices(ctx context.Context, scope InvoiceScope, items InvoiceItems, daysUntilDue int) (*BulkInvoiceResult, error) {
	if err := s.ensureGateway(); err != nil {
		return nil, err
	}
	if !items.TermFees && !items.Books {
		return nil, ErrInvalidRequest
	}
	if daysUntilDue <= 0 {
		return nil, ErrInvalidRequest
	}

	selections, err := s.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := s.logger.WithField("run_id", runID)
	logger.WithField("guardians", len(selections)).Info("bulk invoicing started")

	result := &BulkInvoiceResult{Outcomes: make([]GuardianOutcome, 0, len(selections))}
	for _, selection := range selections {
		if ctx.Err() != nil {
			logger.WithField("processed", result.Total).Info("bulk invoicing canceled")
			break
		}

		result.Total++
		outcome := s.invoiceGuardian(ctx, selection, items, daysUntilDue, runID)
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.Outcome {
		case OutcomeSucceeded:
			result.Succeeded++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if outcome.Error != "" {
			result.FirstError = keepFirst(result.FirstError, outcome.Error)
		}
	}

	return result, nil
}

func (s *BillingService) resolveScope(ctx context.Context, scope InvoiceScope) ([]GuardianSelection, error) {
	if !scope.All {
		if len(scope.Guardians) == 0 {
			return nil, ErrInvalidRequest
		}
		return scope.Guardians, nil
	}

	guardians, err := s.guardianRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	selections := make([]GuardianSelection, 0, len(guardians))
	for _, guardian := range guardians {
		if guardian == nil || !guardian.HasCustomerRef() {
			continue
		}
		selections = append(selections, GuardianSelection{GuardianID: guardian.ID})
	}
	return selections, nil
}

func (s *BillingService) invoiceGuardian(ctx context.Context, selection GuardianSelection, items InvoiceItems, daysUntilDue int, runID string) GuardianOutcome {
	guardian, err := s.guardianRepo.FindByID(ctx, selection.GuardianID)
	if err != nil {
		return GuardianOutcome{GuardianID: selection.GuardianID, Outcome: OutcomeFailed, Error: err.Error()}
	}
	if guardian == nil {
		return GuardianOutcome{GuardianID: selection.GuardianID, Outcome: OutcomeFailed, Error: "guardian not found"}
	}
	if !guardian.HasCustomerRef() {
		return GuardianOutcome{GuardianID: selection.GuardianID, Outcome: OutcomeFailed, Error: "guardian has no gateway customer id"}
	}

	students, err := s.includedStudents(ctx, guardian.ID, selection.StudentIDs)
	if err != nil {
		return GuardianOutcome{GuardianID: guardian.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}

	lineItems, err := s.buildLineItems(ctx, students, selection, items)
	if err != nil {
		return GuardianOutcome{GuardianID: guardian.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}
	if len(lineItems) == 0 {
		// Nothing to bill; an empty invoice helps nobody.
		return GuardianOutcome{GuardianID: guardian.ID, Outcome: OutcomeSkipped}
	}

	invoice, err := s.gw.CreateInvoice(ctx, &gateway.InvoiceInput{
		CustomerID:   *guardian.CustomerRef,
		Currency:     s.billingCfg.Currency,
		LineItems:    lineItems,
		DaysUntilDue: daysUntilDue,
		AutoCollect:  guardian.HasDefaultPaymentMethod,
		Metadata: map[string]string{
			"guardian_id": strconv.FormatUint(guardian.ID, 10),
			"run_id":      runID,
		},
	})
	if err != nil {
		return GuardianOutcome{GuardianID: guardian.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}

	s.notifyQuietly(ctx, guardian.Email, "New invoice",
		fmt.Sprintf("An invoice for %s has been issued to your account.", guardian.FullName()))

	return GuardianOutcome{GuardianID: guardian.ID, Outcome: OutcomeSucceeded, InvoiceID: invoice.ID}
}

func (s *BillingService) includedStudents(ctx context.Context, guardianID uint64, studentIDs []uint64) ([]*entity.Student, error) {
	if studentIDs == nil {
		return s.studentRepo.ListByGuardian(ctx, guardianID)
	}

	students, err := s.studentRepo.ListByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	included := make([]*entity.Student, 0, len(students))
	for _, student := range students {
		if student.GuardianID != guardianID {
			return nil, fmt.Errorf("student %d does not belong to guardian %d", student.ID, guardianID)
		}
		included = append(included, student)
	}
	return included, nil
}

func (s *BillingService) buildLineItems(ctx context.Context, students []*entity.Student, selection GuardianSelection, items InvoiceItems) ([]gateway.LineItem, error) {
	lineItems := make([]gateway.LineItem, 0, 1+len(students))

	if items.TermFees && len(students) > 0 {
		lineItems = append(lineItems, gateway.LineItem{
			Description:      fmt.Sprintf("Term fees x%d", len(students)),
			AmountMinorUnits: s.billingCfg.TermFeeCents * int64(len(students)),
		})
	}

	if items.Books {
		for _, student := range students {
			bookIDs := selection.BookSelections[student.ID]
			if len(bookIDs) == 0 {
				continue
			}
			books, err := s.bookRepo.ListByIDs(ctx, bookIDs)
			if err != nil {
				return nil, err
			}
			if len(books) != len(bookIDs) {
				return nil, fmt.Errorf("unknown book selection for student %d", student.ID)
			}

			total := decimal.Zero
			for _, book := range books {
				total = total.Add(book.Price)
			}
			if total.Sign() <= 0 {
				continue
			}
			lineItems = append(lineItems, gateway.LineItem{
				Description:      fmt.Sprintf("Books for %s", student.FullName()),
				AmountMinorUnits: gateway.MinorUnits(total),
			})
		}
	}

	return lineItems, nil
}
