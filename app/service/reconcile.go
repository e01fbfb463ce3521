package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
	"github.com/brightpath-edu/ms-go-billing/app/gateway"
	"github.com/brightpath-edu/ms-go-billing/app/repository"
)

const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeLedgerDrift = "ledger_drift"
)

type ReconcileOutcome struct {
	PaymentID uint64
	Outcome   string
	ChargeID  string
	Error     string
}

type ReconcileResult struct {
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	LedgerDrift int
	FirstError  string
	Outcomes    []ReconcileOutcome
}

// ReconcileTrials converts expired trial payments into real off-session
// charges. Items are processed sequentially; one item's failure never aborts
// the batch, and cancellation between items still returns the aggregate for
// what already ran. Because the query only matches trial_active rows, a re-run
// with no newly expired trials processes zero items.
func (s *BillingService) ReconcileTrials(ctx context.Context, asOf time.Time) (*ReconcileResult, error) {
	if err := s.ensureGateway(); err != nil {
		return nil, err
	}

	items, err := s.paymentRepo.ListTrialsDueBy(ctx, asOf, s.batchSize())
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := s.logger.WithField("run_id", runID)
	logger.WithField("due", len(items)).Info("trial reconciliation started")

	result := &ReconcileResult{Outcomes: make([]ReconcileOutcome, 0, len(items))}
	for _, payment := range items {
		if ctx.Err() != nil {
			logger.WithField("processed", result.Total).Info("trial reconciliation canceled")
			break
		}
		if payment == nil {
			continue
		}
		result.Total++
		outcome := s.reconcileTrial(ctx, payment, asOf, runID)
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.Outcome {
		case OutcomeSucceeded:
			result.Succeeded++
		case OutcomeFailed:
			result.Failed++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeLedgerDrift:
			result.LedgerDrift++
		}
		if outcome.Error != "" {
			result.FirstError = keepFirst(result.FirstError, outcome.Error)
		}
	}

	return result, nil
}

func (s *BillingService) reconcileTrial(ctx context.Context, payment *entity.Payment, asOf time.Time, runID string) ReconcileOutcome {
	trial := payment.Metadata.Trial
	if trial == nil || trial.PaymentMethodID == "" {
		return ReconcileOutcome{
			PaymentID: payment.ID,
			Outcome:   OutcomeSkipped,
			Error:     "payment method missing from trial metadata",
		}
	}

	guardian, err := s.guardianRepo.FindByID(ctx, payment.GuardianID)
	if err != nil {
		return ReconcileOutcome{PaymentID: payment.ID, Outcome: OutcomeFailed, Error: err.Error()}
	}
	if guardian == nil || !guardian.HasCustomerRef() {
		return ReconcileOutcome{
			PaymentID: payment.ID,
			Outcome:   OutcomeSkipped,
			Error:     "guardian has no gateway customer id",
		}
	}

	charge, err := s.gw.ChargeOffSession(ctx, &gateway.ChargeInput{
		CustomerID:       *guardian.CustomerRef,
		PaymentMethodID:  trial.PaymentMethodID,
		AmountMinorUnits: gateway.MinorUnits(payment.Amount),
		Currency:         payment.Currency,
		Metadata: map[string]string{
			"payment_id":  strconv.FormatUint(payment.ID, 10),
			"guardian_id": strconv.FormatUint(payment.GuardianID, 10),
			"run_id":      runID,
		},
	})
	if err != nil {
		return s.failTrial(ctx, payment, asOf, err.Error())
	}
	if !charge.Succeeded() {
		return s.failTrial(ctx, payment, asOf, fmt.Sprintf("charge not confirmed: status=%s id=%s", charge.Status, charge.ExternalID))
	}

	paidTermFees := trial.ProductSelection.TermFees
	paidForBooks := trial.ProductSelection.Books
	chargeID := charge.ExternalID
	patch := repository.StatusPatch{
		PaidTermFees:     &paidTermFees,
		PaidForBooks:     &paidForBooks,
		ProviderChargeID: &chargeID,
		UpdatedAt:        asOf,
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, entity.StatusTrialActive, entity.StatusSucceeded, patch); err != nil {
		// Money moved but the ledger disagrees. No automatic compensation;
		// the charge id in the log is the handle for a manual sweep.
		s.logger.WithError(err).
			WithField("payment_id", payment.ID).
			WithField("charge_id", chargeID).
			Error("ledger update failed after successful charge")
		return ReconcileOutcome{
			PaymentID: payment.ID,
			Outcome:   OutcomeLedgerDrift,
			ChargeID:  chargeID,
			Error:     fmt.Sprintf("charge %s succeeded but ledger update failed: %v", chargeID, err),
		}
	}

	oldStatus := payment.Status
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:   payment.ID,
		EventType:   "trial_converted",
		OldStatus:   &oldStatus,
		NewStatus:   entity.StatusSucceeded,
		ExternalRef: &chargeID,
		CreatedAt:   asOf,
	})

	s.notifyQuietly(ctx, guardian.Email, "Trial period ended",
		fmt.Sprintf("Your saved payment method was charged %s %s.", payment.Amount.StringFixed(2), payment.Currency))

	return ReconcileOutcome{PaymentID: payment.ID, Outcome: OutcomeSucceeded, ChargeID: chargeID}
}

func (s *BillingService) failTrial(ctx context.Context, payment *entity.Payment, asOf time.Time, message string) ReconcileOutcome {
	trimmed := truncate(message, 1024)
	patch := repository.StatusPatch{
		FailureMessage: &trimmed,
		UpdatedAt:      asOf,
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, entity.StatusTrialActive, entity.StatusFailed, patch); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).Error("failed to record trial charge failure")
		return ReconcileOutcome{
			PaymentID: payment.ID,
			Outcome:   OutcomeFailed,
			Error:     fmt.Sprintf("%s (ledger update also failed: %v)", message, err),
		}
	}

	oldStatus := payment.Status
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "trial_charge_failed",
		OldStatus: &oldStatus,
		NewStatus: entity.StatusFailed,
		CreatedAt: asOf,
	})

	return ReconcileOutcome{PaymentID: payment.ID, Outcome: OutcomeFailed, Error: message}
}
