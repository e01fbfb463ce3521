package service

import (
	"context"
	"time"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type TermFeeStatus struct {
	HasPaidTermFees bool
	// LastPaymentDate is the latest matching payment regardless of the window,
	// so an admin still sees when a currently-unpaid student last paid.
	LastPaymentDate *time.Time
}

// DeriveTermFeeStatus computes a student's paid-up state as of a point in time.
// A payment counts when it covers term fees, succeeded, and targets the student
// directly or guardian-wide (nil student id). HasPaidTermFees is true iff any
// counting payment falls inside [asOf-window, asOf]; it is an OR over items,
// not a check on the latest one, so out-of-order ledger rows cannot suppress an
// in-window hit.
func DeriveTermFeeStatus(payments []*entity.Payment, studentID uint64, asOf time.Time, window time.Duration) TermFeeStatus {
	windowStart := asOf.Add(-window)

	var result TermFeeStatus
	for _, payment := range payments {
		if payment == nil || !payment.PaidTermFees || payment.Status != entity.StatusSucceeded {
			continue
		}
		if payment.StudentID != nil && *payment.StudentID != studentID {
			continue
		}

		created := payment.CreatedAt
		if result.LastPaymentDate == nil || created.After(*result.LastPaymentDate) {
			last := created
			result.LastPaymentDate = &last
		}
		if !created.Before(windowStart) && !created.After(asOf) {
			result.HasPaidTermFees = true
		}
	}
	return result
}

// GetPaymentStatus derives a student's term-fee status from the full ledger
// history. asOf is explicit to keep the rolling window deterministic.
func (s *BillingService) GetPaymentStatus(ctx context.Context, studentID uint64, asOf time.Time) (TermFeeStatus, error) {
	student, err := s.studentRepo.FindByID(ctx, studentID)
	if err != nil {
		return TermFeeStatus{}, err
	}
	if student == nil {
		return TermFeeStatus{}, ErrStudentNotFound
	}

	payments, err := s.paymentRepo.ListByStudent(ctx, student.GuardianID, studentID, nil)
	if err != nil {
		return TermFeeStatus{}, err
	}

	window := time.Duration(s.billingCfg.StatusWindowDays) * 24 * time.Hour
	return DeriveTermFeeStatus(payments, studentID, asOf, window), nil
}
