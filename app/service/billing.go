package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
	"github.com/brightpath-edu/ms-go-billing/app/factory"
	"github.com/brightpath-edu/ms-go-billing/app/gateway"
	"github.com/brightpath-edu/ms-go-billing/app/notify"
	"github.com/brightpath-edu/ms-go-billing/app/repository"
	"github.com/brightpath-edu/ms-go-billing/config"
)

const defaultListLimit = int32(100)

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	UpdateStatus(ctx context.Context, id uint64, fromStatus, toStatus int32, patch repository.StatusPatch) error
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	ListTrialsDueBy(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
	ListByStudent(ctx context.Context, guardianID, studentID uint64, window *repository.TimeWindow) ([]*entity.Payment, error)
	List(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type guardianRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Guardian, error)
	List(ctx context.Context, ids []uint64) ([]*entity.Guardian, error)
	UpdateCustomerRef(ctx context.Context, id uint64, ref *string) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Student, error)
	ListByGuardian(ctx context.Context, guardianID uint64) ([]*entity.Student, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]*entity.Student, error)
}

type bookRepository interface {
	ListByIDs(ctx context.Context, ids []uint64) ([]*entity.Book, error)
}

type BillingService struct {
	paymentRepo  paymentRepository
	eventRepo    paymentEventRepository
	guardianRepo guardianRepository
	studentRepo  studentRepository
	bookRepo     bookRepository
	gw           gateway.Gateway
	gwConfigured bool
	notifier     notify.Sender
	billingCfg   config.BillingConfig
	logger       logrus.FieldLogger
}

func NewBillingService(
	paymentRepo paymentRepository,
	eventRepo paymentEventRepository,
	guardianRepo guardianRepository,
	studentRepo studentRepository,
	bookRepo bookRepository,
	gw gateway.Gateway,
	gwConfigured bool,
	notifier notify.Sender,
	billingCfg config.BillingConfig,
) *BillingService {
	return &BillingService{
		paymentRepo:  paymentRepo,
		eventRepo:    eventRepo,
		guardianRepo: guardianRepo,
		studentRepo:  studentRepo,
		bookRepo:     bookRepo,
		gw:           gw,
		gwConfigured: gwConfigured,
		notifier:     notifier,
		billingCfg:   billingCfg,
		logger:       factory.NewModuleLogger("billing-service"),
	}
}

type CreatePaymentInput struct {
	GuardianID uint64
	StudentID  *uint64
	Amount     decimal.Decimal
	Currency   string
	Kind       string

	// Exactly one of Trial / Manual is set.
	Trial  *entity.TrialMetadata
	Manual *entity.ManualMetadata

	// ManualStatus applies to manual payments only: pending or succeeded.
	ManualStatus int32
}

func (s *BillingService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*entity.Payment, error) {
	guardian, err := s.guardianRepo.FindByID(ctx, input.GuardianID)
	if err != nil {
		return nil, err
	}
	if guardian == nil {
		return nil, ErrGuardianNotFound
	}

	if input.StudentID != nil {
		student, err := s.studentRepo.FindByID(ctx, *input.StudentID)
		if err != nil {
			return nil, err
		}
		if student == nil || student.GuardianID != input.GuardianID {
			return nil, ErrStudentNotFound
		}
	}

	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = s.billingCfg.Currency
	}

	now := time.Now().UTC()
	var payment *entity.Payment
	switch {
	case input.Trial != nil && input.Manual == nil:
		payment, err = entity.NewTrialPayment(input.GuardianID, input.StudentID, input.Amount, currency, input.Kind, *input.Trial, now)
	case input.Manual != nil && input.Trial == nil:
		status := input.ManualStatus
		if status == 0 {
			status = entity.StatusSucceeded
		}
		payment, err = entity.NewManualPayment(input.GuardianID, input.StudentID, input.Amount, currency, input.Kind, status, *input.Manual, now)
	default:
		return nil, entity.ErrInvalidMetadata
	}
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: "payment_created",
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	return payment, nil
}

func (s *BillingService) GetPayment(ctx context.Context, id uint64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *BillingService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	return s.paymentRepo.List(ctx, filter)
}

type CorrectPaymentInput struct {
	PaymentID uint64

	// Amount, when set, replaces the recorded amount.
	Amount *decimal.Decimal
	// Status, when set, must be a transition the state machine allows.
	Status *int32
	// Notes is appended to manual metadata when present.
	Notes string
}

// CorrectPayment applies an operator correction. Status changes go through the
// guarded transition so succeeded can never silently revert.
func (s *BillingService) CorrectPayment(ctx context.Context, input CorrectPaymentInput) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	now := time.Now().UTC()

	if input.Amount != nil {
		if input.Amount.Sign() <= 0 {
			return nil, entity.ErrInvalidAmount
		}
		payment.Amount = *input.Amount
		if input.Notes != "" && payment.Metadata.Manual != nil {
			payment.Metadata.Manual.Notes = input.Notes
		}
		payment.UpdatedAt = now
		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, err
		}
	}

	if input.Status != nil && *input.Status != payment.Status {
		if !entity.CanTransition(payment.Status, *input.Status) {
			return nil, ErrInvalidTransition
		}
		oldStatus := payment.Status
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, oldStatus, *input.Status, repository.StatusPatch{UpdatedAt: now}); err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, err
		}
		payment.Status = *input.Status
		payment.UpdatedAt = now

		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentID: payment.ID,
			EventType: "operator_correction",
			OldStatus: &oldStatus,
			NewStatus: payment.Status,
			CreatedAt: now,
		})
	}

	return payment, nil
}

func (s *BillingService) ensureGateway() error {
	if !s.gwConfigured {
		return ErrGatewayNotConfigured
	}
	return nil
}

func (s *BillingService) batchSize() int32 {
	if s.billingCfg.JobBatchSize > 0 {
		return s.billingCfg.JobBatchSize
	}
	return 100
}

// notifyQuietly delivers a notification without letting a sender failure leak
// into the payment or invoice outcome.
func (s *BillingService) notifyQuietly(ctx context.Context, recipient, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, recipient, subject, body); err != nil {
		s.logger.WithError(err).WithField("recipient", recipient).Warn("notification send failed")
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func keepFirst(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}
