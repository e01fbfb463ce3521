package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrStatusConflict  = errors.New("payment status changed concurrently")
)

const paymentColumns = `id, guardian_id, student_id, amount, currency, kind, status,
		paid_term_fees, paid_for_books,
		provider_charge_id, provider_invoice_id, failure_message,
		trial_end_date, metadata_json, created_at, updated_at`

type PaymentFilter struct {
	GuardianID uint64
	StudentID  uint64
	HasStatus  bool
	Status     int32
	Kind       string
	Limit      int32
	Offset     int32
}

// StatusPatch carries the fields a status transition may touch alongside the
// status column itself.
type StatusPatch struct {
	PaidTermFees     *bool
	PaidForBooks     *bool
	ProviderChargeID *string
	FailureMessage   *string
	UpdatedAt        time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	metadataJSON, err := serializeMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			guardian_id, student_id, amount, currency, kind, status,
			paid_term_fees, paid_for_books,
			provider_charge_id, provider_invoice_id, failure_message,
			trial_end_date, metadata_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.GuardianID,
		nullableUint64Value(payment.StudentID),
		payment.Amount,
		payment.Currency,
		payment.Kind,
		payment.Status,
		payment.PaidTermFees,
		payment.PaidForBooks,
		nullableStringValue(payment.ProviderChargeID),
		nullableStringValue(payment.ProviderInvoiceID),
		nullableStringValue(payment.FailureMessage),
		nullableTimeValue(payment.TrialEndDate),
		metadataJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// UpdateStatus transitions id from fromStatus to toStatus, applying patch in the
// same statement. The current-status predicate makes a transition happen at most
// once even under concurrent runs: a second writer hits zero rows and gets
// ErrStatusConflict.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uint64, fromStatus, toStatus int32, patch StatusPatch) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{toStatus, patch.UpdatedAt}

	if patch.PaidTermFees != nil {
		sets = append(sets, "paid_term_fees = ?")
		args = append(args, *patch.PaidTermFees)
	}
	if patch.PaidForBooks != nil {
		sets = append(sets, "paid_for_books = ?")
		args = append(args, *patch.PaidForBooks)
	}
	if patch.ProviderChargeID != nil {
		sets = append(sets, "provider_charge_id = ?")
		args = append(args, *patch.ProviderChargeID)
	}
	if patch.FailureMessage != nil {
		sets = append(sets, "failure_message = ?")
		args = append(args, *patch.FailureMessage)
	}

	query := "UPDATE payments SET " + strings.Join(sets, ", ") + " WHERE id = ? AND status = ?"
	args = append(args, id, fromStatus)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPaymentNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// Update rewrites the operator-editable fields. Status corrections go through
// UpdateStatus so the transition guard applies.
func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	metadataJSON, err := serializeMetadata(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			amount = ?,
			currency = ?,
			kind = ?,
			paid_term_fees = ?,
			paid_for_books = ?,
			failure_message = ?,
			metadata_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.Amount,
		payment.Currency,
		payment.Kind,
		payment.PaidTermFees,
		payment.PaidForBooks,
		nullableStringValue(payment.FailureMessage),
		metadataJSON,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListTrialsDueBy returns trial_active payments whose trial ended at or before
// cutoff. Already-transitioned rows fall out of the filter, which is what makes
// a reconciliation re-run a no-op.
func (r *PaymentRepository) ListTrialsDueBy(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND trial_end_date IS NOT NULL
		  AND trial_end_date <= ?
		ORDER BY trial_end_date ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.StatusTrialActive, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPayments(rows)
}

// ListByStudent returns the payments relevant to a student: rows targeting the
// student directly plus guardian-wide rows with a NULL student id. A nil window
// returns the full history.
func (r *PaymentRepository) ListByStudent(ctx context.Context, guardianID, studentID uint64, window *TimeWindow) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE (student_id = ? OR (student_id IS NULL AND guardian_id = ?))
	`
	args := []interface{}{studentID, guardianID}

	if window != nil {
		query += " AND created_at >= ? AND created_at <= ?"
		args = append(args, window.From, window.To)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPayments(rows)
}

func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`

	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.GuardianID > 0 {
		conditions = append(conditions, "guardian_id = ?")
		args = append(args, filter.GuardianID)
	}
	if filter.StudentID > 0 {
		conditions = append(conditions, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if strings.TrimSpace(filter.Kind) != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPayments(rows)
}

func (r *PaymentRepository) exists(ctx context.Context, id uint64) (bool, error) {
	var found uint64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM payments WHERE id = ?", id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type TimeWindow struct {
	From time.Time
	To   time.Time
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var studentID sql.NullInt64
	var amount decimal.Decimal
	var providerChargeID sql.NullString
	var providerInvoiceID sql.NullString
	var failureMessage sql.NullString
	var trialEndDate sql.NullTime
	var metadataJSON string

	err := scan.Scan(
		&payment.ID,
		&payment.GuardianID,
		&studentID,
		&amount,
		&payment.Currency,
		&payment.Kind,
		&payment.Status,
		&payment.PaidTermFees,
		&payment.PaidForBooks,
		&providerChargeID,
		&providerInvoiceID,
		&failureMessage,
		&trialEndDate,
		&metadataJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.StudentID = uint64PtrFromNull(studentID)
	payment.Amount = amount
	payment.ProviderChargeID = stringPtrFromNull(providerChargeID)
	payment.ProviderInvoiceID = stringPtrFromNull(providerInvoiceID)
	payment.FailureMessage = stringPtrFromNull(failureMessage)
	payment.TrialEndDate = timePtrFromNull(trialEndDate)

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	payment.Metadata = metadata

	return nil
}

func collectPayments(rows *sql.Rows) ([]*entity.Payment, error) {
	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
