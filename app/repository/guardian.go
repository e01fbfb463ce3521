package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

var ErrGuardianNotFound = errors.New("guardian not found")

const guardianColumns = `id, first_name, last_name, email, customer_ref,
		has_default_payment_method, created_at, updated_at`

type GuardianRepository struct {
	db DBTX
}

func NewGuardianRepository(db DBTX) *GuardianRepository {
	return &GuardianRepository{db: db}
}

func (r *GuardianRepository) FindByID(ctx context.Context, id uint64) (*entity.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE id = ?`

	guardian := &entity.Guardian{}
	if err := scanGuardian(r.db.QueryRowContext(ctx, query, id), guardian); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return guardian, nil
}

// List returns the guardians with the given ids, or every guardian when ids is
// empty.
func (r *GuardianRepository) List(ctx context.Context, ids []uint64) ([]*entity.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians`
	args := make([]interface{}, 0, len(ids))

	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " WHERE id IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guardians := make([]*entity.Guardian, 0)
	for rows.Next() {
		item := &entity.Guardian{}
		if err := scanGuardian(rows, item); err != nil {
			return nil, err
		}
		guardians = append(guardians, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return guardians, nil
}

// UpdateCustomerRef persists (or clears, when ref is nil) a guardian's gateway
// customer id.
func (r *GuardianRepository) UpdateCustomerRef(ctx context.Context, id uint64, ref *string) error {
	query := `UPDATE guardians SET customer_ref = ?, updated_at = NOW() WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, nullableStringValue(ref), id)
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
			return ErrGuardianNotFound
		}
	}
	return nil
}

func (r *GuardianRepository) exists(ctx context.Context, id uint64) (bool, error) {
	var found uint64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM guardians WHERE id = ?", id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanGuardian(scan rowScanner, guardian *entity.Guardian) error {
	var customerRef sql.NullString

	err := scan.Scan(
		&guardian.ID,
		&guardian.FirstName,
		&guardian.LastName,
		&guardian.Email,
		&customerRef,
		&guardian.HasDefaultPaymentMethod,
		&guardian.CreatedAt,
		&guardian.UpdatedAt,
	)
	if err != nil {
		return err
	}

	guardian.CustomerRef = stringPtrFromNull(customerRef)
	return nil
}
