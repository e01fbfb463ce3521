package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type StudentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) FindByID(ctx context.Context, id uint64) (*entity.Student, error) {
	query := `SELECT id, guardian_id, first_name, last_name FROM students WHERE id = ?`

	student := &entity.Student{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&student.ID,
		&student.GuardianID,
		&student.FirstName,
		&student.LastName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (r *StudentRepository) ListByGuardian(ctx context.Context, guardianID uint64) ([]*entity.Student, error) {
	query := `SELECT id, guardian_id, first_name, last_name FROM students WHERE guardian_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStudents(rows)
}

func (r *StudentRepository) ListByIDs(ctx context.Context, ids []uint64) ([]*entity.Student, error) {
	if len(ids) == 0 {
		return []*entity.Student{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, guardian_id, first_name, last_name FROM students WHERE id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStudents(rows)
}

func collectStudents(rows *sql.Rows) ([]*entity.Student, error) {
	students := make([]*entity.Student, 0)
	for rows.Next() {
		item := &entity.Student{}
		if err := rows.Scan(&item.ID, &item.GuardianID, &item.FirstName, &item.LastName); err != nil {
			return nil, err
		}
		students = append(students, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return students, nil
}
