package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type BookRepository struct {
	db DBTX
}

func NewBookRepository(db DBTX) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) ListByIDs(ctx context.Context, ids []uint64) ([]*entity.Book, error) {
	if len(ids) == 0 {
		return []*entity.Book{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, title, price FROM books WHERE id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBooks(rows)
}

func collectBooks(rows *sql.Rows) ([]*entity.Book, error) {
	books := make([]*entity.Book, 0)
	for rows.Next() {
		item := &entity.Book{}
		var price decimal.Decimal
		if err := rows.Scan(&item.ID, &item.Title, &price); err != nil {
			return nil, err
		}
		item.Price = price
		books = append(books, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
