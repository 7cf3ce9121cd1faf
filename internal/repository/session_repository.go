package repository

import (
	"context"
	"time"

	"designlens/internal/domain/session"
	lens_errors "designlens/pkg/errors"
)

type PostgresSessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) SessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s session.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO analysis_sessions (id, account_id, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AccountID, s.Name, s.CreatedAt, s.UpdatedAt)
	return mapErr(err)
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (session.Session, error) {
	var s session.Session
	err := r.db.QueryRow(ctx,
		`SELECT id::text, account_id, name, created_at, updated_at FROM analysis_sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.AccountID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return session.Session{}, mapErr(err)
	}
	return s, nil
}

// ListByAccount returns the most recently active sessions first.
func (r *PostgresSessionRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]session.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id::text, account_id, name, created_at, updated_at
		   FROM analysis_sessions
		  WHERE account_id = $1
		  ORDER BY updated_at DESC
		  LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]session.Session, 0)
	for rows.Next() {
		var s session.Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresSessionRepository) Rename(ctx context.Context, id, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE analysis_sessions SET name = $2, updated_at = $3 WHERE id = $1`, id, name, time.Now().UTC())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return lens_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) Touch(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE analysis_sessions SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return lens_errors.ErrNotFound
	}
	return nil
}
