package repository

import (
	"context"
)

type PostgresAccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) AccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT credit_balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		return 0, mapErr(err)
	}
	return balance, nil
}

func (r *PostgresAccountRepository) GetRole(ctx context.Context, accountID string) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM accounts WHERE id = $1`, accountID).Scan(&role)
	if err != nil {
		return "", mapErr(err)
	}
	return role, nil
}
