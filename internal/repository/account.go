package repository

import (
	"context"
	"errors"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	selectAccountQuery = `
						SELECT id, name, type, balance, created, modified FROM accounts
						WHERE id = $1
`
	insertAccountQuery = `
						INSERT INTO accounts (id, name, type, balance)
						VALUES ($1, $2, $3, $4)
						ON CONFLICT (id) DO NOTHING
`
	// applied inside the same transaction as the ledger insert, so the
	// read-balance-then-write race of concurrent settlements cannot occur
	applyBalanceQuery = `
						UPDATE accounts
						SET balance = round((balance + $2)::numeric, 2)::double precision, modified = now()
						WHERE id = $1
						RETURNING balance
`
	setBalanceQuery = `
						UPDATE accounts SET balance = $2, modified = now()
						WHERE id = $1
`
)

// AccountRepository implements account-related data access
type AccountRepository struct {
	db *postgres.DB
}

// NewAccountRepository creates new account repository instance
func NewAccountRepository(db *postgres.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetAccount returns account by id
func (ar *AccountRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	acc := models.Account{}
	err := ar.db.QueryRow(ctx, selectAccountQuery, id).Scan(&acc.ID, &acc.Name, &acc.Type, &acc.Balance, &acc.Created, &acc.Modified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &acc, nil
}

// EnsureAccount inserts the account when missing. Used to seed the system
// ledger accounts at startup.
func (ar *AccountRepository) EnsureAccount(ctx context.Context, acc *models.Account) error {
	_, err := ar.db.Exec(ctx, insertAccountQuery, acc.ID, acc.Name, acc.Type, acc.Balance)
	return err
}

// applyBalance increments the account balance within q and returns the new
// value. Missing account maps to ErrDataNotFound.
func applyBalance(ctx context.Context, q postgres.Querier, accountID string, amount float64) (float64, error) {
	var balance float64
	err := q.QueryRow(ctx, applyBalanceQuery, accountID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrDataNotFound
		}
		return 0, err
	}
	return balance, nil
}
