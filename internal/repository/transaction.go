package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	insertTransactionQuery = `
						INSERT INTO transactions (id, from_id, from_name, to_id, to_name, amount, action_code,
						                          order_id, order_type, payment_id, items, note,
						                          from_balance, to_balance, status, delivered)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
						RETURNING created, modified
`
	selectByAccountQuery = `
						SELECT id, from_id, from_name, to_id, to_name, amount, action_code,
						       order_id, order_type, payment_id, items, note,
						       from_balance, to_balance, status, delivered, created, modified
						FROM transactions
						WHERE (from_id = $1 OR to_id = $1) AND status <> 'del' AND amount <> 0
						ORDER BY created ASC
`
	selectByOrderQuery = `
						SELECT id, from_id, from_name, to_id, to_name, amount, action_code,
						       order_id, order_type, payment_id, items, note,
						       from_balance, to_balance, status, delivered, created, modified
						FROM transactions
						WHERE order_id = $1
						ORDER BY created ASC
`
	voidByOrderQuery = `
						UPDATE transactions SET status = 'del', modified = now()
						WHERE order_id = $1 AND action_code = ANY($2) AND status <> 'del'
`
	setFromBalanceQuery = `UPDATE transactions SET from_balance = $2 WHERE id = $1`
	setToBalanceQuery   = `UPDATE transactions SET to_balance = $2 WHERE id = $1`
)

// TransactionRepository implements ledger data access
type TransactionRepository struct {
	db *postgres.DB
}

// NewTransactionRepository creates new TransactionRepository instance
func NewTransactionRepository(db *postgres.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// insertTransaction performs the double-entry insert within q: the from
// account gains amount, the to account loses it, and both new balances are
// persisted on the entry as snapshots. Rolls back as a unit when either
// account is missing.
func insertTransaction(ctx context.Context, q postgres.Querier, tr *models.Transaction) error {
	amount := models.RoundMoney(tr.Amount)

	fromBalance, err := applyBalance(ctx, q, tr.FromID, amount)
	if err != nil {
		return err
	}
	toBalance, err := applyBalance(ctx, q, tr.ToID, -amount)
	if err != nil {
		return err
	}

	tr.Amount = amount
	tr.FromBalance = fromBalance
	tr.ToBalance = toBalance
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}

	items, err := json.Marshal(itemsOrEmpty(tr.Items))
	if err != nil {
		return err
	}

	return q.QueryRow(ctx, insertTransactionQuery,
		tr.ID, tr.FromID, tr.FromName, tr.ToID, tr.ToName, tr.Amount, tr.ActionCode,
		tr.OrderID, tr.OrderType, tr.PaymentID, items, tr.Note,
		tr.FromBalance, tr.ToBalance, tr.Status, nullTime(tr.Delivered),
	).Scan(&tr.Created, &tr.Modified)
}

// Insert appends a transaction and updates both account balances in one
// database transaction.
func (tr *TransactionRepository) Insert(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	err := tr.db.WithinTx(ctx, func(tx pgx.Tx) error {
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByAccount returns all non-void entries touching the account, sorted by
// created ascending. Used by balance replay.
func (tr *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	rows, err := tr.db.Query(ctx, selectByAccountQuery, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListByOrder returns all entries recorded against the order, voided included.
func (tr *TransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Transaction, error) {
	rows, err := tr.db.Query(ctx, selectByOrderQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// VoidByOrder marks the order's entries with the given action codes as
// logically deleted. Voided entries are excluded from balance replay.
func (tr *TransactionRepository) VoidByOrder(ctx context.Context, orderID string, actionCodes []string) error {
	_, err := tr.db.Exec(ctx, voidByOrderQuery, orderID, actionCodes)
	return err
}

// ApplyReplay rewrites running balance snapshots and the account's cached
// balance in one database transaction.
func (tr *TransactionRepository) ApplyReplay(ctx context.Context, accountID string, snaps []models.BalanceSnapshot, balance float64) error {
	return tr.db.WithinTx(ctx, func(tx pgx.Tx) error {
		for _, s := range snaps {
			query := setToBalanceQuery
			if s.FromSide {
				query = setFromBalanceQuery
			}
			if _, err := tx.Exec(ctx, query, s.TransactionID, s.Balance); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, setBalanceQuery, accountID, balance)
		return err
	})
}

func scanTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	var trs []models.Transaction

	for rows.Next() {
		t := models.Transaction{}
		var items []byte
		var delivered *time.Time
		err := rows.Scan(&t.ID, &t.FromID, &t.FromName, &t.ToID, &t.ToName, &t.Amount, &t.ActionCode,
			&t.OrderID, &t.OrderType, &t.PaymentID, &items, &t.Note,
			&t.FromBalance, &t.ToBalance, &t.Status, &delivered, &t.Created, &t.Modified)
		if err != nil {
			return nil, err
		}
		if delivered != nil {
			t.Delivered = *delivered
		}
		_ = json.Unmarshal(items, &t.Items)
		trs = append(trs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trs, nil
}

func itemsOrEmpty(items []models.OrderItem) []models.OrderItem {
	if items == nil {
		return []models.OrderItem{}
	}
	return items
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
