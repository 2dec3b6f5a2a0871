package repository

import (
	"context"
	"errors"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	selectCreditByPaymentQuery = `
						SELECT id, account_id, account_name, amount, payment_method, payment_id, note, status, created
						FROM client_credits
						WHERE payment_id = $1
`
	insertCreditQuery = `
						INSERT INTO client_credits (id, account_id, account_name, amount, payment_method, payment_id, note, status)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
						RETURNING created
`
	markCreditPaidQuery = `
						UPDATE client_credits SET status = 'P'
						WHERE id = $1 AND status = 'U'
`
)

// CreditRepository implements client credit data access
type CreditRepository struct {
	db *postgres.DB
}

// NewCreditRepository creates new CreditRepository instance
func NewCreditRepository(db *postgres.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetByPaymentID returns the pending credit record for the payment id
func (cr *CreditRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.ClientCredit, error) {
	c := models.ClientCredit{}
	err := cr.db.QueryRow(ctx, selectCreditByPaymentQuery, paymentID).Scan(&c.ID, &c.AccountID, &c.AccountName,
		&c.Amount, &c.PaymentMethod, &c.PaymentID, &c.Note, &c.Status, &c.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &c, nil
}

// CreateCredit inserts a pending top-up awaiting gateway confirmation
func (cr *CreditRepository) CreateCredit(ctx context.Context, c *models.ClientCredit) (*models.ClientCredit, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.PaymentStatusUnpaid
	}
	err := cr.db.QueryRow(ctx, insertCreditQuery, c.ID, c.AccountID, c.AccountName, c.Amount,
		c.PaymentMethod, c.PaymentID, c.Note, c.Status).Scan(&c.Created)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// markCreditPaid flips an unpaid credit to paid within q.
func markCreditPaid(ctx context.Context, q postgres.Querier, creditID string) error {
	_, err := q.Exec(ctx, markCreditPaidQuery, creditID)
	return err
}
