package repository

import (
	"context"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const insertClaimQuery = `
						INSERT INTO settlement_claims (payment_id, action_code, amount, charge_ref)
						VALUES ($1, $2, $3, $4)
						ON CONFLICT (payment_id) DO NOTHING
`

// SettlementRepository applies a settlement batch atomically.
type SettlementRepository struct {
	db *postgres.DB
}

// NewSettlementRepository creates new SettlementRepository instance
func NewSettlementRepository(db *postgres.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Settle writes the claim, ledger entries, credit/order status flips and
// forced stock decrements in a single database transaction. A payment id
// that was already claimed returns ErrAlreadySettled with no effects, which
// makes redelivered gateway notifications harmless.
func (sr *SettlementRepository) Settle(ctx context.Context, batch *models.SettlementBatch) error {
	return sr.db.WithinTx(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, insertClaimQuery, batch.PaymentID, batch.ActionCode, models.RoundMoney(batch.Amount), batch.ChargeRef)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return models.ErrAlreadySettled
		}

		for _, entry := range batch.Entries {
			if err := insertTransaction(ctx, tx, entry); err != nil {
				return err
			}
		}

		if batch.CreditID != "" {
			if err := markCreditPaid(ctx, tx, batch.CreditID); err != nil {
				return err
			}
		}

		if len(batch.PaidOrderIDs) > 0 {
			if err := markOrdersPaid(ctx, tx, batch.PaidOrderIDs); err != nil {
				return err
			}
		}

		if len(batch.StockDeltas) > 0 {
			// payment has definitively moved; deficits are recorded, not rejected
			if _, err := adjustStock(ctx, tx, batch.StockDeltas, true); err != nil {
				return err
			}
		}

		return nil
	})
}
