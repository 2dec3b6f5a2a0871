package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type OrderService interface {
	ExpireTempOrders(ctx context.Context, ttl time.Duration) (int64, error)
}

// TempOrderSweeper is worker that soft-deletes abandoned gateway checkouts.
type TempOrderSweeper struct {
	svc      OrderService
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewTempOrderSweeper creates new temp order sweeper
func NewTempOrderSweeper(svc OrderService, ttl, interval time.Duration, logger *zap.Logger) *TempOrderSweeper {
	return &TempOrderSweeper{svc: svc, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps until the context is cancelled.
func (ts *TempOrderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(ts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.logger.Debug("temp order sweeper is done")
			return
		case <-ticker.C:
			n, err := ts.svc.ExpireTempOrders(ctx, ts.ttl)
			if err != nil {
				ts.logger.Error("error expiring temp orders", zap.Error(err))
				continue
			}
			if n > 0 {
				ts.logger.Info("expired temp orders", zap.Int64("count", n))
			}
		}
	}
}
