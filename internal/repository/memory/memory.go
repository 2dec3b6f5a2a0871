// Package memory holds an in-memory implementation of the repository
// interfaces used by the service layer tests. Semantics mirror the SQL
// repositories, settlement atomicity included.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duocun/marketplace/internal/models"
	"github.com/google/uuid"
)

// Store keeps all entities behind one mutex so a settlement batch applies
// atomically, the way the SQL layer applies it in one transaction.
type Store struct {
	mu sync.RWMutex

	accounts map[string]*models.Account
	products map[string]*models.Product
	orders   map[string]*models.Order
	trs      []*models.Transaction
	credits  map[string]*models.ClientCredit
	claims   map[string]bool

	codeSeq int64
	last    time.Time
}

// NewStore creates new empty Store instance
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		credits:  make(map[string]*models.ClientCredit),
		claims:   make(map[string]bool),
	}
}

// now returns strictly increasing timestamps so replay order is stable.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// ---- accounts ----

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *Store) EnsureAccount(ctx context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return nil
	}
	cp := *acc
	cp.Created = s.now()
	cp.Modified = cp.Created
	s.accounts[acc.ID] = &cp
	return nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return models.ErrConflictData
	}
	cp := *p
	if p.Stock != nil {
		stock := *p.Stock
		cp.Stock = &stock
	}
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) GetActiveProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.Status != models.ProductStatusActive {
		return nil, models.ErrDataNotFound
	}
	cp := *p
	if p.Stock != nil {
		stock := *p.Stock
		cp.Stock = &stock
	}
	return &cp, nil
}

func (s *Store) AdjustStock(ctx context.Context, deltas []models.StockDelta, force bool) ([]models.StockReject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustStockLocked(deltas, force)
}

// adjustStockLocked applies all deltas or none.
func (s *Store) adjustStockLocked(deltas []models.StockDelta, force bool) ([]models.StockReject, error) {
	var rejects []models.StockReject
	for _, d := range deltas {
		p, ok := s.products[d.ProductID]
		if !ok || p.Status != models.ProductStatusActive {
			return nil, &models.ProductNotFoundError{ProductID: d.ProductID}
		}
		if p.Stock == nil || !p.Stock.Enabled {
			continue
		}
		if p.Stock.Quantity-abs(d.Quantity) < 0 && !p.Stock.AllowNegative && !force {
			rejects = append(rejects, models.StockReject{ProductID: d.ProductID, ProductName: p.Name, Quantity: p.Stock.Quantity})
		}
	}
	if len(rejects) > 0 {
		return rejects, nil
	}

	for _, d := range deltas {
		p := s.products[d.ProductID]
		if p.Stock == nil || !p.Stock.Enabled {
			continue
		}
		p.Stock.Quantity -= abs(d.Quantity)
	}
	return nil, nil
}

func (s *Store) ReleaseStock(ctx context.Context, deltas []models.StockDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deltas {
		p, ok := s.products[d.ProductID]
		if !ok || p.Stock == nil || !p.Stock.Enabled {
			continue
		}
		p.Stock.Quantity += abs(d.Quantity)
	}
	return nil
}

// ---- orders ----

func (s *Store) NextCode(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codeSeq++
	return fmt.Sprintf("%06d", s.codeSeq), nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, ok := s.orders[order.ID]; ok {
		return nil, models.ErrConflictData
	}

	cp := cloneOrder(order)
	cp.Created = s.now()
	cp.Modified = cp.Created
	s.orders[cp.ID] = cp

	out := cloneOrder(cp)
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ExistsPaymentID(ctx context.Context, paymentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListUnpaidByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentID != paymentID {
			continue
		}
		if o.Status == models.OrderStatusBad || o.Status == models.OrderStatusDeleted {
			continue
		}
		if o.PaymentStatus == models.PaymentStatusPaid {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sortOrdersByCreated(out)
	return out, nil
}

func (s *Store) ListByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentID == paymentID {
			out = append(out, *cloneOrder(o))
		}
	}
	sortOrdersByCreated(out)
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return models.ErrDataNotFound
	}
	order.Status = status
	order.Modified = s.now()
	return nil
}

func (s *Store) ExpireTempOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, o := range s.orders {
		if o.Status == models.OrderStatusTemp && o.Created.Before(cutoff) {
			o.Status = models.OrderStatusDeleted
			o.Modified = s.now()
			n++
		}
	}
	return n, nil
}

// ---- transactions ----

func (s *Store) Insert(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.insertLocked(t)
	if err != nil {
		return nil, err
	}
	out := *cp
	return &out, nil
}

// insertLocked mirrors the SQL path: both balances move in the same step the
// entry is appended, and the entry snapshots the running balances.
func (s *Store) insertLocked(t *models.Transaction) (*models.Transaction, error) {
	from, ok := s.accounts[t.FromID]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	to, ok := s.accounts[t.ToID]
	if !ok {
		return nil, models.ErrDataNotFound
	}

	from.Balance = models.RoundMoney(from.Balance + t.Amount)
	to.Balance = models.RoundMoney(to.Balance - t.Amount)

	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Amount = models.RoundMoney(cp.Amount)
	cp.FromBalance = from.Balance
	cp.ToBalance = to.Balance
	cp.Created = s.now()
	cp.Modified = cp.Created
	s.trs = append(s.trs, &cp)
	return &cp, nil
}

func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for _, t := range s.trs {
		if t.Status == models.TransactionStatusVoid || t.Amount == 0 {
			continue
		}
		if t.FromID == accountID || t.ToID == accountID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for _, t := range s.trs {
		if t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) VoidByOrder(ctx context.Context, orderID string, actionCodes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make(map[string]bool, len(actionCodes))
	for _, c := range actionCodes {
		codes[c] = true
	}
	for _, t := range s.trs {
		if t.OrderID == orderID && codes[t.ActionCode] {
			t.Status = models.TransactionStatusVoid
			t.Modified = s.now()
		}
	}
	return nil
}

func (s *Store) ApplyReplay(ctx context.Context, accountID string, snaps []models.BalanceSnapshot, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*models.Transaction, len(s.trs))
	for _, t := range s.trs {
		byID[t.ID] = t
	}
	for _, snap := range snaps {
		t, ok := byID[snap.TransactionID]
		if !ok {
			return models.ErrDataNotFound
		}
		if snap.FromSide {
			t.FromBalance = snap.Balance
		} else {
			t.ToBalance = snap.Balance
		}
	}

	acc, ok := s.accounts[accountID]
	if !ok {
		return models.ErrDataNotFound
	}
	acc.Balance = balance
	acc.Modified = s.now()
	return nil
}

// ---- credits ----

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*models.ClientCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.credits {
		if c.PaymentID == paymentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, models.ErrDataNotFound
}

func (s *Store) CreateCredit(ctx context.Context, c *models.ClientCredit) (*models.ClientCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Status == "" {
		cp.Status = models.PaymentStatusUnpaid
	}
	cp.Created = s.now()
	s.credits[cp.ID] = &cp

	out := cp
	return &out, nil
}

// ---- settlement ----

// Settle applies the batch under one lock: the claim, the ledger entries, the
// status flips and the stock decrements either all land or none do.
func (s *Store) Settle(ctx context.Context, batch *models.SettlementBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claims[batch.PaymentID] {
		return models.ErrAlreadySettled
	}
	s.claims[batch.PaymentID] = true

	for _, entry := range batch.Entries {
		if _, err := s.insertLocked(entry); err != nil {
			delete(s.claims, batch.PaymentID)
			return err
		}
	}

	if batch.CreditID != "" {
		credit, ok := s.credits[batch.CreditID]
		if !ok {
			delete(s.claims, batch.PaymentID)
			return models.ErrDataNotFound
		}
		credit.Status = models.PaymentStatusPaid
	}

	for _, id := range batch.PaidOrderIDs {
		order, ok := s.orders[id]
		if !ok {
			delete(s.claims, batch.PaymentID)
			return models.ErrDataNotFound
		}
		order.Status = models.OrderStatusNew
		order.PaymentStatus = models.PaymentStatusPaid
		order.Modified = s.now()
	}

	if len(batch.StockDeltas) > 0 {
		if _, err := s.adjustStockLocked(batch.StockDeltas, true); err != nil {
			delete(s.claims, batch.PaymentID)
			return err
		}
	}

	return nil
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func sortOrdersByCreated(orders []models.Order) {
	for i := 1; i < len(orders); i++ {
		for j := i; j > 0 && orders[j].Created.Before(orders[j-1].Created); j-- {
			orders[j], orders[j-1] = orders[j-1], orders[j]
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
