package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the postgres repositories. A
// transaction holds txMu for its whole duration, which gives the same
// serialization as the account and intent row locks, and any error restores
// the snapshot taken at begin.
type memStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
	entries  []domain.LedgerEntry
	intents  map[string]domain.PaymentIntent

	// Injected failures.
	failLedgerCreate   error
	failUpdateBalance  error
	failIntentUpdate   error
	commits, rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]domain.Account),
		intents:  make(map[string]domain.PaymentIntent),
	}
}

func (s *memStore) addAccount(balance string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.accounts[id] = domain.Account{ID: id, Balance: decimal.RequireFromString(balance), UpdatedAt: time.Now().UTC()}
	return id
}

func (s *memStore) balance(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *memStore) entriesFor(id uuid.UUID) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) entriesForReference(refID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.ReferenceID != nil && *e.ReferenceID == refID {
			n++
		}
	}
	return n
}

func (s *memStore) intent(orderID string) domain.PaymentIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intents[orderID]
}

func (s *memStore) putIntent(pi domain.PaymentIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[pi.GatewayOrderID] = pi
}

// TxManager

func (s *memStore) BeginFunc(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	accounts := make(map[uuid.UUID]domain.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	intents := make(map[string]domain.PaymentIntent, len(s.intents))
	for k, v := range s.intents {
		intents[k] = v
	}
	entries := append([]domain.LedgerEntry(nil), s.entries...)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.accounts, s.intents, s.entries = accounts, intents, entries
		s.rollbacks++
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// AccountRepository

type memAccounts struct{ s *memStore }

func (r memAccounts) GetForUpdate(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (r memAccounts) GetBalance(ctx context.Context, q repository.Querier, id uuid.UUID) (decimal.Decimal, error) {
	a, err := r.GetForUpdate(ctx, q, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (r memAccounts) UpdateBalance(ctx context.Context, q repository.Querier, id uuid.UUID, balance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUpdateBalance != nil {
		return r.s.failUpdateBalance
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Balance = balance
	a.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = a
	return nil
}

// LedgerRepository

type memLedger struct{ s *memStore }

func (r memLedger) Create(ctx context.Context, q repository.Querier, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failLedgerCreate != nil {
		return nil, r.s.failLedgerCreate
	}
	if entry.ReferenceType != nil && *entry.ReferenceType == domain.ReferenceTypePayment {
		for _, e := range r.s.entries {
			if e.ReferenceType != nil && *e.ReferenceType == domain.ReferenceTypePayment && *e.ReferenceID == *entry.ReferenceID {
				return nil, domain.ErrDuplicateReference
			}
		}
	}
	e := *entry
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	r.s.entries = append(r.s.entries, e)
	return &e, nil
}

func (r memLedger) ListByAccount(ctx context.Context, q repository.Querier, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var newestFirst []domain.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].AccountID == accountID {
			newestFirst = append(newestFirst, r.s.entries[i])
		}
	}
	total := len(newestFirst)
	if offset >= total {
		return []domain.LedgerEntry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return newestFirst[offset:end], total, nil
}

func (r memLedger) Latest(ctx context.Context, q repository.Querier, accountID uuid.UUID) (*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].AccountID == accountID {
			e := r.s.entries[i]
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memLedger) CountByReference(ctx context.Context, q repository.Querier, referenceType, referenceID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.entries {
		if e.ReferenceType != nil && *e.ReferenceType == referenceType && e.ReferenceID != nil && *e.ReferenceID == referenceID {
			n++
		}
	}
	return n, nil
}

// PaymentIntentRepository

type memIntents struct{ s *memStore }

func (r memIntents) Create(ctx context.Context, q repository.Querier, pi *domain.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.intents[pi.GatewayOrderID]; exists {
		return fmt.Errorf("duplicate gateway order id %s", pi.GatewayOrderID)
	}
	r.s.intents[pi.GatewayOrderID] = *pi
	return nil
}

// The surrounding transaction already holds txMu, which stands in for the row lock.
func (r memIntents) GetByGatewayOrderIDForUpdate(ctx context.Context, q repository.Querier, gatewayOrderID string) (*domain.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pi, ok := r.s.intents[gatewayOrderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &pi, nil
}

func (r memIntents) UpdateStatus(ctx context.Context, q repository.Querier, pi *domain.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failIntentUpdate != nil {
		return r.s.failIntentUpdate
	}
	if _, ok := r.s.intents[pi.GatewayOrderID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.s.intents[pi.GatewayOrderID] = *pi
	return nil
}

// memCache is a BalanceCache backed by a map.
type memCache struct {
	mu          sync.Mutex
	balances    map[uuid.UUID]decimal.Decimal
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (c *memCache) Get(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[accountID]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[accountID] = balance
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.balances, accountID)
	c.invalidated++
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

func newTestLedger(s *memStore) *Ledger {
	return NewLedger(s, memAccounts{s}, memLedger{s}, newTestLogger())
}
