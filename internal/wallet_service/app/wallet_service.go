package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

// AdjustRequest is a manual balance correction made by an operator.
type AdjustRequest struct {
	AccountID   uuid.UUID
	Delta       decimal.Decimal
	Description string
	ActorID     string
}

// WalletService serves balance and statement reads and operator adjustments.
type WalletService struct {
	db       repository.Querier
	txm      repository.TxManager
	accounts repository.AccountRepository
	entries  repository.LedgerRepository
	ledger   *Ledger
	cache    BalanceCache
	events   EventPublisher
	logger   *slog.Logger
}

func NewWalletService(
	db repository.Querier,
	txm repository.TxManager,
	accounts repository.AccountRepository,
	entries repository.LedgerRepository,
	ledger *Ledger,
	cache BalanceCache,
	events EventPublisher,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		db:       db,
		txm:      txm,
		accounts: accounts,
		entries:  entries,
		ledger:   ledger,
		cache:    cache,
		events:   events,
		logger:   logger.With("service", "wallet"),
	}
}

// GetStatement returns one page of the account's ledger, newest first.
// Entries are immutable so no locks are taken.
func (s *WalletService) GetStatement(ctx context.Context, accountID uuid.UUID, page domain.Page) (*domain.Statement, error) {
	p := page.Normalize()

	// One extra row gives the previous balance of the last line on the page.
	entries, total, err := s.entries.ListByAccount(ctx, s.db, accountID, p.Limit+1, p.Offset())
	if err != nil {
		return nil, err
	}

	n := len(entries)
	if n > p.Limit {
		n = p.Limit
	}
	items := make([]domain.StatementLine, 0, n)
	for i := 0; i < n; i++ {
		previous := decimal.Zero
		if i+1 < len(entries) {
			previous = entries[i+1].BalanceAfter
		}
		items = append(items, domain.StatementLine{
			LedgerEntry:  entries[i],
			SignedAmount: SignedAmount(entries[i], previous),
		})
	}
	return &domain.Statement{Items: items, Meta: domain.NewPageMeta(p, total)}, nil
}

// GetBalance returns the account's balance, served from cache when possible.
func (s *WalletService) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if s.cache != nil {
		balance, ok, err := s.cache.Get(ctx, accountID)
		if err != nil {
			s.logger.WarnContext(ctx, "Balance cache read failed", "error", err, "account_id", accountID)
		} else if ok {
			return balance, nil
		}
	}

	balance, err := s.accounts.GetBalance(ctx, s.db, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, balance); err != nil {
			s.logger.WarnContext(ctx, "Balance cache write failed", "error", err, "account_id", accountID)
		}
	}
	return balance, nil
}

// Adjust applies an operator correction of either sign.
func (s *WalletService) Adjust(ctx context.Context, req AdjustRequest) (*domain.LedgerEntry, error) {
	entry, err := s.ledger.Adjust(ctx, req.AccountID, req.Delta, EntryMeta{Description: req.Description})
	if err != nil {
		return nil, err
	}

	ledgerEntriesCounter.WithLabelValues(string(entry.Type)).Inc()
	invalidateBalance(ctx, s.cache, s.logger, req.AccountID)
	publishEvent(ctx, s.events, s.logger, SubjectBalanceAdjusted, BalanceAdjustedEvent{
		AccountID:     req.AccountID,
		LedgerEntryID: entry.ID,
		Delta:         req.Delta,
		BalanceAfter:  entry.BalanceAfter,
		ActorID:       req.ActorID,
		Description:   req.Description,
		OccurredAt:    entry.CreatedAt,
	})
	s.logger.InfoContext(ctx, "Manual balance adjustment applied",
		"account_id", req.AccountID, "ledger_entry_id", entry.ID, "delta", req.Delta.String(), "actor_id", req.ActorID)
	return entry, nil
}

// Reconcile compares the account's cached balance with the balance_after
// of its most recent ledger entry. The account row is locked so both values
// come from the same point in the ledger.
func (s *WalletService) Reconcile(ctx context.Context, accountID uuid.UUID) (*domain.Reconciliation, error) {
	var rec *domain.Reconciliation
	err := s.txm.BeginFunc(ctx, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		ledgerBalance := decimal.Zero
		latest, err := s.entries.Latest(ctx, tx, accountID)
		switch {
		case err == nil:
			ledgerBalance = latest.BalanceAfter
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		rec = &domain.Reconciliation{
			AccountID:     accountID,
			CachedBalance: account.Balance,
			LedgerBalance: ledgerBalance,
			Consistent:    account.Balance.Equal(ledgerBalance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Consistent {
		s.logger.ErrorContext(ctx, "Wallet balance drift detected",
			"account_id", accountID,
			"cached_balance", rec.CachedBalance.String(),
			"ledger_balance", rec.LedgerBalance.String(),
		)
	}
	return rec, nil
}

// invalidateBalance drops a cached balance after a committed change.
func invalidateBalance(ctx context.Context, cache BalanceCache, logger *slog.Logger, accountID uuid.UUID) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, accountID); err != nil {
		logger.WarnContext(ctx, "Balance cache invalidation failed", "error", err, "account_id", accountID)
	}
}

// publishEvent sends a committed domain event. Failures are logged only;
// the ledger is already durable.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *slog.Logger, subject string, event any) {
	if publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode event", "error", err, "subject", subject)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := publisher.Publish(pubCtx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
