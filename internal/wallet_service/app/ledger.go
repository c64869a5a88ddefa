package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

// entrySigns is the single source of truth for the direction of each entry
// type. Zero means the caller supplies the sign.
var entrySigns = map[domain.EntryType]int{
	domain.EntryTypeDeposit:    1,
	domain.EntryTypeRefund:     1,
	domain.EntryTypePurchase:   -1,
	domain.EntryTypeWithdrawal: -1,
	domain.EntryTypeAdjustment: 0,
}

// SignedAmount resolves the signed value of an entry for display.
// previousBalance is the balance_after of the entry immediately before e
// (zero for the first entry) and is only consulted for adjustments.
func SignedAmount(e domain.LedgerEntry, previousBalance decimal.Decimal) decimal.Decimal {
	switch entrySigns[e.Type] {
	case 1:
		return e.Amount
	case -1:
		return e.Amount.Neg()
	}
	if e.BalanceAfter.LessThan(previousBalance) {
		return e.Amount.Neg()
	}
	return e.Amount
}

// EntryRequest describes one balance change. Delta is signed.
type EntryRequest struct {
	AccountID     uuid.UUID
	Delta         decimal.Decimal
	Type          domain.EntryType
	ReferenceID   *string
	ReferenceType *string
	Description   string
}

// EntryMeta carries the optional reference fields of an entry.
type EntryMeta struct {
	ReferenceID   string
	ReferenceType string
	Description   string
}

func (m EntryMeta) request(accountID uuid.UUID, delta decimal.Decimal, t domain.EntryType) EntryRequest {
	req := EntryRequest{AccountID: accountID, Delta: delta, Type: t, Description: m.Description}
	if m.ReferenceID != "" {
		id := m.ReferenceID
		req.ReferenceID = &id
	}
	if m.ReferenceType != "" {
		rt := m.ReferenceType
		req.ReferenceType = &rt
	}
	return req
}

// Ledger is the only component allowed to change an account's balance or
// append to its ledger. Both happen in one transaction under the account
// row lock.
type Ledger struct {
	txm      repository.TxManager
	accounts repository.AccountRepository
	entries  repository.LedgerRepository
	logger   *slog.Logger
}

func NewLedger(
	txm repository.TxManager,
	accounts repository.AccountRepository,
	entries repository.LedgerRepository,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		txm:      txm,
		accounts: accounts,
		entries:  entries,
		logger:   logger.With("component", "ledger"),
	}
}

// Apply runs ApplyTx in its own transaction.
func (l *Ledger) Apply(ctx context.Context, req EntryRequest) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := l.txm.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = l.ApplyTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyTx applies req inside the caller's transaction. The caller commits
// or rolls back; on error nothing written here may be kept.
func (l *Ledger) ApplyTx(ctx context.Context, q repository.Querier, req EntryRequest) (*domain.LedgerEntry, error) {
	if err := validateEntry(req); err != nil {
		return nil, err
	}

	account, err := l.accounts.GetForUpdate(ctx, q, req.AccountID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(req.Delta)
	if newBalance.IsNegative() {
		l.logger.WarnContext(ctx, "Rejected entry: insufficient balance",
			"account_id", req.AccountID,
			"entry_type", req.Type,
			"balance", account.Balance.String(),
			"delta", req.Delta.String(),
		)
		return nil, domain.ErrInsufficientBalance
	}

	entry, err := l.entries.Create(ctx, q, &domain.LedgerEntry{
		AccountID:     req.AccountID,
		Amount:        req.Delta.Abs(),
		Type:          req.Type,
		BalanceAfter:  newBalance,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		Description:   req.Description,
	})
	if err != nil {
		return nil, err
	}
	if err := l.accounts.UpdateBalance(ctx, q, req.AccountID, newBalance); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Ledger entry applied",
		"account_id", req.AccountID,
		"ledger_entry_id", entry.ID,
		"entry_type", req.Type,
		"delta", req.Delta.String(),
		"balance_after", newBalance.String(),
	)
	return entry, nil
}

func validateEntry(req EntryRequest) error {
	sign, ok := entrySigns[req.Type]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEntryType, req.Type)
	}
	if err := domain.ValidateAmount(req.Delta.Abs()); err != nil {
		return err
	}
	if sign != 0 && req.Delta.Sign() != sign {
		return fmt.Errorf("%w: wrong sign for %s entry", domain.ErrInvalidAmount, req.Type)
	}
	return nil
}

// Credit adds a positive amount as a deposit.
func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	return l.Apply(ctx, meta.request(accountID, amount, domain.EntryTypeDeposit))
}

// CreditTx is Credit inside the caller's transaction.
func (l *Ledger) CreditTx(ctx context.Context, q repository.Querier, accountID uuid.UUID, amount decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	return l.ApplyTx(ctx, q, meta.request(accountID, amount, domain.EntryTypeDeposit))
}

// Debit removes a positive amount as a purchase.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.Apply(ctx, meta.request(accountID, amount.Neg(), domain.EntryTypePurchase))
}

func (l *Ledger) Refund(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	return l.Apply(ctx, meta.request(accountID, amount, domain.EntryTypeRefund))
}

func (l *Ledger) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.Apply(ctx, meta.request(accountID, amount.Neg(), domain.EntryTypeWithdrawal))
}

// Adjust applies a signed manual correction.
func (l *Ledger) Adjust(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal, meta EntryMeta) (*domain.LedgerEntry, error) {
	return l.Apply(ctx, meta.request(accountID, delta, domain.EntryTypeAdjustment))
}
