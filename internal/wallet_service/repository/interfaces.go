package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// Querier defines the common methods of *pgxpool.Pool and pgx.Tx so that
// repositories can run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager opens a unit of work. fn's transaction is committed when fn
// returns nil and rolled back otherwise.
type TxManager interface {
	BeginFunc(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AccountRepository reads and writes the cached wallet balance.
// UpdateBalance must only be called by the ledger while the row lock is held.
type AccountRepository interface {
	GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*domain.Account, error)
	GetBalance(ctx context.Context, q Querier, id uuid.UUID) (decimal.Decimal, error)
	UpdateBalance(ctx context.Context, q Querier, id uuid.UUID, balance decimal.Decimal) error
}

// LedgerRepository persists the append-only wallet log.
type LedgerRepository interface {
	Create(ctx context.Context, q Querier, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, q Querier, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
	Latest(ctx context.Context, q Querier, accountID uuid.UUID) (*domain.LedgerEntry, error)
	CountByReference(ctx context.Context, q Querier, referenceType, referenceID string) (int, error)
}

// PaymentIntentRepository persists PaymentIntents.
type PaymentIntentRepository interface {
	Create(ctx context.Context, q Querier, pi *domain.PaymentIntent) error
	GetByGatewayOrderIDForUpdate(ctx context.Context, q Querier, gatewayOrderID string) (*domain.PaymentIntent, error)
	UpdateStatus(ctx context.Context, q Querier, pi *domain.PaymentIntent) error
}
