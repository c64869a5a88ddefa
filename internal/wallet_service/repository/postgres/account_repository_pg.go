package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

type PgAccountRepository struct {
	logger *slog.Logger
}

func NewPgAccountRepository(logger *slog.Logger) repository.AccountRepository {
	return &PgAccountRepository{logger: logger.With("component", "account_repository_pg")}
}

// GetForUpdate fetches the account and locks its row until the surrounding
// transaction ends. q must be a pgx.Tx.
func (r *PgAccountRepository) GetForUpdate(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, wallet_balance, updated_at FROM accounts WHERE id = $1 FOR UPDATE`
	var acc domain.Account
	err := q.QueryRow(ctx, query, id).Scan(&acc.ID, &acc.Balance, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		r.logger.ErrorContext(ctx, "Error locking account", "error", err, "account_id", id)
		return nil, fmt.Errorf("locking account: %w", err)
	}
	return &acc, nil
}

func (r *PgAccountRepository) GetBalance(ctx context.Context, q repository.Querier, id uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT wallet_balance FROM accounts WHERE id = $1`
	var balance decimal.Decimal
	if err := q.QueryRow(ctx, query, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("getting account balance: %w", err)
	}
	return balance, nil
}

func (r *PgAccountRepository) UpdateBalance(ctx context.Context, q repository.Querier, id uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET wallet_balance = $2, updated_at = $3 WHERE id = $1`
	tag, err := q.Exec(ctx, query, id, balance, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating wallet balance", "error", err, "account_id", id)
		return fmt.Errorf("updating wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
