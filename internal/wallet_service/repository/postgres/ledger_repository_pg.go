package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

const uniqueViolationCode = "23505"

const ledgerColumns = `id, account_id, amount, type, balance_after, reference_id, reference_type, description, created_at`

type PgLedgerRepository struct {
	logger *slog.Logger
}

// NewPgLedgerRepository creates a LedgerRepository for PostgreSQL.
func NewPgLedgerRepository(logger *slog.Logger) repository.LedgerRepository {
	return &PgLedgerRepository{logger: logger.With("component", "ledger_repository_pg")}
}

func (r *PgLedgerRepository) Create(ctx context.Context, q repository.Querier, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.Exec(ctx, query,
		entry.ID, entry.AccountID, entry.Amount, entry.Type, entry.BalanceAfter,
		entry.ReferenceID, entry.ReferenceType, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, domain.ErrDuplicateReference
		}
		r.logger.ErrorContext(ctx, "Error creating ledger entry", "error", err, "account_id", entry.AccountID)
		return nil, fmt.Errorf("creating ledger entry: %w", err)
	}
	return entry, nil
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(
		&e.ID, &e.AccountID, &e.Amount, &e.Type, &e.BalanceAfter,
		&e.ReferenceID, &e.ReferenceType, &e.Description, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByAccount returns a page of entries newest first plus the total count.
func (r *PgLedgerRepository) ListByAccount(ctx context.Context, q repository.Querier, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting ledger entries: %w", err)
	}

	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Latest returns the most recent entry of the account, or domain.ErrNotFound.
func (r *PgLedgerRepository) Latest(ctx context.Context, q repository.Querier, accountID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	e, err := scanLedgerEntry(q.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting latest ledger entry: %w", err)
	}
	return e, nil
}

func (r *PgLedgerRepository) CountByReference(ctx context.Context, q repository.Querier, referenceType, referenceID string) (int, error) {
	query := `SELECT COUNT(*) FROM ledger_entries WHERE reference_type = $1 AND reference_id = $2`
	var n int
	if err := q.QueryRow(ctx, query, referenceType, referenceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ledger entries by reference: %w", err)
	}
	return n, nil
}
