package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

const paymentIntentColumns = `id, account_id, amount, currency, gateway, receipt,
		       gateway_order_id, gateway_payment_id, status, method, raw_response,
		       failure_reason, created_at, updated_at`

type PgPaymentIntentRepository struct {
	logger *slog.Logger
}

func NewPgPaymentIntentRepository(logger *slog.Logger) repository.PaymentIntentRepository {
	return &PgPaymentIntentRepository{logger: logger.With("component", "payment_intent_repository_pg")}
}

func (r *PgPaymentIntentRepository) Create(ctx context.Context, q repository.Querier, pi *domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, account_id, amount, currency, gateway, receipt,
			gateway_order_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.Exec(ctx, query,
		pi.ID, pi.AccountID, pi.Amount, pi.Currency, pi.Gateway, pi.Receipt,
		pi.GatewayOrderID, pi.Status, pi.CreatedAt, pi.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating payment intent", "error", err, "payment_intent_id", pi.ID)
		return fmt.Errorf("creating payment intent: %w", err)
	}
	r.logger.InfoContext(ctx, "Payment intent created", "payment_intent_id", pi.ID, "gateway_order_id", pi.GatewayOrderID)
	return nil
}

func scanPaymentIntent(row pgx.Row) (*domain.PaymentIntent, error) {
	var pi domain.PaymentIntent
	err := row.Scan(
		&pi.ID, &pi.AccountID, &pi.Amount, &pi.Currency, &pi.Gateway, &pi.Receipt,
		&pi.GatewayOrderID, &pi.GatewayPaymentID, &pi.Status, &pi.Method, &pi.RawResponse,
		&pi.FailureReason, &pi.CreatedAt, &pi.UpdatedAt,
	)
	if err != nil {
		return nil, err // pgx.ErrNoRows handled by callers
	}
	return &pi, nil
}

// GetByGatewayOrderIDForUpdate locks the intent row so concurrent settlements
// of the same order serialize behind it. q must be a pgx.Tx.
func (r *PgPaymentIntentRepository) GetByGatewayOrderIDForUpdate(ctx context.Context, q repository.Querier, gatewayOrderID string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentIntentColumns + ` FROM payment_intents WHERE gateway_order_id = $1 FOR UPDATE`
	pi, err := scanPaymentIntent(q.QueryRow(ctx, query, gatewayOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "Payment intent not found by gateway order id", "gateway_order_id", gatewayOrderID)
			return nil, domain.ErrPaymentNotFound
		}
		r.logger.ErrorContext(ctx, "Error locking payment intent by gateway order id", "error", err, "gateway_order_id", gatewayOrderID)
		return nil, fmt.Errorf("locking payment intent by gateway order id: %w", err)
	}
	return pi, nil
}

func (r *PgPaymentIntentRepository) UpdateStatus(ctx context.Context, q repository.Querier, pi *domain.PaymentIntent) error {
	query := `
		UPDATE payment_intents SET
			status = $2,
			gateway_payment_id = $3,
			method = $4,
			raw_response = $5,
			failure_reason = $6,
			updated_at = $7
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query,
		pi.ID, pi.Status, pi.GatewayPaymentID, pi.Method, pi.RawResponse, pi.FailureReason, pi.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating payment intent", "error", err, "payment_intent_id", pi.ID)
		return fmt.Errorf("updating payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "No payment intent found for update", "payment_intent_id", pi.ID)
		return domain.ErrPaymentNotFound
	}
	return nil
}
