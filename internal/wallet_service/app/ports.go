package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCache is a read-through cache of account balances. It is only
// written after a transaction commits and a miss or error always falls
// back to the database.
type BalanceCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, bool, error)
	Set(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// EventPublisher sends domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

const (
	SubjectPaymentSettled  = "wallet.payment.settled"
	SubjectBalanceAdjusted = "wallet.balance.adjusted"
)

// PaymentSettledEvent is published once per applied settlement.
type PaymentSettledEvent struct {
	PaymentIntentID  uuid.UUID       `json:"payment_intent_id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	LedgerEntryID    uuid.UUID       `json:"ledger_entry_id"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Source           string          `json:"source"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// BalanceAdjustedEvent is published after a manual adjustment commits.
type BalanceAdjustedEvent struct {
	AccountID     uuid.UUID       `json:"account_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ActorID       string          `json:"actor_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
