package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a PaymentIntent.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// PaymentIntent tracks one wallet top-up from checkout initiation to settlement.
type PaymentIntent struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Gateway          string          `json:"gateway"`
	Receipt          string          `json:"receipt"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Status           PaymentStatus   `json:"status"`
	Method           *string         `json:"method,omitempty"`
	RawResponse      []byte          `json:"-"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MarkSucceeded moves a pending intent to success. Every settlement path
// goes through here.
func (pi *PaymentIntent) MarkSucceeded(gatewayPaymentID, method string, raw []byte) error {
	if pi.Status != PaymentStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pi.Status, PaymentStatusSuccess)
	}
	pi.Status = PaymentStatusSuccess
	pi.GatewayPaymentID = &gatewayPaymentID
	if method != "" {
		pi.Method = &method
	}
	pi.RawResponse = raw
	pi.FailureReason = nil
	pi.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordFailedAttempt notes a declined payment attempt on the order. The
// intent stays pending: the customer may retry the same order and a later
// attempt can still be captured.
func (pi *PaymentIntent) RecordFailedAttempt(gatewayPaymentID, reason string, raw []byte) error {
	if pi.Status != PaymentStatusPending {
		return fmt.Errorf("%w: failed attempt on %s intent", ErrInvalidTransition, pi.Status)
	}
	if gatewayPaymentID != "" {
		pi.GatewayPaymentID = &gatewayPaymentID
	}
	if reason != "" {
		pi.FailureReason = &reason
	}
	pi.RawResponse = raw
	pi.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckoutSession is what the client needs to drive the gateway's checkout UI.
type CheckoutSession struct {
	IntentID       uuid.UUID `json:"intentId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	AmountMinor    int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"keyId"`
}
