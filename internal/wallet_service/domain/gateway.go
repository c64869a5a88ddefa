package domain

import "context"

// OrderRequest asks the gateway to open an order for a top-up.
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
}

// GatewayOrder is the gateway's view of a created order.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
}

// GatewayPayment is the gateway's view of a payment attempt.
type GatewayPayment struct {
	ID      string
	OrderID string
	Method  string
	Status  string
}

// PaymentGateway bridges PaymentIntents to an external payment processor.
// Verification methods are pure and never touch persisted state.
type PaymentGateway interface {
	Name() string
	PublicKey() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(payload []byte, signature string) bool
}

const (
	WebhookEventPaymentCaptured = "payment.captured"
	WebhookEventPaymentFailed   = "payment.failed"
)

// WebhookEvent is the subset of a gateway webhook body the wallet acts on.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Method           string `json:"method"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
