package paymentgateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// MockAdapter is an in-process gateway for local development. Signatures use
// the configured secrets, so clients and webhook senders can produce valid
// ones with PaymentSignature and Sign.
type MockAdapter struct {
	signer
	logger *slog.Logger
	keyID  string

	SimulateCreateFailure bool
	DefaultMethod         string
}

func NewMockAdapter(logger *slog.Logger, keyID, keySecret, webhookSecret string) *MockAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockAdapter{
		signer:        signer{keySecret: keySecret, webhookSecret: webhookSecret},
		logger:        logger.With("adapter", "mock_payment_gateway"),
		keyID:         keyID,
		DefaultMethod: "upi",
	}
}

func (m *MockAdapter) Name() string      { return "mock" }
func (m *MockAdapter) PublicKey() string { return m.keyID }

func (m *MockAdapter) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.GatewayOrder, error) {
	if m.SimulateCreateFailure {
		m.logger.WarnContext(ctx, "Mock gateway simulating order failure", "receipt", req.Receipt)
		return nil, errors.New("mock gateway simulated CreateOrder failure")
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("mock gateway: amount must be positive, got %d", req.AmountMinor)
	}

	id, err := randomID("order_")
	if err != nil {
		return nil, err
	}
	order := domain.GatewayOrder{ID: id, AmountMinor: req.AmountMinor, Currency: req.Currency, Status: "created"}
	m.logger.InfoContext(ctx, "Mock gateway order created", "gateway_order_id", id, "amount_minor", req.AmountMinor)
	return &order, nil
}

func (m *MockAdapter) FetchPayment(ctx context.Context, paymentID string) (*domain.GatewayPayment, error) {
	if paymentID == "" {
		return nil, errors.New("mock gateway: payment id required")
	}
	return &domain.GatewayPayment{ID: paymentID, Method: m.DefaultMethod, Status: "captured"}, nil
}

func randomID(prefix string) (string, error) {
	b := make([]byte, 7)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}
