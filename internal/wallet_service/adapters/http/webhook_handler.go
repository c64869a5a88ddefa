package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

const (
	MaxRequestBodySize = 1 << 20 // 1 MB
	SignatureHeader    = "X-Gateway-Signature"
)

// PaymentWebhookProcessor processes verified gateway webhook deliveries.
type PaymentWebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	processor PaymentWebhookProcessor
	logger    *slog.Logger
}

func NewWebhookHandler(processor PaymentWebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger.With("component", "webhook_handler"),
	}
}

// HandlePaymentWebhook receives webhook events from the payment gateway.
// The body is read raw so the signature can be checked against the exact
// bytes that were signed.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "Method not allowed for webhook", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		logger.WarnContext(ctx, "Webhook without signature header")
		http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.WarnContext(ctx, "Webhook body too large", "limit", maxErr.Limit)
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	logger.InfoContext(ctx, "Received payment webhook", "payload_size", len(rawPayload))

	if err := h.processor.HandleWebhook(ctx, rawPayload, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
		case errors.Is(err, domain.ErrInvalidPayload):
			http.Error(w, "Malformed webhook payload", http.StatusBadRequest)
		default:
			logger.ErrorContext(ctx, "Error processing payment webhook", "error", err)
			http.Error(w, "Internal server error processing webhook", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Webhook received successfully")); err != nil {
		logger.WarnContext(ctx, "Failed to write webhook success response", "error", err)
	}
}
