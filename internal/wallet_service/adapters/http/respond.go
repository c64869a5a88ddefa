package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

type GenericErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, GenericErrorResponse{Error: message})
}

// writeDomainError maps service errors to HTTP responses. Unknown errors
// are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidEntryType):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidSignature):
		jsonError(w, "Invalid signature", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInsufficientBalance):
		jsonError(w, "Insufficient wallet balance", http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrAccountNotFound):
		jsonError(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrPaymentNotFound), errors.Is(err, domain.ErrNotFound):
		jsonError(w, "Payment not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		jsonError(w, "Payment initiation failed, please try again", http.StatusBadGateway)
	default:
		logger.ErrorContext(r.Context(), "Unhandled error", "error", err, "path", r.URL.Path)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}
