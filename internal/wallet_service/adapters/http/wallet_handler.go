package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/app"
	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// PaymentProcessor is the checkout side of the wallet.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.CheckoutSession, error)
	ConfirmClientPayment(ctx context.Context, req app.ConfirmRequest) (*app.ConfirmResult, error)
}

// WalletQuerier serves balance and passbook reads.
type WalletQuerier interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	GetStatement(ctx context.Context, accountID uuid.UUID, page domain.Page) (*domain.Statement, error)
}

type WalletHandler struct {
	payments PaymentProcessor
	wallets  WalletQuerier
	validate *validator.Validate
	currency string
	logger   *slog.Logger
}

func NewWalletHandler(payments PaymentProcessor, wallets WalletQuerier, validate *validator.Validate, currency string, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		payments: payments,
		wallets:  wallets,
		validate: validate,
		currency: currency,
		logger:   logger.With("handler", "wallet"),
	}
}

// RegisterRoutes registers wallet routes. Callers must be authenticated.
func (h *WalletHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/wallet", func(r chi.Router) {
		r.Post("/payments", h.handleCreatePayment)
		r.Post("/payments/verify", h.handleVerifyPayment)
		r.Get("/balance", h.handleGetBalance)
		r.Get("/statement", h.handleGetStatement)
	})
}

func (h *WalletHandler) actor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || actor.AccountID == uuid.Nil {
		jsonError(w, "User not authenticated", http.StatusUnauthorized)
		return Actor{}, false
	}
	return actor, true
}

func (h *WalletHandler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "account_id", actor.AccountID)

	var req CreatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		jsonError(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		jsonError(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	session, err := h.payments.CreateIntent(ctx, actor.AccountID, amount)
	if err != nil {
		writeDomainError(w, r, logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *WalletHandler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "account_id", actor.AccountID)

	var req VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		respondJSON(w, http.StatusBadRequest, VerifyPaymentResponse{Verified: false})
		return
	}

	res, err := h.payments.ConfirmClientPayment(ctx, app.ConfirmRequest{
		AccountID:        actor.AccountID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			respondJSON(w, http.StatusBadRequest, VerifyPaymentResponse{Verified: false})
			return
		}
		writeDomainError(w, r, logger, err)
		return
	}
	respondJSON(w, http.StatusOK, VerifyPaymentResponse{Verified: res.Verified, Status: string(res.Status)})
}

func (h *WalletHandler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	balance, err := h.wallets.GetBalance(r.Context(), actor.AccountID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, BalanceResponse{
		AccountID: actor.AccountID.String(),
		Balance:   balance,
		Currency:  h.currency,
	})
}

func (h *WalletHandler) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := h.wallets.GetStatement(r.Context(), actor.AccountID, page)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toStatementResponse(st))
}

func parsePage(r *http.Request) (domain.Page, error) {
	var p domain.Page
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("page must be an integer")
		}
		p.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("limit must be an integer")
		}
		p.Limit = n
	}
	return p, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
