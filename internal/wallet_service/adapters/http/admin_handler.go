package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/app"
	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// WalletAdministrator is the operator side of the wallet.
type WalletAdministrator interface {
	Adjust(ctx context.Context, req app.AdjustRequest) (*domain.LedgerEntry, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*domain.Reconciliation, error)
}

type AdminHandler struct {
	wallets  WalletAdministrator
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(wallets WalletAdministrator, validate *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		wallets:  wallets,
		validate: validate,
		logger:   logger.With("handler", "wallet_admin"),
	}
}

// RegisterRoutes registers admin routes. Callers must hold the admin role.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/admin/wallets/{accountID}", func(r chi.Router) {
		r.Post("/adjustments", h.handleAdjust)
		r.Get("/reconciliation", h.handleReconcile)
	})
}

func (h *AdminHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		jsonError(w, "Invalid account ID format", http.StatusBadRequest)
		return
	}
	actor, _ := ActorFromContext(ctx)
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "account_id", accountID, "actor_id", actor.ID)

	var req AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		jsonError(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	delta, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		jsonError(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	entry, err := h.wallets.Adjust(ctx, app.AdjustRequest{
		AccountID:   accountID,
		Delta:       delta,
		Description: req.Description,
		ActorID:     actor.ID,
	})
	if err != nil {
		writeDomainError(w, r, logger, err)
		return
	}
	logger.InfoContext(ctx, "Admin adjustment recorded", "ledger_entry_id", entry.ID)
	respondJSON(w, http.StatusCreated, toLedgerEntryResponse(domain.StatementLine{LedgerEntry: *entry, SignedAmount: delta}))
}

func (h *AdminHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		jsonError(w, "Invalid account ID format", http.StatusBadRequest)
		return
	}
	rec, err := h.wallets.Reconcile(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ReconciliationResponse{
		AccountID:     rec.AccountID.String(),
		CachedBalance: rec.CachedBalance,
		LedgerBalance: rec.LedgerBalance,
		Consistent:    rec.Consistent,
	})
}
