package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// CreatePaymentRequest DTO for POST /v1/wallet/payments. Amount is in major
// units and may be sent as a JSON number or string.
type CreatePaymentRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
}

// VerifyPaymentRequest DTO for POST /v1/wallet/payments/verify.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required,max=64"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required,max=64"`
	Signature        string `json:"signature" validate:"required,hexadecimal,max=128"`
}

type VerifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status,omitempty"`
}

type BalanceResponse struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
}

// AdjustmentRequest DTO for POST /v1/admin/wallets/{accountID}/adjustments.
// Amount is signed.
type AdjustmentRequest struct {
	Amount      json.Number `json:"amount" validate:"required"`
	Description string      `json:"description" validate:"required,max=255"`
}

type LedgerEntryResponse struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	SignedAmount  decimal.Decimal `json:"signedAmount"`
	Type          string          `json:"type"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	ReferenceID   *string         `json:"referenceId,omitempty"`
	ReferenceType *string         `json:"referenceType,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type StatementResponse struct {
	Items []LedgerEntryResponse `json:"items"`
	Meta  domain.PageMeta       `json:"meta"`
}

type ReconciliationResponse struct {
	AccountID     string          `json:"accountId"`
	CachedBalance decimal.Decimal `json:"cachedBalance"`
	LedgerBalance decimal.Decimal `json:"ledgerBalance"`
	Consistent    bool            `json:"consistent"`
}

func toLedgerEntryResponse(line domain.StatementLine) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            line.ID.String(),
		Amount:        line.Amount,
		SignedAmount:  line.SignedAmount,
		Type:          string(line.Type),
		BalanceAfter:  line.BalanceAfter,
		ReferenceID:   line.ReferenceID,
		ReferenceType: line.ReferenceType,
		Description:   line.Description,
		CreatedAt:     line.CreatedAt,
	}
}

func toStatementResponse(st *domain.Statement) StatementResponse {
	items := make([]LedgerEntryResponse, 0, len(st.Items))
	for _, line := range st.Items {
		items = append(items, toLedgerEntryResponse(line))
	}
	return StatementResponse{Items: items, Meta: st.Meta}
}
