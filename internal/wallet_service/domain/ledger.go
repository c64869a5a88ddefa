package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType defines the nature of a ledger entry. The direction of the
// balance change is implied by the type; amounts are stored unsigned.
type EntryType string

const (
	EntryTypeDeposit    EntryType = "deposit"
	EntryTypePurchase   EntryType = "purchase"
	EntryTypeRefund     EntryType = "refund"
	EntryTypeWithdrawal EntryType = "withdrawal"
	EntryTypeAdjustment EntryType = "adjustment"
)

// ReferenceTypePayment marks ledger entries caused by a settled PaymentIntent.
const ReferenceTypePayment = "payment"

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypePurchase, EntryTypeRefund, EntryTypeWithdrawal, EntryTypeAdjustment:
		return true
	}
	return false
}

// Value implements the driver.Valuer interface for EntryType.
func (t EntryType) Value() (driver.Value, error) {
	return string(t), nil
}

// Scan implements the sql.Scanner interface for EntryType.
func (t *EntryType) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("failed to scan EntryType: value is not string or []byte, it is %T", value)
	}
	*t = EntryType(s)
	if !t.Valid() {
		return fmt.Errorf("unknown EntryType value: %s", s)
	}
	return nil
}

// Account is the wallet-bearing side of a user record.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry is an immutable row of the wallet transaction log.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"` // always absolute
	Type          EntryType       `json:"type"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StatementLine is a ledger entry as rendered in a passbook, with its
// signed value already resolved.
type StatementLine struct {
	LedgerEntry
	SignedAmount decimal.Decimal `json:"signed_amount"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage bounds the page number so the row offset always fits in an int.
	MaxPage = 1_000_000
)

// Page requests one page of a listing. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageMeta struct {
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
}

// NewPageMeta computes pagination metadata for a total row count.
func NewPageMeta(p Page, total int) PageMeta {
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{TotalItems: total, TotalPages: pages, Page: p.Page, Limit: p.Limit}
}

// Statement is one page of an account's passbook, newest first.
type Statement struct {
	Items []StatementLine `json:"items"`
	Meta  PageMeta        `json:"meta"`
}

// Reconciliation compares the cached balance against the ledger.
type Reconciliation struct {
	AccountID     uuid.UUID       `json:"account_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Consistent    bool            `json:"consistent"`
}
