package app

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

func newTestWalletService(store *memStore, cache BalanceCache, pub EventPublisher) *WalletService {
	return NewWalletService(nil, store, memAccounts{store}, memLedger{store}, newTestLedger(store), cache, pub, newTestLogger())
}

func TestWalletService_GetStatement(t *testing.T) {
	store := newMemStore()
	svc := newTestWalletService(store, newMemCache(), &recordingPublisher{})
	ledger := newTestLedger(store)
	acc := store.addAccount("0")
	ctx := context.Background()

	_, err := ledger.Credit(ctx, acc, dec("500"), EntryMeta{Description: "top-up"})
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, acc, dec("-30"), EntryMeta{Description: "correction"})
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, acc, dec("100"), EntryMeta{Description: "order"})
	require.NoError(t, err)

	first, err := svc.GetStatement(ctx, acc, domain.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.PageMeta{TotalItems: 3, TotalPages: 2, Page: 1, Limit: 2}, first.Meta)
	require.Len(t, first.Items, 2)
	assert.Equal(t, domain.EntryTypePurchase, first.Items[0].Type)
	assert.True(t, first.Items[0].SignedAmount.Equal(dec("-100")))
	assert.True(t, first.Items[0].BalanceAfter.Equal(dec("370")))
	assert.Equal(t, domain.EntryTypeAdjustment, first.Items[1].Type)
	assert.True(t, first.Items[1].SignedAmount.Equal(dec("-30")), "adjustment sign comes from the previous balance")

	second, err := svc.GetStatement(ctx, acc, domain.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, domain.EntryTypeDeposit, second.Items[0].Type)
	assert.True(t, second.Items[0].SignedAmount.Equal(dec("500")))
}

func TestWalletService_GetStatement_DefaultsAndEmpty(t *testing.T) {
	store := newMemStore()
	svc := newTestWalletService(store, nil, nil)

	st, err := svc.GetStatement(context.Background(), uuid.New(), domain.Page{Page: 0, Limit: 1000})

	require.NoError(t, err)
	assert.Empty(t, st.Items)
	assert.Equal(t, domain.PageMeta{TotalItems: 0, TotalPages: 0, Page: 1, Limit: domain.MaxPageSize}, st.Meta)

	body, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"meta":{"totalItems":0,"totalPages":0,"page":1,"limit":100}}`, string(body))
}

func TestWalletService_GetStatement_HugePageIsClamped(t *testing.T) {
	store := newMemStore()
	svc := newTestWalletService(store, nil, nil)
	ledger := newTestLedger(store)
	acc := store.addAccount("0")
	_, err := ledger.Credit(context.Background(), acc, dec("10"), EntryMeta{})
	require.NoError(t, err)

	st, err := svc.GetStatement(context.Background(), acc, domain.Page{Page: math.MaxInt, Limit: 50})

	require.NoError(t, err)
	assert.Empty(t, st.Items)
	assert.Equal(t, domain.PageMeta{TotalItems: 1, TotalPages: 1, Page: domain.MaxPage, Limit: 50}, st.Meta)
}

func TestWalletService_GetBalance_ReadThroughCache(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	svc := newTestWalletService(store, cache, nil)
	acc := store.addAccount("42.10")
	ctx := context.Background()

	got, err := svc.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("42.10")))

	cached, ok, _ := cache.Get(ctx, acc)
	require.True(t, ok)
	assert.True(t, cached.Equal(dec("42.10")))

	// A stale cache entry is served until invalidated.
	require.NoError(t, cache.Set(ctx, acc, dec("1")))
	got, err = svc.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1")))
}

func TestWalletService_GetBalance_UnknownAccount(t *testing.T) {
	svc := newTestWalletService(newMemStore(), newMemCache(), nil)

	_, err := svc.GetBalance(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestWalletService_Adjust(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	pub := &recordingPublisher{}
	svc := newTestWalletService(store, cache, pub)
	acc := store.addAccount("100")
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, acc, dec("100")))

	entry, err := svc.Adjust(ctx, AdjustRequest{AccountID: acc, Delta: dec("-30"), Description: "goodwill reversal", ActorID: "admin-1"})

	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(dec("30")))
	assert.True(t, entry.BalanceAfter.Equal(dec("70")))
	assert.True(t, store.balance(acc).Equal(dec("70")))

	_, ok, _ := cache.Get(ctx, acc)
	assert.False(t, ok, "cache must be invalidated after commit")

	require.Equal(t, 1, pub.count(SubjectBalanceAdjusted))
	var ev BalanceAdjustedEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &ev))
	assert.Equal(t, acc, ev.AccountID)
	assert.True(t, ev.Delta.Equal(dec("-30")))
	assert.Equal(t, "admin-1", ev.ActorID)
}

func TestWalletService_Adjust_Overdraw(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestWalletService(store, newMemCache(), pub)
	acc := store.addAccount("10")

	_, err := svc.Adjust(context.Background(), AdjustRequest{AccountID: acc, Delta: dec("-10.01")})

	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, store.balance(acc).Equal(dec("10")))
	assert.Zero(t, pub.count(SubjectBalanceAdjusted))
}

func TestWalletService_Reconcile(t *testing.T) {
	store := newMemStore()
	svc := newTestWalletService(store, nil, nil)
	ledger := newTestLedger(store)
	ctx := context.Background()

	empty := store.addAccount("0")
	rec, err := svc.Reconcile(ctx, empty)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.True(t, rec.LedgerBalance.IsZero())

	acc := store.addAccount("0")
	_, err = ledger.Credit(ctx, acc, dec("75"), EntryMeta{})
	require.NoError(t, err)
	rec, err = svc.Reconcile(ctx, acc)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.True(t, rec.CachedBalance.Equal(dec("75")))

	// Simulate an out-of-band write to the balance column.
	store.mu.Lock()
	a := store.accounts[acc]
	a.Balance = decimal.RequireFromString("80")
	store.accounts[acc] = a
	store.mu.Unlock()

	rec, err = svc.Reconcile(ctx, acc)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.True(t, rec.CachedBalance.Equal(dec("80")))
	assert.True(t, rec.LedgerBalance.Equal(dec("75")))
}

func TestWalletService_Reconcile_UnknownAccount(t *testing.T) {
	svc := newTestWalletService(newMemStore(), nil, nil)

	_, err := svc.Reconcile(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
