package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

const maxReceiptLength = 40

// Settlement triggers, used for logs, metrics and events.
const (
	SourceClientVerify = "client_verify"
	SourceWebhook      = "webhook"
)

type SettleOutcome string

const (
	SettleApplied          SettleOutcome = "applied"
	SettleAlreadyProcessed SettleOutcome = "already_processed"
)

// SettleRequest identifies a captured gateway payment. AccountID, when set,
// must own the intent.
type SettleRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Method           string
	RawPayload       []byte
	Source           string
	AccountID        uuid.UUID
}

type SettleResult struct {
	Outcome SettleOutcome
	Intent  *domain.PaymentIntent
	Entry   *domain.LedgerEntry // nil unless Outcome is SettleApplied
}

// ConfirmRequest is the client's post-checkout callback.
type ConfirmRequest struct {
	AccountID        uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type ConfirmStatus string

const (
	ConfirmStatusSettled ConfirmStatus = "settled"
	// ConfirmStatusProcessing means the payment is genuine but the balance
	// is not yet updated; the webhook completes it.
	ConfirmStatusProcessing ConfirmStatus = "processing"
	ConfirmStatusFailed     ConfirmStatus = "failed"
)

type ConfirmResult struct {
	Verified bool          `json:"verified"`
	Status   ConfirmStatus `json:"status"`
}

// PaymentConfig holds the top-up limits and gateway call settings.
type PaymentConfig struct {
	Currency       string
	MaxTopUp       decimal.Decimal // zero disables the limit
	GatewayTimeout time.Duration
}

// PaymentService drives PaymentIntents from checkout to settlement. Both
// settlement triggers (client verify and webhook) converge on Settle.
type PaymentService struct {
	db       repository.Querier
	txm      repository.TxManager
	accounts repository.AccountRepository
	intents  repository.PaymentIntentRepository
	entries  repository.LedgerRepository
	ledger   *Ledger
	gateway  domain.PaymentGateway
	cache    BalanceCache
	events   EventPublisher
	cfg      PaymentConfig
	logger   *slog.Logger
}

func NewPaymentService(
	db repository.Querier,
	txm repository.TxManager,
	accounts repository.AccountRepository,
	intents repository.PaymentIntentRepository,
	entries repository.LedgerRepository,
	ledger *Ledger,
	gateway domain.PaymentGateway,
	cache BalanceCache,
	events EventPublisher,
	cfg PaymentConfig,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		db:       db,
		txm:      txm,
		accounts: accounts,
		intents:  intents,
		entries:  entries,
		ledger:   ledger,
		gateway:  gateway,
		cache:    cache,
		events:   events,
		cfg:      cfg,
		logger:   logger.With("service", "payment"),
	}
}

// CreateIntent opens a gateway order for a wallet top-up and records a
// pending PaymentIntent for it.
func (s *PaymentService) CreateIntent(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.CheckoutSession, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if s.cfg.MaxTopUp.IsPositive() && amount.GreaterThan(s.cfg.MaxTopUp) {
		return nil, fmt.Errorf("%w: exceeds maximum top-up of %s", domain.ErrInvalidAmount, s.cfg.MaxTopUp.StringFixed(domain.MinorUnitExponent))
	}
	if _, err := s.accounts.GetBalance(ctx, s.db, accountID); err != nil {
		return nil, err
	}

	receipt, err := newReceipt()
	if err != nil {
		return nil, fmt.Errorf("generating receipt: %w", err)
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	timer := prometheus.NewTimer(gatewayRequestDurationHist.WithLabelValues(s.gateway.Name(), "create_order"))
	order, err := s.gateway.CreateOrder(gwCtx, domain.OrderRequest{
		AmountMinor: domain.ToMinorUnits(amount),
		Currency:    s.cfg.Currency,
		Receipt:     receipt,
	})
	timer.ObserveDuration()
	if err != nil {
		paymentIntentsCreatedCounter.WithLabelValues(s.gateway.Name(), "gateway_error").Inc()
		s.logger.ErrorContext(ctx, "Payment gateway failed to create order",
			"error", err, "account_id", accountID, "receipt", receipt, "amount", amount.String())
		return nil, domain.ErrGatewayUnavailable
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:             uuid.New(),
		AccountID:      accountID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Gateway:        s.gateway.Name(),
		Receipt:        receipt,
		GatewayOrderID: order.ID,
		Status:         domain.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.txm.BeginFunc(ctx, func(tx pgx.Tx) error {
		return s.intents.Create(ctx, tx, intent)
	})
	if err != nil {
		paymentIntentsCreatedCounter.WithLabelValues(s.gateway.Name(), "db_error").Inc()
		s.logger.ErrorContext(ctx, "Failed to save payment intent for gateway order",
			"error", err, "account_id", accountID, "gateway_order_id", order.ID)
		return nil, fmt.Errorf("saving payment intent: %w", err)
	}
	paymentIntentsCreatedCounter.WithLabelValues(s.gateway.Name(), "created").Inc()

	s.logger.InfoContext(ctx, "Payment intent created",
		"payment_intent_id", intent.ID, "account_id", accountID, "gateway_order_id", order.ID, "amount", amount.String())
	return &domain.CheckoutSession{
		IntentID:       intent.ID,
		GatewayOrderID: order.ID,
		AmountMinor:    domain.ToMinorUnits(amount),
		Currency:       intent.Currency,
		KeyID:          s.gateway.PublicKey(),
	}, nil
}

// VerifySignature checks a client-side payment signature. It has no side effects.
func (s *PaymentService) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return s.gateway.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature)
}

// Settle credits a captured payment to its account at most once. The intent
// row lock serializes concurrent triggers for the same order; the first one
// moves the intent to success and credits the ledger in the same
// transaction, every later one observes a non-pending intent and returns
// SettleAlreadyProcessed.
func (s *PaymentService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	var result *SettleResult
	err := s.txm.BeginFunc(ctx, func(tx pgx.Tx) error {
		intent, err := s.intents.GetByGatewayOrderIDForUpdate(ctx, tx, req.GatewayOrderID)
		if err != nil {
			return err
		}
		if req.AccountID != uuid.Nil && intent.AccountID != req.AccountID {
			s.logger.WarnContext(ctx, "Settlement attempted by non-owner",
				"payment_intent_id", intent.ID, "account_id", req.AccountID, "gateway_order_id", req.GatewayOrderID)
			return domain.ErrPaymentNotFound
		}

		if intent.Status.IsTerminal() {
			if intent.Status != domain.PaymentStatusSuccess {
				s.logger.WarnContext(ctx, "Captured payment reported for a non-settleable intent",
					"payment_intent_id", intent.ID,
					"status", intent.Status,
					"gateway_order_id", req.GatewayOrderID,
					"gateway_payment_id", req.GatewayPaymentID,
					"source", req.Source,
				)
			} else if err := s.checkSingleCredit(ctx, tx, intent); err != nil {
				return err
			}
			result = &SettleResult{Outcome: SettleAlreadyProcessed, Intent: intent}
			return nil
		}

		if err := intent.MarkSucceeded(req.GatewayPaymentID, req.Method, req.RawPayload); err != nil {
			return err
		}
		if err := s.intents.UpdateStatus(ctx, tx, intent); err != nil {
			return err
		}
		entry, err := s.ledger.CreditTx(ctx, tx, intent.AccountID, intent.Amount, EntryMeta{
			ReferenceID:   intent.ID.String(),
			ReferenceType: domain.ReferenceTypePayment,
			Description:   fmt.Sprintf("Wallet top-up via %s", intent.Gateway),
		})
		if err != nil {
			return err
		}
		result = &SettleResult{Outcome: SettleApplied, Intent: intent, Entry: entry}
		return nil
	})
	if err != nil {
		paymentSettlementsCounter.WithLabelValues(req.Source, "error").Inc()
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			s.logger.ErrorContext(ctx, "Payment settlement rolled back",
				"error", err,
				"gateway_order_id", req.GatewayOrderID,
				"gateway_payment_id", req.GatewayPaymentID,
				"source", req.Source,
			)
		}
		return nil, err
	}

	paymentSettlementsCounter.WithLabelValues(req.Source, string(result.Outcome)).Inc()
	if result.Outcome == SettleAlreadyProcessed {
		s.logger.InfoContext(ctx, "Payment already processed",
			"payment_intent_id", result.Intent.ID, "status", result.Intent.Status, "source", req.Source)
		return result, nil
	}

	ledgerEntriesCounter.WithLabelValues(string(result.Entry.Type)).Inc()
	invalidateBalance(ctx, s.cache, s.logger, result.Intent.AccountID)
	publishEvent(ctx, s.events, s.logger, SubjectPaymentSettled, PaymentSettledEvent{
		PaymentIntentID:  result.Intent.ID,
		AccountID:        result.Intent.AccountID,
		Amount:           result.Intent.Amount,
		Currency:         result.Intent.Currency,
		GatewayOrderID:   result.Intent.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		LedgerEntryID:    result.Entry.ID,
		BalanceAfter:     result.Entry.BalanceAfter,
		Source:           req.Source,
		OccurredAt:       result.Entry.CreatedAt,
	})
	s.logger.InfoContext(ctx, "Payment settled",
		"payment_intent_id", result.Intent.ID,
		"account_id", result.Intent.AccountID,
		"gateway_order_id", req.GatewayOrderID,
		"gateway_payment_id", req.GatewayPaymentID,
		"ledger_entry_id", result.Entry.ID,
		"source", req.Source,
	)
	return result, nil
}

// checkSingleCredit logs an error when a settled intent does not have
// exactly one payment ledger entry.
func (s *PaymentService) checkSingleCredit(ctx context.Context, q repository.Querier, intent *domain.PaymentIntent) error {
	n, err := s.entries.CountByReference(ctx, q, domain.ReferenceTypePayment, intent.ID.String())
	if err != nil {
		return err
	}
	if n != 1 {
		s.logger.ErrorContext(ctx, "Settled payment intent has unexpected ledger entries",
			"payment_intent_id", intent.ID,
			"account_id", intent.AccountID,
			"gateway_order_id", intent.GatewayOrderID,
			"ledger_entries", n,
		)
	}
	return nil
}

// RecordFailedAttempt stores the reason a payment attempt on the order was
// declined. The intent is left pending so a retried attempt can still settle
// it. Intents that are no longer pending are returned unchanged.
func (s *PaymentService) RecordFailedAttempt(ctx context.Context, gatewayOrderID, gatewayPaymentID, reason string, raw []byte) (*domain.PaymentIntent, error) {
	var intent *domain.PaymentIntent
	recorded := false
	err := s.txm.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		intent, err = s.intents.GetByGatewayOrderIDForUpdate(ctx, tx, gatewayOrderID)
		if err != nil {
			return err
		}
		if intent.Status.IsTerminal() {
			s.logger.InfoContext(ctx, "Ignoring failed attempt for non-pending intent",
				"payment_intent_id", intent.ID, "status", intent.Status, "gateway_payment_id", gatewayPaymentID)
			return nil
		}
		if err := intent.RecordFailedAttempt(gatewayPaymentID, reason, raw); err != nil {
			return err
		}
		if err := s.intents.UpdateStatus(ctx, tx, intent); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if recorded {
		s.logger.InfoContext(ctx, "Payment attempt failed, intent stays pending",
			"payment_intent_id", intent.ID,
			"gateway_order_id", gatewayOrderID,
			"gateway_payment_id", gatewayPaymentID,
			"reason", reason,
		)
	}
	return intent, nil
}

// ConfirmClientPayment handles the synchronous verify call made by the
// client after checkout. A valid signature is always reported as verified;
// if settlement fails after that the status is processing, never settled.
func (s *PaymentService) ConfirmClientPayment(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		paymentSettlementsCounter.WithLabelValues(SourceClientVerify, "invalid_signature").Inc()
		s.logger.WarnContext(ctx, "Client payment signature rejected",
			"account_id", req.AccountID, "gateway_order_id", req.GatewayOrderID, "gateway_payment_id", req.GatewayPaymentID)
		return nil, domain.ErrInvalidSignature
	}

	method := s.lookupPaymentMethod(ctx, req.GatewayPaymentID)
	raw, err := json.Marshal(map[string]string{
		"gateway_order_id":   req.GatewayOrderID,
		"gateway_payment_id": req.GatewayPaymentID,
		"method":             method,
		"source":             SourceClientVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding confirmation payload: %w", err)
	}

	result, err := s.Settle(ctx, SettleRequest{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Method:           method,
		RawPayload:       raw,
		Source:           SourceClientVerify,
		AccountID:        req.AccountID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Verified payment could not be settled, awaiting webhook",
			"error", err,
			"account_id", req.AccountID,
			"gateway_order_id", req.GatewayOrderID,
			"gateway_payment_id", req.GatewayPaymentID,
		)
		return &ConfirmResult{Verified: true, Status: ConfirmStatusProcessing}, nil
	}

	switch result.Intent.Status {
	case domain.PaymentStatusSuccess:
		return &ConfirmResult{Verified: true, Status: ConfirmStatusSettled}, nil
	case domain.PaymentStatusPending:
		return &ConfirmResult{Verified: true, Status: ConfirmStatusProcessing}, nil
	default:
		return &ConfirmResult{Verified: true, Status: ConfirmStatusFailed}, nil
	}
}

// lookupPaymentMethod asks the gateway how the payment was made. Failures
// are logged and yield an empty method.
func (s *PaymentService) lookupPaymentMethod(ctx context.Context, gatewayPaymentID string) string {
	gwCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	timer := prometheus.NewTimer(gatewayRequestDurationHist.WithLabelValues(s.gateway.Name(), "fetch_payment"))
	payment, err := s.gateway.FetchPayment(gwCtx, gatewayPaymentID)
	timer.ObserveDuration()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not fetch payment details from gateway",
			"error", err, "gateway_payment_id", gatewayPaymentID)
		return ""
	}
	return payment.Method
}

// HandleWebhook verifies and applies a gateway webhook delivery. The
// signature covers the raw body and is checked before the body is parsed.
// A nil return means the delivery can be acknowledged.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(payload, signature) {
		webhookEventsCounter.WithLabelValues("unknown", "invalid_signature").Inc()
		s.logger.WarnContext(ctx, "Webhook signature rejected", "payload_bytes", len(payload))
		return domain.ErrInvalidSignature
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		webhookEventsCounter.WithLabelValues("unknown", "invalid_payload").Inc()
		s.logger.ErrorContext(ctx, "Failed to decode webhook payload", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	entity := event.Payload.Payment.Entity

	var err error
	switch event.Event {
	case domain.WebhookEventPaymentCaptured:
		_, err = s.Settle(ctx, SettleRequest{
			GatewayOrderID:   entity.OrderID,
			GatewayPaymentID: entity.ID,
			Method:           entity.Method,
			RawPayload:       payload,
			Source:           SourceWebhook,
		})
	case domain.WebhookEventPaymentFailed:
		_, err = s.RecordFailedAttempt(ctx, entity.OrderID, entity.ID, entity.ErrorDescription, payload)
	default:
		webhookEventsCounter.WithLabelValues(event.Event, "ignored").Inc()
		s.logger.InfoContext(ctx, "Ignoring unhandled webhook event", "event", event.Event)
		return nil
	}

	if errors.Is(err, domain.ErrPaymentNotFound) {
		webhookEventsCounter.WithLabelValues(event.Event, "unknown_order").Inc()
		s.logger.WarnContext(ctx, "Webhook references unknown gateway order",
			"event", event.Event, "gateway_order_id", entity.OrderID, "gateway_payment_id", entity.ID)
		return nil
	}
	if err != nil {
		webhookEventsCounter.WithLabelValues(event.Event, "error").Inc()
		return err
	}
	webhookEventsCounter.WithLabelValues(event.Event, "processed").Inc()
	return nil
}

func (s *PaymentService) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.GatewayTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.GatewayTimeout)
}

// newReceipt returns an unguessable receipt id within the gateway's length limit.
func newReceipt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	receipt := "rcpt_" + hex.EncodeToString(b)
	if len(receipt) > maxReceiptLength {
		receipt = receipt[:maxReceiptLength]
	}
	return receipt, nil
}
