package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/harvestdrop/golang_services/internal/wallet_service/domain"
)

// maxResponseBytes bounds how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// Client talks to a Razorpay-compatible orders/payments REST API.
type Client struct {
	signer
	name       string
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	keyID      string
}

func NewClient(logger *slog.Logger, name, baseURL, keyID, keySecret, webhookSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		signer:     signer{keySecret: keySecret, webhookSecret: webhookSecret},
		name:       name,
		logger:     logger.With("adapter", "payment_gateway", "gateway", name),
		httpClient: httpClient,
		baseURL:    baseURL,
		keyID:      keyID,
	}
}

func (c *Client) Name() string      { return c.name }
func (c *Client) PublicKey() string { return c.keyID }

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type paymentResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	Status  string `json:"status"`
}

// errorResponse is the gateway's error envelope.
type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.GatewayOrder, error) {
	var resp orderResponse
	err := c.do(ctx, http.MethodPost, "/v1/orders", createOrderBody{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("creating order: response has no order id")
	}
	c.logger.InfoContext(ctx, "Gateway order created", "gateway_order_id", resp.ID, "receipt", req.Receipt)
	return &domain.GatewayOrder{ID: resp.ID, AmountMinor: resp.Amount, Currency: resp.Currency, Status: resp.Status}, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*domain.GatewayPayment, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching payment %s: %w", paymentID, err)
	}
	return &domain.GatewayPayment{ID: resp.ID, OrderID: resp.OrderID, Method: resp.Method, Status: resp.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.signer.keySecret)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "Gateway request failed", "error", err, "method", method, "path", path)
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp errorResponse
		msg := http.StatusText(httpResp.StatusCode)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Description != "" {
			msg = errResp.Error.Code + ": " + errResp.Error.Description
		}
		c.logger.WarnContext(ctx, "Gateway returned an error", "status_code", httpResp.StatusCode, "message", msg, "path", path)
		return fmt.Errorf("gateway status %d: %s", httpResp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
