package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnconfigured is returned at construction when credentials are missing.
var ErrUnconfigured = errors.New("razorpay: key id and key secret are required")

const (
	DefaultBaseURL = "https://api.razorpay.com/v1"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client is a PaymentGateway backed by the Razorpay REST API.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.PaymentGateway = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, ErrUnconfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "razorpay " + r.Method + " " + r.URL.Path
				}),
			),
		},
		logger: logger,
	}, nil
}

// KeyID is the public key handed to the checkout widget.
func (c *Client) KeyID() string { return c.keyID }

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
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
	Amount  int64  `json:"amount"`
}

type refundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, req ports.RemoteOrderRequest) (*ports.RemoteOrder, error) {
	var out orderResponse
	err := c.do(ctx, "create_order", http.MethodPost, "/orders", orderRequest{
		Amount:   req.AmountMinor,
		Currency: string(req.Currency),
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &ports.RemoteOrder{
		ID:          out.ID,
		AmountMinor: out.Amount,
		Currency:    domain.Currency(out.Currency),
		Status:      out.Status,
	}, nil
}

func (c *Client) FetchPayment(ctx context.Context, gatewayPaymentID string) (*ports.RemotePayment, error) {
	var out paymentResponse
	if err := c.do(ctx, "fetch_payment", http.MethodGet, "/payments/"+gatewayPaymentID, nil, &out); err != nil {
		return nil, err
	}
	return &ports.RemotePayment{
		ID:          out.ID,
		OrderID:     out.OrderID,
		Method:      out.Method,
		Status:      out.Status,
		AmountMinor: out.Amount,
	}, nil
}

func (c *Client) CreateRefund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (*ports.RemoteRefund, error) {
	var out refundResponse
	err := c.do(ctx, "create_refund", http.MethodPost, "/payments/"+gatewayPaymentID+"/refund", refundRequest{
		Amount: amountMinor,
		Notes:  notes,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &ports.RemoteRefund{ID: out.ID, AmountMinor: out.Amount, Status: out.Status}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "razorpay request failed", "op", op, "error", err)
		return &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gwErr := &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Description != "" {
			gwErr.Message = parsed.Error.Description
		}
		c.logger.WarnContext(ctx, "razorpay rejected request", "op", op, "status", resp.StatusCode, "message", gwErr.Message)
		return gwErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
