package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
)

const StatusDone = "DONE"

// CodeAlreadyProcessed is returned by Confirm for a payment that was already approved.
const CodeAlreadyProcessed = "ALREADY_PROCESSED_PAYMENT"

var (
	ErrNotConfigured   = errors.New("payment gateway is not configured")
	ErrUnexpectedState = errors.New("payment gateway returned an unexpected payment state")
)

// IsAlreadyProcessed reports whether err is the gateway refusing to confirm a payment twice.
func IsAlreadyProcessed(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Code == CodeAlreadyProcessed
}

// Error is a rejection reported by the gateway. Code and Message are passed to the customer as-is.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment gateway: %s: %s", e.Code, e.Message)
}

// Payment is the subset of the gateway's payment object the storefront keeps.
type Payment struct {
	PaymentKey  string    `json:"paymentKey"`
	OrderID     string    `json:"orderId"`
	OrderName   string    `json:"orderName"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	TotalAmount int64     `json:"totalAmount"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

type Gateway interface {
	// Confirm approves a payment the customer authorized in the gateway widget.
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	ClientKey() string
	Ready() bool
}

type tossGateway struct {
	baseURL    string
	clientKey  string
	authHeader string
	httpClient *http.Client
}

func NewGateway(cfg config.PaymentConfig) Gateway {
	g := &tossGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientKey:  cfg.ClientKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.SecretKey != "" {
		g.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":"))
	}
	return g
}

func (g *tossGateway) ClientKey() string {
	return g.clientKey
}

func (g *tossGateway) Ready() bool {
	return g.clientKey != "" && g.authHeader != ""
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

func (g *tossGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*Payment, error) {
	if !g.Ready() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(confirmRequest{PaymentKey: paymentKey, OrderID: orderID, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("payment: failed to marshal confirm request: %w", err)
	}

	p, err := g.do(ctx, http.MethodPost, "/v1/payments/confirm", body)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusDone || p.TotalAmount != amount || p.OrderID != orderID {
		log.Warn().
			Str("correlation_id", orderID).
			Str("status", p.Status).
			Int64("amount", p.TotalAmount).
			Msg("payment: confirm response does not match request")
		return nil, fmt.Errorf("%w: status %s, amount %d", ErrUnexpectedState, p.Status, p.TotalAmount)
	}
	return p, nil
}

func (g *tossGateway) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	if !g.Ready() {
		return nil, ErrNotConfigured
	}
	return g.do(ctx, http.MethodGet, "/v1/payments/orders/"+url.PathEscape(orderID), nil)
}

func (g *tossGateway) do(ctx context.Context, method, path string, body []byte) (*Payment, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", g.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: request to gateway failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment: failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		gwErr := &Error{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, gwErr); err != nil || gwErr.Code == "" {
			gwErr.Code = "UNKNOWN_PAYMENT_ERROR"
			gwErr.Message = strings.TrimSpace(string(raw))
		}
		log.Warn().Int("status", resp.StatusCode).Str("code", gwErr.Code).Str("path", path).Msg("payment: gateway rejected request")
		return nil, gwErr
	}

	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("payment: failed to decode gateway response: %w", err)
	}
	return &p, nil
}
