package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
	"github.com/vasiliy-maslov/buyproxy/internal/metrics"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/payment"
)

const (
	guestEmail = "customer@example.com"
	guestName  = "구매자"
)

var (
	ErrGatewayNotReady     = errors.New("payment gateway is not ready")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrInvalidCheckout     = errors.New("invalid checkout request")
	ErrInvalidConfirmation = errors.New("invalid payment confirmation")
	ErrAmountMismatch      = errors.New("payment amount does not match the pending checkout")
)

// cancelCodes are gateway failure codes that mean the customer backed out.
var cancelCodes = map[string]bool{
	"USER_CANCEL":          true,
	"PAY_PROCESS_CANCELED": true,
}

type Customer struct {
	UserID uuid.NullUUID
	Email  string
	Name   string
}

type Input struct {
	ClientKey string
	ProductID uuid.UUID
	Quantity  int
	Customer  Customer
}

// PaymentRequest carries everything the browser widget needs to open the gateway's payment window.
type PaymentRequest struct {
	Method        string `json:"method"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	OrderID       string `json:"orderId"`
	OrderName     string `json:"orderName"`
	SuccessURL    string `json:"successUrl"`
	FailURL       string `json:"failUrl"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	CustomerKey   string `json:"customerKey"`
	ClientKey     string `json:"clientKey"`
}

type Receipt struct {
	OrderID           string            `json:"orderId"`
	Amount            int64             `json:"amount"`
	AmountDisplay     string            `json:"amountDisplay"`
	PaymentKeyDisplay string            `json:"paymentKeyDisplay"`
	Status            order.OrderStatus `json:"status"`
	StatusLabel       string            `json:"statusLabel"`
}

type Failure struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled"`
}

type Service interface {
	Initiate(ctx context.Context, in Input) (*PaymentRequest, error)
	ConfirmSuccess(ctx context.Context, orderID string, amount int64, paymentKey string) (*Receipt, error)
	RecordFailure(ctx context.Context, code, message, orderID string) Failure
	Release(ctx context.Context, clientKey string)
	Ready() bool
}

type service struct {
	products   catalog.Service
	orders     order.Service
	gateway    payment.Gateway
	pending    PendingStore
	guard      *Guard
	origin     string
	pendingTTL time.Duration
	now        func() time.Time
}

func NewService(products catalog.Service, orders order.Service, gateway payment.Gateway, pending PendingStore, origin string, pendingTTL time.Duration) Service {
	return &service{
		products:   products,
		orders:     orders,
		gateway:    gateway,
		pending:    pending,
		guard:      NewGuard(pendingTTL),
		origin:     strings.TrimRight(origin, "/"),
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

func (s *service) Ready() bool {
	return s.gateway.Ready()
}

func (s *service) Initiate(ctx context.Context, in Input) (*PaymentRequest, error) {
	if !s.gateway.Ready() {
		return nil, ErrGatewayNotReady
	}
	if in.ClientKey == "" || in.ProductID == uuid.Nil {
		return nil, ErrInvalidCheckout
	}
	if in.Quantity > catalog.MaxQuantity {
		return nil, fmt.Errorf("%w: quantity %d exceeds %d", ErrInvalidCheckout, in.Quantity, catalog.MaxQuantity)
	}
	quantity := catalog.ClampQuantity(in.Quantity)

	product, err := s.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	total, ok := product.Total(quantity)
	if !ok {
		return nil, fmt.Errorf("%w: total for %d x %d is out of range", ErrInvalidCheckout, quantity, product.Price)
	}

	if !s.guard.Acquire(in.ClientKey) {
		metrics.CheckoutOutcomes.WithLabelValues("in_progress").Inc()
		log.Debug().Str("client_key", in.ClientKey).Msg("checkout: ignoring duplicate initiation")
		return nil, ErrCheckoutInProgress
	}

	now := s.now()
	orderID := NewCorrelationID(now)
	s.guard.Bind(in.ClientKey, orderID)

	snapshot := &Pending{
		OrderID:     orderID,
		ClientKey:   in.ClientKey,
		UserID:      in.Customer.UserID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Category:    product.Category,
		Quantity:    quantity,
		TotalAmount: total,
		CreatedAt:   now,
	}
	if err := s.pending.Put(ctx, snapshot, s.pendingTTL); err != nil {
		s.guard.Release(in.ClientKey)
		return nil, fmt.Errorf("service: failed to store pending checkout: %w", err)
	}

	req := &PaymentRequest{
		Method:        "CARD",
		Amount:        snapshot.TotalAmount,
		Currency:      "KRW",
		OrderID:       orderID,
		OrderName:     fmt.Sprintf("%s x %d", product.Name, quantity),
		SuccessURL:    s.origin + "/payment/success",
		FailURL:       s.origin + "/payment/fail",
		CustomerEmail: in.Customer.Email,
		CustomerName:  in.Customer.Name,
		ClientKey:     s.gateway.ClientKey(),
	}
	if req.CustomerEmail == "" {
		req.CustomerEmail = guestEmail
	}
	if req.CustomerName == "" {
		req.CustomerName = guestName
	}
	if in.Customer.UserID.Valid {
		req.CustomerKey = "CUSTOMER_" + in.Customer.UserID.UUID.String()
	} else {
		req.CustomerKey = fmt.Sprintf("CUSTOMER_%d", now.UnixMilli())
	}

	metrics.CheckoutOutcomes.WithLabelValues("initiated").Inc()
	log.Info().
		Str("correlation_id", orderID).
		Stringer("product_id", product.ID).
		Int("quantity", quantity).
		Int64("amount", snapshot.TotalAmount).
		Msg("checkout: initiated")
	return req, nil
}

// ConfirmSuccess verifies the gateway redirect with the gateway itself and records the order.
// Repeating a confirmation that already produced an order returns the same receipt.
func (s *service) ConfirmSuccess(ctx context.Context, orderID string, amount int64, paymentKey string) (*Receipt, error) {
	if orderID == "" || paymentKey == "" || amount <= 0 {
		return nil, ErrInvalidConfirmation
	}

	existing, err := s.orders.GetOrderByCorrelationID(ctx, orderID)
	switch {
	case err == nil:
		return s.replay(existing, amount, paymentKey)
	case !errors.Is(err, order.ErrOrderNotFound):
		return nil, fmt.Errorf("service: failed to look up order %s: %w", orderID, err)
	}

	snapshot, err := s.pending.Get(ctx, orderID)
	if err != nil {
		metrics.CheckoutOutcomes.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if snapshot.TotalAmount != amount {
		metrics.CheckoutOutcomes.WithLabelValues("rejected").Inc()
		log.Warn().
			Str("correlation_id", orderID).
			Int64("expected", snapshot.TotalAmount).
			Int64("got", amount).
			Msg("checkout: confirmation amount differs from pending snapshot")
		return nil, ErrAmountMismatch
	}

	if _, err := s.gateway.Confirm(ctx, paymentKey, orderID, amount); err != nil {
		if !s.capturedEarlier(ctx, err, orderID, amount, paymentKey) {
			metrics.CheckoutOutcomes.WithLabelValues("rejected").Inc()
			log.Warn().Err(err).Str("correlation_id", orderID).Msg("checkout: gateway did not confirm payment")
			return nil, err
		}
		metrics.CheckoutOutcomes.WithLabelValues("recovered").Inc()
		log.Warn().Str("correlation_id", orderID).Msg("checkout: payment was approved by an earlier confirmation, recording order")
	}

	created, err := s.orders.CreateOrder(ctx, &order.Order{
		UserID:      snapshot.UserID,
		ProductID:   snapshot.ProductID,
		ProductName: snapshot.ProductName,
		Category:    snapshot.Category,
		Quantity:    snapshot.Quantity,
		TotalAmount: snapshot.TotalAmount,
		Status:      order.StatusPaymentComplete,
		PaymentKey:  paymentKey,
		OrderID:     orderID,
	})
	if errors.Is(err, order.ErrDuplicateOrder) {
		// A concurrent confirmation won the insert.
		if created, err = s.orders.GetOrderByCorrelationID(ctx, orderID); err != nil {
			return nil, fmt.Errorf("service: failed to load concurrently created order: %w", err)
		}
	} else if err != nil {
		log.Error().Err(err).Str("correlation_id", orderID).Msg("checkout: payment confirmed but order was not recorded")
		return nil, fmt.Errorf("service: failed to record order: %w", err)
	}

	s.settle(ctx, snapshot.ClientKey, orderID)
	metrics.CheckoutOutcomes.WithLabelValues("confirmed").Inc()
	log.Info().Stringer("order_id", created.ID).Str("correlation_id", orderID).Msg("checkout: order recorded")
	return newReceipt(created), nil
}

// capturedEarlier handles a confirmation whose first attempt was approved by the gateway but never
// recorded. The gateway then refuses to confirm again, so its own record of the payment decides.
func (s *service) capturedEarlier(ctx context.Context, confirmErr error, orderID string, amount int64, paymentKey string) bool {
	if !payment.IsAlreadyProcessed(confirmErr) {
		return false
	}
	p, err := s.gateway.GetByOrderID(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", orderID).Msg("checkout: failed to look up already processed payment")
		return false
	}
	if p.Status != payment.StatusDone || p.TotalAmount != amount || p.PaymentKey != paymentKey || p.OrderID != orderID {
		log.Warn().
			Str("correlation_id", orderID).
			Str("status", p.Status).
			Int64("amount", p.TotalAmount).
			Msg("checkout: already processed payment does not match this confirmation")
		return false
	}
	return true
}

func (s *service) replay(existing *order.Order, amount int64, paymentKey string) (*Receipt, error) {
	if existing.PaymentKey != paymentKey || existing.TotalAmount != amount {
		metrics.CheckoutOutcomes.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: order %s is already finalized", ErrInvalidConfirmation, existing.OrderID)
	}
	metrics.CheckoutOutcomes.WithLabelValues("idempotent").Inc()
	return newReceipt(existing), nil
}

// RecordFailure discards the pending checkout and echoes the gateway's code and message.
func (s *service) RecordFailure(ctx context.Context, code, message, orderID string) Failure {
	f := Failure{Code: code, Message: message, Cancelled: cancelCodes[code]}

	if orderID != "" {
		if snapshot, err := s.pending.Get(ctx, orderID); err == nil {
			s.settle(ctx, snapshot.ClientKey, orderID)
		}
	}

	if f.Cancelled {
		metrics.CheckoutOutcomes.WithLabelValues("cancelled").Inc()
		log.Info().Str("correlation_id", orderID).Str("code", code).Msg("checkout: cancelled by customer")
	} else {
		metrics.CheckoutOutcomes.WithLabelValues("failed").Inc()
		log.Warn().Str("correlation_id", orderID).Str("code", code).Str("message", message).Msg("checkout: payment failed")
	}
	return f
}

// Release drops the client's in-flight checkout, if any.
func (s *service) Release(ctx context.Context, clientKey string) {
	if orderID := s.guard.Release(clientKey); orderID != "" {
		if err := s.pending.Delete(ctx, orderID); err != nil {
			log.Warn().Err(err).Str("correlation_id", orderID).Msg("checkout: failed to discard pending snapshot")
		}
	}
}

func (s *service) settle(ctx context.Context, clientKey, orderID string) {
	s.guard.Release(clientKey)
	if err := s.pending.Delete(ctx, orderID); err != nil {
		log.Warn().Err(err).Str("correlation_id", orderID).Msg("checkout: failed to discard pending snapshot")
	}
}

func newReceipt(o *order.Order) *Receipt {
	return &Receipt{
		OrderID:           o.OrderID,
		Amount:            o.TotalAmount,
		AmountDisplay:     FormatWon(o.TotalAmount),
		PaymentKeyDisplay: TruncateKey(o.PaymentKey),
		Status:            o.Status,
		StatusLabel:       o.Status.Label(),
	}
}
