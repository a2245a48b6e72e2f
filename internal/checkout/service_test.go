package checkout_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
	"github.com/vasiliy-maslov/buyproxy/internal/checkout"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/payment"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) Seed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrderByCorrelationID(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrders) ListOrders(ctx context.Context, limit int) ([]order.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrders) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*payment.Payment, error) {
	args := m.Called(ctx, paymentKey, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockGateway) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockGateway) ClientKey() string {
	return m.Called().String(0)
}

func (m *MockGateway) Ready() bool {
	return m.Called().Bool(0)
}

var testProduct = &catalog.Product{
	ID:       uuid.Must(uuid.FromString("6f1c2a10-0005-4000-8000-000000000005")),
	Name:     "테스트 상품",
	Category: "테스트",
	Price:    100,
}

type fixture struct {
	svc      checkout.Service
	products *MockCatalog
	orders   *MockOrders
	gateway  *MockGateway
	pending  checkout.PendingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := checkout.OpenPendingStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		products: new(MockCatalog),
		orders:   new(MockOrders),
		gateway:  new(MockGateway),
		pending:  store,
	}
	f.gateway.On("Ready").Return(true).Maybe()
	f.gateway.On("ClientKey").Return("test_ck_example").Maybe()
	f.svc = checkout.NewService(f.products, f.orders, f.gateway, store, "https://shop.example.com/", 30*time.Minute)
	return f
}

func (f *fixture) initiate(t *testing.T, clientKey string, qty int) *checkout.PaymentRequest {
	t.Helper()
	f.products.On("GetProduct", mock.Anything, testProduct.ID).Return(testProduct, nil)
	req, err := f.svc.Initiate(context.Background(), checkout.Input{ClientKey: clientKey, ProductID: testProduct.ID, Quantity: qty})
	require.NoError(t, err)
	return req
}

func TestInitiate_BuildsPaymentRequest(t *testing.T) {
	f := newFixture(t)
	req := f.initiate(t, "client-1", 50)

	assert.Equal(t, "CARD", req.Method)
	assert.Equal(t, "KRW", req.Currency)
	assert.Equal(t, int64(5000), req.Amount)
	assert.Equal(t, "테스트 상품 x 50", req.OrderName)
	assert.Equal(t, "https://shop.example.com/payment/success", req.SuccessURL)
	assert.Equal(t, "https://shop.example.com/payment/fail", req.FailURL)
	assert.Equal(t, "customer@example.com", req.CustomerEmail)
	assert.Equal(t, "구매자", req.CustomerName)
	assert.Equal(t, "test_ck_example", req.ClientKey)
	assert.Regexp(t, `^ORDER_\d+_[0-9a-z]{9}$`, req.OrderID)
	assert.True(t, strings.HasPrefix(req.CustomerKey, "CUSTOMER_"))

	snapshot, err := f.pending.Get(context.Background(), req.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), snapshot.TotalAmount)
	assert.Equal(t, 50, snapshot.Quantity)
	assert.Equal(t, "테스트", snapshot.Category)
}

func TestInitiate_ClampsQuantityAndUsesCustomer(t *testing.T) {
	f := newFixture(t)
	uid := uuid.Must(uuid.NewV4())
	f.products.On("GetProduct", mock.Anything, testProduct.ID).Return(testProduct, nil)

	req, err := f.svc.Initiate(context.Background(), checkout.Input{
		ClientKey: "client-1",
		ProductID: testProduct.ID,
		Quantity:  -3,
		Customer:  checkout.Customer{UserID: uuid.NullUUID{UUID: uid, Valid: true}, Email: "kim@example.com", Name: "김철수"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), req.Amount)
	assert.Equal(t, "테스트 상품 x 1", req.OrderName)
	assert.Equal(t, "kim@example.com", req.CustomerEmail)
	assert.Equal(t, "CUSTOMER_"+uid.String(), req.CustomerKey)
}

func TestInitiate_GatewayNotReady(t *testing.T) {
	store, err := checkout.OpenPendingStore()
	require.NoError(t, err)
	defer store.Close()

	gw := new(MockGateway)
	gw.On("Ready").Return(false)
	svc := checkout.NewService(new(MockCatalog), new(MockOrders), gw, store, "https://shop.example.com", time.Minute)

	_, err = svc.Initiate(context.Background(), checkout.Input{ClientKey: "c", ProductID: testProduct.ID, Quantity: 1})
	require.ErrorIs(t, err, checkout.ErrGatewayNotReady)
	assert.False(t, svc.Ready())
}

func TestInitiate_SecondCallWhileInFlightIsIgnored(t *testing.T) {
	f := newFixture(t)
	first := f.initiate(t, "client-1", 1)

	_, err := f.svc.Initiate(context.Background(), checkout.Input{ClientKey: "client-1", ProductID: testProduct.ID, Quantity: 1})
	require.ErrorIs(t, err, checkout.ErrCheckoutInProgress)

	// Another client is unaffected.
	other := f.initiate(t, "client-2", 1)
	assert.NotEqual(t, first.OrderID, other.OrderID)

	// Releasing frees the key and discards the snapshot.
	f.svc.Release(context.Background(), "client-1")
	_, err = f.pending.Get(context.Background(), first.OrderID)
	require.ErrorIs(t, err, checkout.ErrPendingNotFound)
	f.initiate(t, "client-1", 1)
}

func TestInitiate_RejectsOutOfRangeQuantity(t *testing.T) {
	t.Run("above_max_quantity", func(t *testing.T) {
		f := newFixture(t)
		for _, qty := range []int{catalog.MaxQuantity + 1, math.MaxInt64/50 + 7} {
			_, err := f.svc.Initiate(context.Background(), checkout.Input{ClientKey: "client-1", ProductID: testProduct.ID, Quantity: qty})
			require.ErrorIs(t, err, checkout.ErrInvalidCheckout)
		}
		f.products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)

		// Nothing was reserved for the client.
		f.initiate(t, "client-1", catalog.MaxQuantity)
	})

	t.Run("total_overflows", func(t *testing.T) {
		f := newFixture(t)
		pricey := &catalog.Product{ID: uuid.Must(uuid.NewV4()), Name: "한정판", Price: math.MaxInt64 / 2}
		f.products.On("GetProduct", mock.Anything, pricey.ID).Return(pricey, nil).Once()

		_, err := f.svc.Initiate(context.Background(), checkout.Input{ClientKey: "client-1", ProductID: pricey.ID, Quantity: 3})
		require.ErrorIs(t, err, checkout.ErrInvalidCheckout)
		f.initiate(t, "client-1", 1)
	})
}

func TestInitiate_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	missing := uuid.Must(uuid.NewV4())
	f.products.On("GetProduct", mock.Anything, missing).Return(nil, catalog.ErrProductNotFound)

	_, err := f.svc.Initiate(context.Background(), checkout.Input{ClientKey: "c", ProductID: missing, Quantity: 1})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestConfirmSuccess_RecordsOrderAfterGatewayVerification(t *testing.T) {
	f := newFixture(t)
	req := f.initiate(t, "client-1", 50)
	paymentKey := "tgen_20250101ABCDEFGHIJKLMNOP"

	f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Once()
	f.gateway.On("Confirm", mock.Anything, paymentKey, req.OrderID, int64(5000)).
		Return(&payment.Payment{Status: payment.StatusDone, OrderID: req.OrderID, TotalAmount: 5000}, nil).Once()
	f.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.OrderID == req.OrderID &&
			o.PaymentKey == paymentKey &&
			o.TotalAmount == 5000 &&
			o.Quantity == 50 &&
			o.Category == "테스트" &&
			o.Status == order.StatusPaymentComplete
	})).Return(&order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		OrderID:     req.OrderID,
		TotalAmount: 5000,
		PaymentKey:  paymentKey,
		Status:      order.StatusPaymentComplete,
	}, nil).Once()

	receipt, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 5000, paymentKey)
	require.NoError(t, err)
	assert.Equal(t, req.OrderID, receipt.OrderID)
	assert.Equal(t, "₩5,000", receipt.AmountDisplay)
	assert.Equal(t, "tgen_20250101ABCDEFG...", receipt.PaymentKeyDisplay)
	assert.Equal(t, "결제완료", receipt.StatusLabel)

	_, err = f.pending.Get(context.Background(), req.OrderID)
	require.ErrorIs(t, err, checkout.ErrPendingNotFound)
	f.orders.AssertExpectations(t)
	f.gateway.AssertExpectations(t)

	// Guard is released on success.
	f.initiate(t, "client-1", 1)
}

func TestConfirmSuccess_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	existing := &order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		OrderID:     "ORDER_1735689600000_abc123xyz",
		TotalAmount: 5000,
		PaymentKey:  "pk_short",
		Status:      order.StatusPaymentComplete,
	}
	f.orders.On("GetOrderByCorrelationID", mock.Anything, existing.OrderID).Return(existing, nil).Times(3)

	for i := 0; i < 2; i++ {
		receipt, err := f.svc.ConfirmSuccess(context.Background(), existing.OrderID, 5000, "pk_short")
		require.NoError(t, err)
		assert.Equal(t, "pk_short...", receipt.PaymentKeyDisplay)
	}
	f.gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)

	_, err := f.svc.ConfirmSuccess(context.Background(), existing.OrderID, 5000, "pk_other")
	require.Error(t, err)
}

func TestConfirmSuccess_Rejections(t *testing.T) {
	t.Run("missing_params", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ConfirmSuccess(context.Background(), "", 5000, "pk")
		require.ErrorIs(t, err, checkout.ErrInvalidConfirmation)
		_, err = f.svc.ConfirmSuccess(context.Background(), "ORDER_1", 0, "pk")
		require.ErrorIs(t, err, checkout.ErrInvalidConfirmation)
	})

	t.Run("unknown_correlation_id", func(t *testing.T) {
		f := newFixture(t)
		f.orders.On("GetOrderByCorrelationID", mock.Anything, "ORDER_forged").Return(nil, order.ErrOrderNotFound).Once()

		_, err := f.svc.ConfirmSuccess(context.Background(), "ORDER_forged", 5000, "pk")
		require.ErrorIs(t, err, checkout.ErrPendingNotFound)
		f.gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tampered_amount", func(t *testing.T) {
		f := newFixture(t)
		req := f.initiate(t, "client-1", 50)
		f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Once()

		_, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, "pk")
		require.ErrorIs(t, err, checkout.ErrAmountMismatch)
		f.gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("gateway_rejects", func(t *testing.T) {
		f := newFixture(t)
		req := f.initiate(t, "client-1", 1)
		gwErr := &payment.Error{Status: 400, Code: "REJECT_CARD_COMPANY", Message: "결제 승인이 거절되었습니다"}
		f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Once()
		f.gateway.On("Confirm", mock.Anything, "pk", req.OrderID, int64(100)).Return(nil, gwErr).Once()

		_, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, "pk")
		var got *payment.Error
		require.ErrorAs(t, err, &got)
		assert.Equal(t, "REJECT_CARD_COMPANY", got.Code)
		f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})
}

func TestConfirmSuccess_ConcurrentInsertReturnsExisting(t *testing.T) {
	f := newFixture(t)
	req := f.initiate(t, "client-1", 1)
	existing := &order.Order{OrderID: req.OrderID, TotalAmount: 100, PaymentKey: "pk", Status: order.StatusPaymentComplete}

	f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Once()
	f.gateway.On("Confirm", mock.Anything, "pk", req.OrderID, int64(100)).
		Return(&payment.Payment{Status: payment.StatusDone, OrderID: req.OrderID, TotalAmount: 100}, nil).Once()
	f.orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, order.ErrDuplicateOrder).Once()
	f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(existing, nil).Once()

	receipt, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, "pk")
	require.NoError(t, err)
	assert.Equal(t, "₩100", receipt.AmountDisplay)
}

func TestConfirmSuccess_RecoversPaymentApprovedBeforeFailedInsert(t *testing.T) {
	f := newFixture(t)
	req := f.initiate(t, "client-1", 1)
	paymentKey := "tgen_20250101ABCDEFGHIJKLMNOP"
	alreadyProcessed := &payment.Error{Status: 400, Code: payment.CodeAlreadyProcessed, Message: "이미 처리된 결제 입니다."}

	// First attempt: the gateway approves, the insert fails.
	f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Twice()
	f.gateway.On("Confirm", mock.Anything, paymentKey, req.OrderID, int64(100)).
		Return(&payment.Payment{Status: payment.StatusDone, OrderID: req.OrderID, TotalAmount: 100}, nil).Once()
	f.orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, paymentKey)
	require.Error(t, err)
	_, err = f.pending.Get(context.Background(), req.OrderID)
	require.NoError(t, err, "pending snapshot survives a failed insert")

	// Retry: the gateway refuses a second confirm, its lookup shows the captured payment.
	f.gateway.On("Confirm", mock.Anything, paymentKey, req.OrderID, int64(100)).Return(nil, alreadyProcessed).Once()
	f.gateway.On("GetByOrderID", mock.Anything, req.OrderID).Return(&payment.Payment{
		PaymentKey:  paymentKey,
		OrderID:     req.OrderID,
		Status:      payment.StatusDone,
		TotalAmount: 100,
	}, nil).Once()
	f.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.OrderID == req.OrderID && o.PaymentKey == paymentKey && o.TotalAmount == 100
	})).Return(&order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		OrderID:     req.OrderID,
		TotalAmount: 100,
		PaymentKey:  paymentKey,
		Status:      order.StatusPaymentComplete,
	}, nil).Once()

	receipt, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, paymentKey)
	require.NoError(t, err)
	assert.Equal(t, req.OrderID, receipt.OrderID)

	_, err = f.pending.Get(context.Background(), req.OrderID)
	require.ErrorIs(t, err, checkout.ErrPendingNotFound)
	f.orders.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestConfirmSuccess_AlreadyProcessedWithDifferentPayment(t *testing.T) {
	tests := []struct {
		name   string
		lookup *payment.Payment
	}{
		{name: "other_payment_key", lookup: &payment.Payment{PaymentKey: "pk_other", Status: payment.StatusDone, TotalAmount: 100}},
		{name: "not_done", lookup: &payment.Payment{PaymentKey: "pk", Status: "CANCELED", TotalAmount: 100}},
		{name: "other_amount", lookup: &payment.Payment{PaymentKey: "pk", Status: payment.StatusDone, TotalAmount: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.initiate(t, "client-1", 1)
			tt.lookup.OrderID = req.OrderID
			alreadyProcessed := &payment.Error{Status: 400, Code: payment.CodeAlreadyProcessed, Message: "이미 처리된 결제 입니다."}

			f.orders.On("GetOrderByCorrelationID", mock.Anything, req.OrderID).Return(nil, order.ErrOrderNotFound).Once()
			f.gateway.On("Confirm", mock.Anything, "pk", req.OrderID, int64(100)).Return(nil, alreadyProcessed).Once()
			f.gateway.On("GetByOrderID", mock.Anything, req.OrderID).Return(tt.lookup, nil).Once()

			_, err := f.svc.ConfirmSuccess(context.Background(), req.OrderID, 100, "pk")
			var got *payment.Error
			require.ErrorAs(t, err, &got)
			assert.Equal(t, payment.CodeAlreadyProcessed, got.Code)
			f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestRecordFailure(t *testing.T) {
	tests := []struct {
		code          string
		wantCancelled bool
	}{
		{code: "USER_CANCEL", wantCancelled: true},
		{code: "PAY_PROCESS_CANCELED", wantCancelled: true},
		{code: "REJECT_CARD_COMPANY", wantCancelled: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := newFixture(t)
			req := f.initiate(t, "client-1", 1)

			got := f.svc.RecordFailure(context.Background(), tt.code, "메시지 원문", req.OrderID)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, "메시지 원문", got.Message)
			assert.Equal(t, tt.wantCancelled, got.Cancelled)

			_, err := f.pending.Get(context.Background(), req.OrderID)
			require.ErrorIs(t, err, checkout.ErrPendingNotFound)
			f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			f.initiate(t, "client-1", 1)
		})
	}
}
