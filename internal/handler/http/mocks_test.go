package http_test

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/buyproxy/internal/assistant"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
	"github.com/vasiliy-maslov/buyproxy/internal/checkout"
	"github.com/vasiliy-maslov/buyproxy/internal/inquiry"
	"github.com/vasiliy-maslov/buyproxy/internal/news"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) SignUp(ctx context.Context, in user.SignUpInput) (*user.Session, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Session), args.Error(1)
}

func (m *MockUserService) SignIn(ctx context.Context, email, password string) (*user.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Session), args.Error(1)
}

func (m *MockUserService) SocialSignIn(ctx context.Context, ext user.ExternalProfile) (*user.Session, error) {
	args := m.Called(ctx, ext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Session), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, token string) (*user.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Claims), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, id uuid.UUID) (*user.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Profile), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*user.Profile, error) {
	args := m.Called(ctx, id, name, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Profile), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit int) ([]user.Profile, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.Profile), args.Error(1)
}

func (m *MockUserService) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return m.Called(ctx, token, password).Error(0)
}

// expectSession makes token authenticate as the given user.
func (m *MockUserService) expectSession(token string, id uuid.UUID, email string) {
	m.On("Authenticate", mock.Anything, token).Return(&user.Claims{
		Email:            email,
		Type:             "session",
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()},
	}, nil)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductService) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductService) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductService) Seed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Initiate(ctx context.Context, in checkout.Input) (*checkout.PaymentRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.PaymentRequest), args.Error(1)
}

func (m *MockCheckoutService) ConfirmSuccess(ctx context.Context, orderID string, amount int64, paymentKey string) (*checkout.Receipt, error) {
	args := m.Called(ctx, orderID, amount, paymentKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Receipt), args.Error(1)
}

func (m *MockCheckoutService) RecordFailure(ctx context.Context, code, message, orderID string) checkout.Failure {
	return m.Called(ctx, code, message, orderID).Get(0).(checkout.Failure)
}

func (m *MockCheckoutService) Release(ctx context.Context, clientKey string) {
	m.Called(ctx, clientKey)
}

func (m *MockCheckoutService) Ready() bool {
	return m.Called().Bool(0)
}

type MockOAuthClient struct {
	mock.Mock
}

func (m *MockOAuthClient) AuthURL(p user.Provider, state string) (string, error) {
	args := m.Called(p, state)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthClient) Exchange(ctx context.Context, p user.Provider, code, state string) (*user.ExternalProfile, error) {
	args := m.Called(ctx, p, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.ExternalProfile), args.Error(1)
}

type MockNewsService struct {
	mock.Mock
}

func (m *MockNewsService) Digest(ctx context.Context) (*news.Digest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*news.Digest), args.Error(1)
}

type MockAssistantService struct {
	mock.Mock
}

func (m *MockAssistantService) Open(ctx context.Context, apiKey string, history []assistant.Message) (*assistant.Reply, error) {
	args := m.Called(ctx, apiKey, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.Reply), args.Error(1)
}

type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) Submit(ctx context.Context, r *inquiry.Request) (*inquiry.Receipt, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inquiry.Receipt), args.Error(1)
}

func (m *MockInquiryService) List(ctx context.Context, limit int) ([]inquiry.Request, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inquiry.Request), args.Error(1)
}
