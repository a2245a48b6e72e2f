package order_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
	"github.com/vasiliy-maslov/buyproxy/internal/db"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
)

var testDB *db.Postgres

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	cfg := config.PostgresConfig{
		Host:            getEnv("DB_HOST_TEST", "localhost"),
		Port:            getEnv("DB_PORT_TEST", "5432"),
		User:            getEnv("DB_USER_TEST", "postgres"),
		Password:        getEnv("DB_PASSWORD_TEST", "postgres"),
		DBName:          getEnv("DB_NAME_TEST", "buyproxy_test"),
		SSLMode:         getEnv("DB_SSLMODE_TEST", "disable"),
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
		MigrationsPath:  "../../migrations",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := db.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("host", cfg.Host).Msg("Test database unavailable, repository tests will be skipped")
	} else if err := pg.Migrate(); err != nil {
		log.Warn().Err(err).Msg("Failed to migrate test database, repository tests will be skipped")
		pg.Close()
	} else {
		testDB = pg
	}

	code := m.Run()
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *db.Postgres {
	t.Helper()
	if testDB == nil {
		t.Skip("test database is not available")
	}
	return testDB
}

func newTestOrder(t *testing.T) *order.Order {
	t.Helper()
	correlationID := fmt.Sprintf("ORDER_%d_%s", time.Now().UnixMilli(), uuid.Must(uuid.NewV4()).String()[:9])
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(context.Background(), `DELETE FROM orders WHERE order_id = $1`, correlationID)
	})
	return &order.Order{
		ProductID:   uuid.Must(uuid.NewV4()),
		ProductName: "Apple AirPods Pro 2",
		Category:    "전자기기",
		Quantity:    2,
		TotalAmount: 598000,
		Status:      order.StatusPaymentComplete,
		PaymentKey:  "tgen_20250101ABCDEFGHIJ",
		OrderID:     correlationID,
	}
}

func TestRepository_CreateAndGetOrder(t *testing.T) {
	pg := requireDB(t)
	repo := order.NewRepository(pg.Pool)
	ctx := context.Background()

	o := newTestOrder(t)
	require.NoError(t, repo.CreateOrder(ctx, o))
	require.NotEqual(t, uuid.Nil, o.ID)

	got, err := repo.GetOrderByCorrelationID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.TotalAmount, got.TotalAmount)
	assert.Equal(t, order.StatusPaymentComplete, got.Status)
	assert.False(t, got.UserID.Valid)

	byID, err := repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, byID.OrderID)
}

func TestRepository_CreateOrder_Duplicate(t *testing.T) {
	pg := requireDB(t)
	repo := order.NewRepository(pg.Pool)
	ctx := context.Background()

	o := newTestOrder(t)
	require.NoError(t, repo.CreateOrder(ctx, o))

	dup := *o
	dup.ID = uuid.Nil
	err := repo.CreateOrder(ctx, &dup)
	assert.True(t, errors.Is(err, order.ErrDuplicateOrder), "got %v", err)
}

func TestRepository_UpdateOrderStatus(t *testing.T) {
	pg := requireDB(t)
	repo := order.NewRepository(pg.Pool)
	ctx := context.Background()

	o := newTestOrder(t)
	require.NoError(t, repo.CreateOrder(ctx, o))

	require.NoError(t, repo.UpdateOrderStatus(ctx, o.ID, order.StatusProxyPurchasing))
	got, err := repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProxyPurchasing, got.Status)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	err = repo.UpdateOrderStatus(ctx, uuid.Must(uuid.NewV4()), order.StatusShipping)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepository_GetOrder_NotFound(t *testing.T) {
	pg := requireDB(t)
	repo := order.NewRepository(pg.Pool)

	_, err := repo.GetOrderByCorrelationID(context.Background(), "ORDER_0_missing00")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func findCategory(cs []order.CategorySales, name string) (order.CategorySales, bool) {
	for _, c := range cs {
		if c.Category == name {
			return c, true
		}
	}
	return order.CategorySales{}, false
}

func TestStatsReader_Dashboard(t *testing.T) {
	pg := requireDB(t)
	repo := order.NewRepository(pg.Pool)
	stats := order.NewStatsReader(pg.SQLX())
	ctx := context.Background()

	before, err := stats.Dashboard(ctx, time.Now())
	require.NoError(t, err)

	suffix := uuid.Must(uuid.NewV4()).String()[:8]
	shoes, bags := "신발-"+suffix, "가방-"+suffix

	memberID := uuid.Must(uuid.NewV4())
	_, err = pg.Pool.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2)`, memberID, "통계 테스트")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, memberID)
	})

	seed := []struct {
		category string
		amount   int64
		status   order.OrderStatus
	}{
		{"", 700, order.StatusPaymentComplete},
		{shoes, 1000, order.StatusPaymentComplete},
		{shoes, 1000, order.StatusPaymentComplete},
		{shoes, 1000, order.StatusPaymentComplete},
		{shoes, 1000, order.StatusPaymentComplete},
		{bags, 500, order.StatusShipping},
		{shoes, 9999, order.StatusCancelled},
	}
	created := make([]*order.Order, 0, len(seed))
	for _, s := range seed {
		o := newTestOrder(t)
		o.Category = s.category
		o.TotalAmount = s.amount
		o.Status = s.status
		require.NoError(t, repo.CreateOrder(ctx, o))
		created = append(created, o)
		time.Sleep(2 * time.Millisecond)
	}

	after, err := stats.Dashboard(ctx, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 6, after.TodayOrders-before.TodayOrders, "cancelled orders are not counted")
	assert.Equal(t, int64(5200), after.TodayRevenue-before.TodayRevenue)
	assert.Equal(t, 5, after.Pending-before.Pending)
	assert.GreaterOrEqual(t, after.NewMembers-before.NewMembers, 1)

	shoeSales, ok := findCategory(after.Categories, shoes)
	require.True(t, ok)
	assert.Equal(t, 4, shoeSales.Orders)
	assert.Equal(t, int64(4000), shoeSales.Revenue)
	bagSales, ok := findCategory(after.Categories, bags)
	require.True(t, ok)
	assert.Equal(t, 1, bagSales.Orders)
	assert.Equal(t, int64(500), bagSales.Revenue)
	otherBefore, _ := findCategory(before.Categories, "기타")
	otherAfter, ok := findCategory(after.Categories, "기타")
	require.True(t, ok, "blank categories roll up under 기타")
	assert.Equal(t, 1, otherAfter.Orders-otherBefore.Orders)
	assert.Equal(t, int64(700), otherAfter.Revenue-otherBefore.Revenue)

	require.Len(t, after.RecentOrders, 5)
	for i, o := range after.RecentOrders {
		want := created[len(created)-1-i]
		assert.Equal(t, want.OrderID, o.OrderID, "recent order %d", i)
		assert.Equal(t, want.Status, o.Status)
	}
}
