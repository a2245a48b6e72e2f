package order

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
)

// kst is the storefront's business day zone.
var kst = time.FixedZone("KST", 9*60*60)

type CategorySales struct {
	Category string  `json:"category" db:"category"`
	Orders   int     `json:"orders" db:"orders"`
	Revenue  int64   `json:"revenue" db:"revenue"`
	Share    float64 `json:"share" db:"-"`
}

type Dashboard struct {
	TodayOrders  int             `json:"todayOrders"`
	TodayRevenue int64           `json:"todayRevenue"`
	NewMembers   int             `json:"newMembers"`
	Pending      int             `json:"pending"`
	Categories   []CategorySales `json:"categories"`
	RecentOrders []Order         `json:"recentOrders"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

type StatsReader interface {
	Dashboard(ctx context.Context, now time.Time) (*Dashboard, error)
}

type sqlxStatsReader struct {
	db *sqlx.DB
}

func NewStatsReader(db *sqlx.DB) StatsReader {
	return &sqlxStatsReader{db: db}
}

// StartOfDay returns local midnight in KST for t.
func StartOfDay(t time.Time) time.Time {
	k := t.In(kst)
	return time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, kst)
}

func (r *sqlxStatsReader) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	since := StartOfDay(now)
	d := &Dashboard{GeneratedAt: now}

	var today struct {
		Orders  int   `db:"orders"`
		Revenue int64 `db:"revenue"`
	}
	err := r.db.GetContext(ctx, &today, `
		SELECT count(*) AS orders, COALESCE(sum(total_amount), 0)::bigint AS revenue
		FROM orders
		WHERE created_at >= $1 AND status <> $2`, since, string(StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to aggregate today's orders: %w", err)
	}
	d.TodayOrders = today.Orders
	d.TodayRevenue = today.Revenue

	if err := r.db.GetContext(ctx, &d.NewMembers, `SELECT count(*) FROM users WHERE created_at >= $1`, since); err != nil {
		return nil, fmt.Errorf("repository: failed to count new members: %w", err)
	}
	if err := r.db.GetContext(ctx, &d.Pending, `SELECT count(*) FROM orders WHERE status = $1`, string(StatusPaymentComplete)); err != nil {
		return nil, fmt.Errorf("repository: failed to count pending orders: %w", err)
	}

	d.Categories = make([]CategorySales, 0)
	err = r.db.SelectContext(ctx, &d.Categories, `
		SELECT COALESCE(NULLIF(category, ''), '기타') AS category,
		       count(*) AS orders,
		       COALESCE(sum(total_amount), 0)::bigint AS revenue
		FROM orders
		WHERE status <> $1
		GROUP BY 1
		ORDER BY revenue DESC`, string(StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to aggregate category sales: %w", err)
	}
	applyShares(d.Categories)

	d.RecentOrders = make([]Order, 0)
	err = r.db.SelectContext(ctx, &d.RecentOrders,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select recent orders: %w", err)
	}

	return d, nil
}

// applyShares fills each category's percentage of total revenue, rounded to one decimal.
func applyShares(cs []CategorySales) {
	var total int64
	for _, c := range cs {
		total += c.Revenue
	}
	if total == 0 {
		return
	}
	for i := range cs {
		cs[i].Share = math.Round(float64(cs[i].Revenue)/float64(total)*1000) / 10
	}
}
