package inquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const SuccessMessage = "신청이 성공적으로 접수되었습니다!"

var ErrInvalidRequest = errors.New("invalid purchase request")

// Request is a free-form "buy this for me" submission from the landing form.
type Request struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Product   string    `json:"product"`
	URL       string    `json:"url"`
	Quantity  int       `json:"quantity"`
	Budget    string    `json:"budget"`
	Message   string    `json:"message"`
	Country   string    `json:"country"`
	Delivery  string    `json:"delivery"`
	CreatedAt time.Time `json:"createdAt"`
}

type Receipt struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Repository interface {
	Create(ctx context.Context, r *Request) error
	List(ctx context.Context, limit int) ([]Request, error)
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (p *postgresRepository) Create(ctx context.Context, r *Request) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate purchase request id: %w", err)
	}
	r.ID = id

	query := `
		INSERT INTO purchase_requests (id, name, email, phone, product, url, quantity, budget, message, country, delivery, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = p.db.Exec(ctx, query,
		r.ID, r.Name, r.Email, r.Phone, r.Product, r.URL, r.Quantity,
		r.Budget, r.Message, r.Country, r.Delivery, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert purchase request: %w", err)
	}
	return nil
}

func (p *postgresRepository) List(ctx context.Context, limit int) ([]Request, error) {
	query := `
		SELECT id, name, email, phone, product, url, quantity, budget, message, country, delivery, created_at
		FROM purchase_requests
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := p.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query purchase requests: %w", err)
	}
	defer rows.Close()

	requests := make([]Request, 0)
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &r.Product, &r.URL, &r.Quantity,
			&r.Budget, &r.Message, &r.Country, &r.Delivery, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan purchase request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating purchase requests: %w", err)
	}
	return requests, nil
}

type Service interface {
	Submit(ctx context.Context, r *Request) (*Receipt, error)
	List(ctx context.Context, limit int) ([]Request, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Submit(ctx context.Context, r *Request) (*Receipt, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Product = strings.TrimSpace(r.Product)
	switch {
	case r.Name == "", r.Email == "", r.Product == "":
		return nil, fmt.Errorf("%w: name, email and product are required", ErrInvalidRequest)
	case r.Quantity < 1:
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
	}

	r.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, r); err != nil {
		log.Error().Err(err).Str("email", r.Email).Msg("service: failed to store purchase request")
		return nil, fmt.Errorf("service: failed to submit purchase request: %w", err)
	}

	log.Info().Stringer("request_id", r.ID).Str("product", r.Product).Msg("service: purchase request received")
	return &Receipt{Success: true, Message: SuccessMessage, Timestamp: r.CreatedAt}, nil
}

func (s *service) List(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	requests, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list purchase requests: %w", err)
	}
	return requests, nil
}
