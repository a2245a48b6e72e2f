package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	Seed(ctx context.Context) (int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// ListProducts never fails: an empty or unreachable store yields the fallback list.
func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("service: failed to list products, serving fallback")
		return Fallback(), nil
	}
	if len(products) == 0 {
		log.Debug().Msg("service: product store is empty, serving fallback")
		return Fallback(), nil
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		log.Warn().Err(err).Stringer("product_id", id).Msg("service: failed to get product, consulting fallback")
	}
	if fp, ok := fallbackByID(id); ok {
		return fp, nil
	}
	return nil, ErrProductNotFound
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.Nil
	if err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}
	log.Info().Stringer("product_id", p.ID).Str("name", p.Name).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product in repository")
		return fmt.Errorf("service: failed to update product: %w", err)
	}
	return nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product in repository")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}
	log.Info().Stringer("product_id", id).Msg("service: product deleted")
	return nil
}

// Seed writes the initial product set and reports how many were inserted.
func (s *service) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, sp := range seedProducts {
		p := sp
		p.ID = uuid.Nil
		p.Specs = append([]string(nil), sp.Specs...)
		if err := s.repo.Create(ctx, &p); err != nil {
			return inserted, fmt.Errorf("service: failed to seed product %q: %w", p.Name, err)
		}
		inserted++
	}
	log.Info().Int("count", inserted).Msg("service: catalog seeded")
	return inserted, nil
}
