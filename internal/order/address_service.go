package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

var ErrInvalidAddress = errors.New("invalid address")

type AddressService interface {
	AddAddress(ctx context.Context, a *Address) (*Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error)
	SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) error
	DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error
}

type addressService struct {
	repo AddressRepository
}

func NewAddressService(repo AddressRepository) AddressService {
	return &addressService{repo: repo}
}

func (s *addressService) AddAddress(ctx context.Context, a *Address) (*Address, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Address = strings.TrimSpace(a.Address)
	a.Detail = strings.TrimSpace(a.Detail)
	if a.UserID == uuid.Nil || a.Name == "" || a.Phone == "" || a.Address == "" {
		return nil, ErrInvalidAddress
	}
	a.ID = uuid.Nil

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("service: failed to add address: %w", err)
	}
	return a, nil
}

func (s *addressService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	addresses, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list addresses: %w", err)
	}
	return addresses, nil
}

func (s *addressService) SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if err := s.repo.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, ErrAddressNotFound) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("service: failed to set default address: %w", err)
	}
	return nil
}

func (s *addressService) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, addressID); err != nil {
		if errors.Is(err, ErrAddressNotFound) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("service: failed to delete address: %w", err)
	}
	return nil
}
