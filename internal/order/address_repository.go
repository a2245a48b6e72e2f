package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var ErrAddressNotFound = errors.New("address not found")

type AddressRepository interface {
	Create(ctx context.Context, a *Address) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Address, error)
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) error
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
}

type postgresAddressRepository struct {
	db DB
}

func NewAddressRepository(db DB) AddressRepository {
	return &postgresAddressRepository{db: db}
}

func (r *postgresAddressRepository) inTx(ctx context.Context, userID uuid.UUID, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("user_id", userID).Msg("Panic recovered during address transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("user_id", userID).Msg("Address transaction failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Stringer("user_id", userID).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

func clearDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, userID); err != nil {
		return fmt.Errorf("repository: failed to clear default address: %w", err)
	}
	return nil
}

// Create stores a. A user's first address always becomes the default.
func (r *postgresAddressRepository) Create(ctx context.Context, a *Address) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate address ID: %w", err)
		}
		a.ID = id
	}
	a.CreatedAt = time.Now().UTC()

	return r.inTx(ctx, a.UserID, func(tx pgx.Tx) error {
		var existing int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id = $1`, a.UserID).Scan(&existing); err != nil {
			return fmt.Errorf("repository: failed to count addresses: %w", err)
		}
		if existing == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := clearDefault(ctx, tx, a.UserID); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO addresses (id, user_id, name, phone, address, detail, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, a.UserID, a.Name, a.Phone, a.Address, a.Detail, a.IsDefault, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert address: %w", err)
		}
		return nil
	})
}

func (r *postgresAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, name, phone, address, detail, is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query addresses for user %s: %w", userID, err)
	}
	defer rows.Close()

	addresses := make([]Address, 0)
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Address, &a.Detail, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating addresses: %w", err)
	}
	return addresses, nil
}

// SetDefault makes addressID the only default address of userID.
func (r *postgresAddressRepository) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	return r.inTx(ctx, userID, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, userID); err != nil {
			return err
		}
		cmdTag, err := tx.Exec(ctx, `UPDATE addresses SET is_default = TRUE WHERE id = $1 AND user_id = $2`, addressID, userID)
		if err != nil {
			return fmt.Errorf("repository: failed to set default address: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrAddressNotFound
		}
		return nil
	})
}

func (r *postgresAddressRepository) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete address %s: %w", addressID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}
