package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	CreateWithPassword(ctx context.Context, p *Profile, passwordHash string) error
	CreateWithIdentity(ctx context.Context, p *Profile, provider Provider, externalID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	FindByIdentity(ctx context.Context, provider Provider, externalID string) (*Profile, error)
	GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
	Update(ctx context.Context, p *Profile) error
	List(ctx context.Context, limit int) ([]Profile, error)
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const profileColumns = `id, email, name, phone, grade, created_at, updated_at`

func scanProfile(row pgx.Row, p *Profile) error {
	return row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.Grade, &p.CreatedAt, &p.UpdatedAt)
}

// mapUniqueViolation turns constraint names into domain errors.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_users_email":
		return ErrEmailInUse
	case "identity_links_pkey":
		return ErrIdentityExists
	}
	return err
}

func (r *postgresRepository) withTx(ctx context.Context, userID uuid.UUID, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("user_id", userID).Msg("Panic recovered during user transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
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

func assignID(p *Profile) error {
	if p.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate user ID: %w", err)
	}
	p.ID = id
	return nil
}

func (r *postgresRepository) insertProfile(ctx context.Context, tx pgx.Tx, p *Profile) error {
	if p.Grade == "" {
		p.Grade = GradeSilver
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := tx.Exec(ctx, `
		INSERT INTO users (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Email, p.Name, p.Phone, string(p.Grade), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresRepository) CreateWithPassword(ctx context.Context, p *Profile, passwordHash string) error {
	if err := assignID(p); err != nil {
		return err
	}
	return r.withTx(ctx, p.ID, func(tx pgx.Tx) error {
		if err := r.insertProfile(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO credentials (user_id, password_hash, updated_at) VALUES ($1, $2, $3)`,
			p.ID, passwordHash, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert credential: %w", err)
		}
		return nil
	})
}

func (r *postgresRepository) CreateWithIdentity(ctx context.Context, p *Profile, provider Provider, externalID string) error {
	if err := assignID(p); err != nil {
		return err
	}
	return r.withTx(ctx, p.ID, func(tx pgx.Tx) error {
		if err := r.insertProfile(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO identity_links (provider, external_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
			string(provider), externalID, p.ID, p.CreatedAt,
		)
		if err != nil {
			if mapped := mapUniqueViolation(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("repository: failed to insert identity link: %w", err)
		}
		return nil
	})
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %s: %w", id, err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE email <> '' AND lower(email) = lower($1)`, email), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by email: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) FindByIdentity(ctx context.Context, provider Provider, externalID string) (*Profile, error) {
	query := `
		SELECT u.id, u.email, u.name, u.phone, u.grade, u.created_at, u.updated_at
		FROM identity_links l
		JOIN users u ON u.id = l.user_id
		WHERE l.provider = $1 AND l.external_id = $2
	`
	var p Profile
	if err := scanProfile(r.db.QueryRow(ctx, query, string(provider), externalID), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by %s identity: %w", provider, err)
	}
	return &p, nil
}

func (r *postgresRepository) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM credentials WHERE user_id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("repository: failed to select credential for user %s: %w", id, err)
	}
	return hash, nil
}

func (r *postgresRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotFound
		}
		return fmt.Errorf("repository: failed to store credential for user %s: %w", id, err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Profile) error {
	p.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $1, phone = $2, updated_at = $3 WHERE id = $4`,
		p.Name, p.Phone, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update user %s: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context, limit int) ([]Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		if err := scanProfile(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan user: %w", err)
		}
		users = append(users, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating users: %w", err)
	}
	return users, nil
}
