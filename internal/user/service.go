package user

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	SignUp(ctx context.Context, in SignUpInput) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SocialSignIn(ctx context.Context, ext ExternalProfile) (*Session, error)
	Authenticate(ctx context.Context, token string) (*Claims, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*Profile, error)
	ListUsers(ctx context.Context, limit int) ([]Profile, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

type service struct {
	repo     Repository
	tokens   *TokenIssuer
	limiter  *SignInLimiter
	mailer   Mailer
	origin   string
	validate *validator.Validate
}

// NewService builds the identity broker. origin is used to build password-reset links.
func NewService(repo Repository, tokens *TokenIssuer, limiter *SignInLimiter, mailer Mailer, origin string) Service {
	return &service{
		repo:     repo,
		tokens:   tokens,
		limiter:  limiter,
		mailer:   mailer,
		origin:   strings.TrimRight(origin, "/"),
		validate: validator.New(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	// Checked in this order, before the store is touched.
	if in.Password != in.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	if !in.AgreeTerms || !in.AgreePrivacy {
		return nil, ErrAgreementRequired
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	email := normalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultName
	}
	p := &Profile{
		Email: email,
		Name:  name,
		Phone: strings.TrimSpace(in.Phone),
		Grade: GradeSilver,
	}
	if err := s.repo.CreateWithPassword(ctx, p, string(hash)); err != nil {
		if errors.Is(err, ErrEmailInUse) {
			return nil, ErrEmailInUse
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}

	log.Info().Stringer("user_id", p.ID).Bool("marketing", in.AgreeMarketing).Msg("service: user signed up")
	return s.tokens.IssueSession(p)
}

func (s *service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if !s.limiter.Allow(email) {
		log.Warn().Str("email", email).Msg("service: sign-in rate limited")
		return nil, ErrTooManyRequests
	}

	p, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch user by email: %w", err)
	}

	hash, err := s.repo.GetPasswordHash(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Social-only account without a password.
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("service: failed to fetch credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	s.limiter.Reset(email)
	log.Info().Stringer("user_id", p.ID).Msg("service: user signed in")
	return s.tokens.IssueSession(p)
}

// SocialSignIn resolves a provider identity to exactly one profile, creating it on first sight.
func (s *service) SocialSignIn(ctx context.Context, ext ExternalProfile) (*Session, error) {
	if ext.ExternalID == "" {
		return nil, ErrProviderRejected
	}

	p, err := s.repo.FindByIdentity(ctx, ext.Provider, ext.ExternalID)
	if err == nil {
		return s.tokens.IssueSession(p)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("service: failed to look up identity: %w", err)
	}

	name := strings.TrimSpace(ext.Name)
	if name == "" {
		name = ext.Provider.DefaultName()
	}
	p = &Profile{
		Email: normalizeEmail(ext.Email),
		Name:  name,
		Grade: GradeSilver,
	}
	err = s.repo.CreateWithIdentity(ctx, p, ext.Provider, ext.ExternalID)
	switch {
	case err == nil:
		log.Info().Stringer("user_id", p.ID).Stringer("provider", ext.Provider).Msg("service: user created from social sign-in")
		return s.tokens.IssueSession(p)
	case errors.Is(err, ErrIdentityExists):
		// Lost a race with a concurrent first sign-in of the same identity.
		p, err = s.repo.FindByIdentity(ctx, ext.Provider, ext.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("service: failed to look up identity after conflict: %w", err)
		}
		return s.tokens.IssueSession(p)
	case errors.Is(err, ErrEmailInUse):
		return nil, ErrEmailInUse
	default:
		log.Error().Err(err).Stringer("provider", ext.Provider).Msg("service: failed to create social user")
		return nil, fmt.Errorf("service: failed to create social user: %w", err)
	}
}

func (s *service) Authenticate(_ context.Context, token string) (*Claims, error) {
	return s.tokens.ParseSession(token)
}

func (s *service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch user: %w", err)
	}
	return p, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*Profile, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	p.Phone = strings.TrimSpace(phone)

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("service: failed to update user: %w", err)
	}
	return p, nil
}

func (s *service) ListUsers(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	users, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	p, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("service: failed to fetch user by email: %w", err)
	}

	token, err := s.tokens.IssueReset(p)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	link := s.origin + "/reset-password?token=" + url.QueryEscape(token)
	body := "안녕하세요, " + p.Name + "님.\n\n아래 링크에서 비밀번호를 재설정해주세요. 링크는 30분 동안 유효합니다.\n" + link + "\n"

	if err := s.mailer.Send(ctx, p.Email, "비밀번호 재설정 안내", body); err != nil {
		log.Error().Err(err).Stringer("user_id", p.ID).Msg("service: failed to send reset mail")
		return fmt.Errorf("service: failed to send reset mail: %w", err)
	}
	return nil
}

func (s *service) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	id, _ := claims.UserID()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("service: failed to hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, id, string(hash)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("service: failed to store password: %w", err)
	}
	log.Info().Stringer("user_id", id).Msg("service: password reset")
	return nil
}
