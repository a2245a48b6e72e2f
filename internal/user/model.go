package user

import (
	"time"

	"github.com/gofrs/uuid"
)

type Grade string

const (
	GradeSilver Grade = "Silver"
	GradeGold   Grade = "Gold"
	GradeVIP    Grade = "VIP"
)

type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderKakao  Provider = "kakao"
	ProviderNaver  Provider = "naver"
)

func (p Provider) String() string {
	return string(p)
}

const defaultName = "사용자"

// DefaultName is the display name used when a provider returns none.
func (p Provider) DefaultName() string {
	switch p {
	case ProviderKakao:
		return "카카오 사용자"
	case ProviderNaver:
		return "네이버 사용자"
	default:
		return defaultName
	}
}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGoogle, ProviderKakao, ProviderNaver:
		return p, nil
	}
	return "", ErrUnknownProvider
}

type Profile struct {
	ID        uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Grade     Grade     `json:"grade"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExternalProfile is what a social provider reports about the signed-in account.
type ExternalProfile struct {
	Provider   Provider `json:"provider"`
	ExternalID string   `json:"externalId"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
}

type SignUpInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	Name            string
	Phone           string
	AgreeTerms      bool
	AgreePrivacy    bool
	AgreeMarketing  bool
}

// Session is an issued sign-in token together with the profile it belongs to.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   *Profile  `json:"user"`
}
