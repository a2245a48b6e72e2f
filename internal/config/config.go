package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Payment   PaymentConfig
	OAuth     OAuthConfig
	Session   SessionConfig
	News      NewsConfig
	Assistant AssistantConfig
	Mail      MailConfig
	Admin     AdminConfig
}

type AppConfig struct {
	Port         string
	PublicOrigin string // scheme://host[:port] the browser sees; redirect and postMessage target
	LogLevel     string
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type PaymentConfig struct {
	BaseURL    string
	ClientKey  string
	SecretKey  string
	Timeout    time.Duration
	PendingTTL time.Duration
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

type OAuthConfig struct {
	Google           OAuthProviderConfig
	Kakao            OAuthProviderConfig
	Naver            OAuthProviderConfig
	HandshakeTimeout time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type NewsConfig struct {
	FeedURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type AssistantConfig struct {
	BaseURL string
	Model   string
}

type MailConfig struct {
	Host string
	Port string
	From string
}

type AdminConfig struct {
	Emails []string
}

// NewConfig reads an optional .env file and then the process environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.PublicOrigin = strings.TrimRight(getEnv("APP_PUBLIC_ORIGIN", "http://localhost:"+cfg.App.Port), "/")
	cfg.App.LogLevel = getEnv("LOG_LEVEL", "info")

	var err error
	if cfg.App.WriteTimeout, err = getEnvDuration("APP_WRITE_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	if cfg.Postgres.Host == "" {
		return nil, errors.New("DB_HOST is required")
	}
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	if cfg.Postgres.User == "" {
		return nil, errors.New("DB_USER is required")
	}
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	if cfg.Postgres.DBName == "" {
		return nil, errors.New("DB_NAME is required")
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConns = int32(maxConns)
	cfg.Postgres.MinConns = int32(minConns)
	if cfg.Postgres.MaxConnLifetime, err = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.Payment.BaseURL = getEnv("PAYMENT_BASE_URL", "https://api.tosspayments.com")
	cfg.Payment.ClientKey = os.Getenv("PAYMENT_CLIENT_KEY")
	cfg.Payment.SecretKey = os.Getenv("PAYMENT_SECRET_KEY")
	if cfg.Payment.Timeout, err = getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Payment.PendingTTL, err = getEnvDuration("PAYMENT_PENDING_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.OAuth.Google = OAuthProviderConfig{ClientID: os.Getenv("GOOGLE_CLIENT_ID"), ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET")}
	cfg.OAuth.Kakao = OAuthProviderConfig{ClientID: os.Getenv("KAKAO_CLIENT_ID"), ClientSecret: os.Getenv("KAKAO_CLIENT_SECRET")}
	cfg.OAuth.Naver = OAuthProviderConfig{ClientID: os.Getenv("NAVER_CLIENT_ID"), ClientSecret: os.Getenv("NAVER_CLIENT_SECRET")}
	if cfg.OAuth.HandshakeTimeout, err = getEnvDuration("OAUTH_HANDSHAKE_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}

	cfg.Session.Secret = os.Getenv("SESSION_SECRET")
	if len(cfg.Session.Secret) < 32 {
		return nil, errors.New("SESSION_SECRET is required and must be at least 32 characters")
	}
	if cfg.Session.TTL, err = getEnvDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.News.FeedURL = getEnv("NEWS_FEED_URL", "https://www.yonhapnewstv.co.kr/browse/feed/")
	if cfg.News.CacheTTL, err = getEnvDuration("NEWS_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.News.Timeout, err = getEnvDuration("NEWS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.Assistant.BaseURL = getEnv("ASSISTANT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	cfg.Assistant.Model = getEnv("ASSISTANT_MODEL", "gemini-2.0-flash")

	cfg.Mail.Host = os.Getenv("SMTP_HOST")
	cfg.Mail.Port = getEnv("SMTP_PORT", "25")
	cfg.Mail.From = getEnv("SMTP_FROM", "no-reply@localhost")

	cfg.Admin.Emails = splitList(os.Getenv("ADMIN_EMAILS"))

	return cfg, nil
}

// DSN builds a keyword/value connection string for pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
