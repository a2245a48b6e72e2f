package user

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vasiliy-maslov/buyproxy/internal/config"
	"golang.org/x/oauth2"
)

// Endpoint describes where a provider authorizes, issues tokens and reports the profile.
type Endpoint struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

var defaultEndpoints = map[Provider]Endpoint{
	ProviderGoogle: {
		AuthURL:    "https://accounts.google.com/o/oauth2/auth",
		TokenURL:   "https://oauth2.googleapis.com/token",
		ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
	},
	ProviderKakao: {
		AuthURL:    "https://kauth.kakao.com/oauth/authorize",
		TokenURL:   "https://kauth.kakao.com/oauth/token",
		ProfileURL: "https://kapi.kakao.com/v2/user/me",
	},
	ProviderNaver: {
		AuthURL:    "https://nid.naver.com/oauth2.0/authorize",
		TokenURL:   "https://nid.naver.com/oauth2.0/token",
		ProfileURL: "https://openapi.naver.com/v1/nid/me",
	},
}

type OAuthClient interface {
	AuthURL(provider Provider, state string) (string, error)
	Exchange(ctx context.Context, provider Provider, code, state string) (*ExternalProfile, error)
}

type oauthProvider struct {
	cfg        *oauth2.Config
	profileURL string
}

type oauthClient struct {
	providers  map[Provider]*oauthProvider
	httpClient *http.Client
}

type OAuthOption func(*oauthClient, map[Provider]Endpoint)

// WithEndpoint overrides the URLs used for provider.
func WithEndpoint(provider Provider, e Endpoint) OAuthOption {
	return func(_ *oauthClient, endpoints map[Provider]Endpoint) {
		endpoints[provider] = e
	}
}

func WithHTTPClient(c *http.Client) OAuthOption {
	return func(o *oauthClient, _ map[Provider]Endpoint) {
		o.httpClient = c
	}
}

// NewOAuthClient configures every provider that has a client id. Callbacks land on
// {origin}/api/auth/{provider}/callback.
func NewOAuthClient(cfg config.OAuthConfig, origin string, opts ...OAuthOption) OAuthClient {
	c := &oauthClient{
		providers:  make(map[Provider]*oauthProvider),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	endpoints := make(map[Provider]Endpoint, len(defaultEndpoints))
	for p, e := range defaultEndpoints {
		endpoints[p] = e
	}
	for _, opt := range opts {
		opt(c, endpoints)
	}

	creds := map[Provider]config.OAuthProviderConfig{
		ProviderGoogle: cfg.Google,
		ProviderKakao:  cfg.Kakao,
		ProviderNaver:  cfg.Naver,
	}
	for p, cred := range creds {
		if cred.ClientID == "" {
			continue
		}
		e := endpoints[p]
		oc := &oauth2.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			RedirectURL:  origin + "/api/auth/" + p.String() + "/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   e.AuthURL,
				TokenURL:  e.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		if p == ProviderGoogle {
			oc.Scopes = []string{"openid", "email", "profile"}
			oc.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
		}
		c.providers[p] = &oauthProvider{cfg: oc, profileURL: e.ProfileURL}
	}
	return c
}

func (c *oauthClient) provider(p Provider) (*oauthProvider, error) {
	if _, err := ParseProvider(string(p)); err != nil {
		return nil, err
	}
	op, ok := c.providers[p]
	if !ok {
		return nil, ErrProviderDisabled
	}
	return op, nil
}

func (c *oauthClient) AuthURL(p Provider, state string) (string, error) {
	op, err := c.provider(p)
	if err != nil {
		return "", err
	}
	return op.cfg.AuthCodeURL(state), nil
}

func (c *oauthClient) Exchange(ctx context.Context, p Provider, code, state string) (*ExternalProfile, error) {
	op, err := c.provider(p)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := op.cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("state", state))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrProviderRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, op.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	resp, err := op.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: profile request: %v", ErrProviderRejected, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s profile: %w", p, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile status %d", ErrProviderRejected, resp.StatusCode)
	}

	ext, err := parseProfile(p, body)
	if err != nil {
		return nil, err
	}
	ext.Provider = p
	return ext, nil
}

type googleProfile struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type kakaoProfile struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname string `json:"nickname"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

type naverProfile struct {
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	Response   struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"response"`
}

func parseProfile(p Provider, body []byte) (*ExternalProfile, error) {
	switch p {
	case ProviderGoogle:
		var g googleProfile
		if err := json.Unmarshal(body, &g); err != nil {
			return nil, fmt.Errorf("failed to decode google profile: %w", err)
		}
		return &ExternalProfile{ExternalID: g.Sub, Email: g.Email, Name: g.Name}, nil
	case ProviderKakao:
		var k kakaoProfile
		if err := json.Unmarshal(body, &k); err != nil {
			return nil, fmt.Errorf("failed to decode kakao profile: %w", err)
		}
		if k.ID == 0 {
			return nil, fmt.Errorf("%w: kakao profile without id", ErrProviderRejected)
		}
		return &ExternalProfile{
			ExternalID: strconv.FormatInt(k.ID, 10),
			Email:      k.KakaoAccount.Email,
			Name:       k.KakaoAccount.Profile.Nickname,
		}, nil
	case ProviderNaver:
		var n naverProfile
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("failed to decode naver profile: %w", err)
		}
		if n.ResultCode != "00" {
			return nil, fmt.Errorf("%w: naver resultcode %s %s", ErrProviderRejected, n.ResultCode, n.Message)
		}
		return &ExternalProfile{ExternalID: n.Response.ID, Email: n.Response.Email, Name: n.Response.Name}, nil
	}
	return nil, ErrUnknownProvider
}
