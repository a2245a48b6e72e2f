package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpHandler "github.com/vasiliy-maslov/buyproxy/internal/handler/http"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

const testOrigin = "http://localhost:3000"

type authFixture struct {
	users      *MockUserService
	oauth      *MockOAuthClient
	handshakes *user.Handshakes
	router     *chi.Mux
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:      new(MockUserService),
		oauth:      new(MockOAuthClient),
		handshakes: user.NewHandshakes(time.Second),
	}
	f.router = httpHandler.NewRouter(f.users, httpHandler.NewAuthHandler(f.users, f.oauth, f.handshakes, testOrigin+"/"))
	return f
}

func (f *authFixture) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func testSession() *user.Session {
	return &user.Session{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Now().Add(time.Hour),
		Profile: &user.Profile{
			ID:    uuid.Must(uuid.NewV4()),
			Email: "kim@example.com",
			Name:  "김철수",
			Grade: user.GradeSilver,
		},
	}
}

func sessionCookieFrom(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("missing_fields", func(t *testing.T) {
		f := newAuthFixture(t)
		rr := f.do(http.MethodPost, "/api/auth/signup", map[string]interface{}{"email": "kim@example.com"})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp httpHandler.ValidationErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Field 'Password' is required")
		f.users.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
	})

	t.Run("unknown_field_rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		rr := f.do(http.MethodPost, "/api/auth/signup", map[string]interface{}{
			"email": "kim@example.com", "password": "password1", "passwordConfirm": "password1", "role": "admin",
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid request payload"}`, rr.Body.String())
	})

	t.Run("email_in_use", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("SignUp", mock.Anything, mock.MatchedBy(func(in user.SignUpInput) bool {
			return in.Email == "kim@example.com" && in.AgreeTerms && in.AgreePrivacy
		})).Return(nil, user.ErrEmailInUse).Once()

		rr := f.do(http.MethodPost, "/api/auth/signup", map[string]interface{}{
			"email": "kim@example.com", "password": "password1", "passwordConfirm": "password1",
			"agreeTerms": true, "agreePrivacy": true,
		})
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.JSONEq(t, `{"error":"이미 사용 중인 이메일입니다."}`, rr.Body.String())
		f.users.AssertExpectations(t)
	})

	t.Run("created", func(t *testing.T) {
		f := newAuthFixture(t)
		session := testSession()
		f.users.On("SignUp", mock.Anything, mock.Anything).Return(session, nil).Once()

		rr := f.do(http.MethodPost, "/api/auth/signup", map[string]interface{}{
			"email": "kim@example.com", "password": "password1", "passwordConfirm": "password1",
			"agreeTerms": true, "agreePrivacy": true,
		})
		require.Equal(t, http.StatusCreated, rr.Code)
		cookie := sessionCookieFrom(rr)
		require.NotNil(t, cookie)
		assert.Equal(t, session.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.False(t, cookie.Secure)
	})
}

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "wrong_password", err: user.ErrInvalidCredential, wantStatus: http.StatusUnauthorized, wantBody: `{"error":"비밀번호가 올바르지 않습니다."}`},
		{name: "unknown_email", err: user.ErrUserNotFound, wantStatus: http.StatusNotFound, wantBody: `{"error":"등록되지 않은 이메일입니다."}`},
		{name: "rate_limited", err: user.ErrTooManyRequests, wantStatus: http.StatusTooManyRequests, wantBody: `{"error":"너무 많은 시도가 있었습니다. 잠시 후 다시 시도해주세요."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.users.On("SignIn", mock.Anything, "kim@example.com", "password1").Return(nil, tt.err).Once()

			rr := f.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": "kim@example.com", "password": "password1"})
			require.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
			assert.Nil(t, sessionCookieFrom(rr))
		})
	}

	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t)
		session := testSession()
		f.users.On("SignIn", mock.Anything, "kim@example.com", "password1").Return(session, nil).Once()

		rr := f.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": "kim@example.com", "password": "password1"})
		require.Equal(t, http.StatusOK, rr.Code)

		var got user.Session
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, session.Token, got.Token)
		require.NotNil(t, got.Profile)
		assert.Equal(t, session.Profile.ID, got.Profile.ID)

		cookie := sessionCookieFrom(rr)
		require.NotNil(t, cookie)
		assert.Equal(t, session.Token, cookie.Value)
	})
}

func TestAuthHandler_Session(t *testing.T) {
	f := newAuthFixture(t)
	id := uuid.Must(uuid.NewV4())
	f.users.expectSession("good-token", id, "kim@example.com")
	f.users.On("Authenticate", mock.Anything, "expired-token").Return(nil, user.ErrInvalidToken)
	f.users.On("GetProfile", mock.Anything, id).Return(&user.Profile{ID: id, Email: "kim@example.com", Name: "김철수"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good-token"})
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), id.String())

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	f.users.AssertExpectations(t)
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	f.users.On("RequestPasswordReset", mock.Anything, "kim@example.com").Return(nil).Once()
	f.users.On("ConfirmPasswordReset", mock.Anything, "reset-token", "short").Return(user.ErrWeakPassword).Once()

	rr := f.do(http.MethodPost, "/api/auth/reset", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPost, "/api/auth/reset", map[string]string{"email": "kim@example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = f.do(http.MethodPost, "/api/auth/reset/confirm", map[string]string{"token": "reset-token", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"비밀번호는 8자 이상이어야 합니다."}`, rr.Body.String())
	f.users.AssertExpectations(t)
}

func startSocial(t *testing.T, f *authFixture, provider user.Provider) string {
	t.Helper()
	f.oauth.On("AuthURL", provider, mock.AnythingOfType("string")).Return("https://provider.example/authorize", nil).Once()

	rr := f.do(http.MethodGet, "/api/auth/"+provider.String()+"/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp httpHandler.SocialStartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.State)
	assert.Equal(t, "https://provider.example/authorize", resp.AuthURL)
	return resp.State
}

func TestAuthHandler_SocialSignIn(t *testing.T) {
	f := newAuthFixture(t)
	state := startSocial(t, f, user.ProviderKakao)

	status, err := f.handshakes.Status(state)
	require.NoError(t, err)
	assert.Equal(t, user.HandshakeAwaiting, status)

	ext := &user.ExternalProfile{Provider: user.ProviderKakao, ExternalID: "12345", Email: "kim@kakao.com", Name: "김철수"}
	session := testSession()
	f.oauth.On("Exchange", mock.Anything, user.ProviderKakao, "auth-code", state).Return(ext, nil).Once()
	f.users.On("SocialSignIn", mock.Anything, *ext).Return(session, nil).Once()

	q := url.Values{"state": {state}, "code": {"auth-code"}}
	rr := f.do(http.MethodGet, "/api/auth/kakao/callback?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "LOGIN_SUCCESS")
	assert.Contains(t, rr.Body.String(), "window.opener.postMessage")
	assert.NotNil(t, sessionCookieFrom(rr))

	rr = f.do(http.MethodGet, "/api/auth/result?state="+state, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got user.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, session.Token, got.Token)

	// The result is handed out once.
	rr = f.do(http.MethodGet, "/api/auth/result?state="+state, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	f.oauth.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestAuthHandler_SocialCallbackFailures(t *testing.T) {
	tests := []struct {
		name     string
		callback func(state string) string
		wantErr  string
	}{
		{
			name:     "provider_denied",
			callback: func(state string) string { return "/api/auth/google/callback?error=access_denied&state=" + state },
			wantErr:  "Failed to complete social sign-in",
		},
		{
			name:     "missing_code",
			callback: func(state string) string { return "/api/auth/google/callback?state=" + state },
			wantErr:  "Failed to complete social sign-in",
		},
		{
			name:     "provider_mismatch",
			callback: func(state string) string { return "/api/auth/naver/callback?code=abc&state=" + state },
			wantErr:  "로그인 요청을 찾을 수 없습니다. 다시 시도해주세요.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			state := startSocial(t, f, user.ProviderGoogle)

			rr := f.do(http.MethodGet, tt.callback(state), nil)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), "LOGIN_FAIL")
			assert.Nil(t, sessionCookieFrom(rr))

			status, err := f.handshakes.Status(state)
			require.NoError(t, err)
			assert.Equal(t, user.HandshakeRejected, status)

			rr = f.do(http.MethodGet, "/api/auth/result?state="+state, nil)
			require.NotEqual(t, http.StatusOK, rr.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.wantErr, resp["error"])

			f.oauth.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAuthHandler_SocialCancel(t *testing.T) {
	f := newAuthFixture(t)
	state := startSocial(t, f, user.ProviderNaver)

	rr := f.do(http.MethodDelete, "/api/auth/result?state="+state, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(http.MethodDelete, "/api/auth/result?state="+state, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/api/auth/result?state="+state, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/api/auth/result", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_SocialStartUnknownProvider(t *testing.T) {
	f := newAuthFixture(t)
	rr := f.do(http.MethodGet, "/api/auth/facebook/start", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"지원하지 않는 로그인 방식입니다."}`, rr.Body.String())
}

func TestAuthHandler_SocialStartDisabledProvider(t *testing.T) {
	f := newAuthFixture(t)
	f.oauth.On("AuthURL", user.ProviderGoogle, mock.AnythingOfType("string")).Return("", user.ErrProviderDisabled).Once()

	rr := f.do(http.MethodGet, "/api/auth/google/start", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	f.oauth.AssertExpectations(t)
}
