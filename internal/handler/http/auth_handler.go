package http

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/metrics"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type SignUpRequest struct {
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	AgreeTerms      bool   `json:"agreeTerms"`
	AgreePrivacy    bool   `json:"agreePrivacy"`
	AgreeMarketing  bool   `json:"agreeMarketing"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SocialStartResponse struct {
	State   string `json:"state"`
	AuthURL string `json:"authUrl"`
}

// popupMessage is posted to window.opener by the provider callback page.
type popupMessage struct {
	Type  string        `json:"type"`
	State string        `json:"state"`
	Token string        `json:"token,omitempty"`
	User  *user.Profile `json:"user,omitempty"`
	Error string        `json:"error,omitempty"`
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="ko">
<head><meta charset="utf-8"><title>로그인 처리 중</title></head>
<body>
<script>
(function () {
  var message = {{.Message}};
  if (window.opener) {
    window.opener.postMessage(message, {{.Origin}});
  }
  window.close();
})();
</script>
</body>
</html>
`))

type AuthHandler struct {
	users      user.Service
	oauth      user.OAuthClient
	handshakes *user.Handshakes
	origin     string
	validate   *validator.Validate
}

func NewAuthHandler(users user.Service, oauth user.OAuthClient, handshakes *user.Handshakes, origin string) *AuthHandler {
	return &AuthHandler{
		users:      users,
		oauth:      oauth,
		handshakes: handshakes,
		origin:     strings.TrimRight(origin, "/"),
		validate:   validator.New(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/auth/signup", h.handleSignUp)
	router.Post("/api/auth/signin", h.handleSignIn)
	router.Post("/api/auth/signout", h.handleSignOut)
	router.Post("/api/auth/reset", h.handleRequestReset)
	router.Post("/api/auth/reset/confirm", h.handleConfirmReset)
	router.With(RequireSession).Get("/api/auth/session", h.handleSession)

	router.Get("/api/auth/result", h.handleAwaitResult)
	router.Delete("/api/auth/result", h.handleCancelResult)
	router.Get("/api/auth/{provider}/start", h.handleSocialStart)
	router.Get("/api/auth/{provider}/callback", h.handleSocialCallback)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, s *user.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.origin, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var requestPayload SignUpRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	session, err := h.users.SignUp(r.Context(), user.SignUpInput{
		Email:           requestPayload.Email,
		Password:        requestPayload.Password,
		PasswordConfirm: requestPayload.PasswordConfirm,
		Name:            requestPayload.Name,
		Phone:           requestPayload.Phone,
		AgreeTerms:      requestPayload.AgreeTerms,
		AgreePrivacy:    requestPayload.AgreePrivacy,
		AgreeMarketing:  requestPayload.AgreeMarketing,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to sign up")
		return
	}

	h.setSessionCookie(w, session)
	respondWithJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var requestPayload SignInRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	session, err := h.users.SignIn(r.Context(), requestPayload.Email, requestPayload.Password)
	if err != nil {
		metrics.SignIns.WithLabelValues("password", "error").Inc()
		respondWithServiceError(w, err, "Failed to sign in")
		return
	}

	metrics.SignIns.WithLabelValues("password", "ok").Inc()
	h.setSessionCookie(w, session)
	respondWithJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var requestPayload ResetRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.users.RequestPasswordReset(r.Context(), requestPayload.Email); err != nil {
		respondWithServiceError(w, err, "Failed to send password reset email")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "비밀번호 재설정 이메일을 발송했습니다."})
}

func (h *AuthHandler) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var requestPayload ResetConfirmRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.users.ConfirmPasswordReset(r.Context(), requestPayload.Token, requestPayload.Password); err != nil {
		respondWithServiceError(w, err, "Failed to reset password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	uid, _ := sessionUserID(r)
	profile, err := h.users.GetProfile(r.Context(), uid)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load session")
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) handleSocialStart(w http.ResponseWriter, r *http.Request) {
	provider, err := user.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to start social sign-in")
		return
	}

	state, err := h.handshakes.Begin(provider)
	if err != nil {
		respondWithServiceError(w, err, "Failed to start social sign-in")
		return
	}
	authURL, err := h.oauth.AuthURL(provider, state)
	if err != nil {
		_ = h.handshakes.Cancel(state)
		respondWithServiceError(w, err, "Failed to start social sign-in")
		return
	}

	respondWithJSON(w, http.StatusOK, SocialStartResponse{State: state, AuthURL: authURL})
}

func (h *AuthHandler) handleSocialCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	msg := popupMessage{Type: "LOGIN_FAIL", State: state}

	session, err := h.completeSocial(r, state)
	if err != nil {
		metrics.SignIns.WithLabelValues("social", "error").Inc()
		log.Warn().Err(err).Str("provider", chi.URLParam(r, "provider")).Msg("Social sign-in failed")
		msg.Error = user.Message(err)
		if state != "" {
			_ = h.handshakes.Reject(state, err)
		}
	} else {
		metrics.SignIns.WithLabelValues("social", "ok").Inc()
		msg.Type = "LOGIN_SUCCESS"
		msg.Token = session.Token
		msg.User = session.Profile
		_ = h.handshakes.Resolve(state, session)
		h.setSessionCookie(w, session)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(w, map[string]interface{}{"Message": msg, "Origin": h.origin}); err != nil {
		log.Error().Err(err).Msg("Failed to render sign-in callback page")
	}
}

func (h *AuthHandler) completeSocial(r *http.Request, state string) (*user.Session, error) {
	provider, err := user.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		return nil, err
	}
	expected, err := h.handshakes.Provider(state)
	if err != nil {
		return nil, err
	}
	if expected != provider {
		return nil, user.ErrHandshakeNotFound
	}

	q := r.URL.Query()
	if q.Get("error") != "" {
		log.Info().Str("provider", provider.String()).Str("error", q.Get("error")).Msg("Provider returned an error to the callback")
		return nil, user.ErrProviderRejected
	}
	code := q.Get("code")
	if code == "" {
		return nil, user.ErrProviderRejected
	}

	ext, err := h.oauth.Exchange(r.Context(), provider, code, state)
	if err != nil {
		return nil, err
	}
	return h.users.SocialSignIn(r.Context(), *ext)
}

func (h *AuthHandler) handleAwaitResult(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		respondWithError(w, http.StatusBadRequest, "state parameter is required")
		return
	}

	session, err := h.handshakes.Await(r.Context(), state)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		respondWithServiceError(w, err, "Failed to complete social sign-in")
		return
	}
	h.setSessionCookie(w, session)
	respondWithJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) handleCancelResult(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if err := h.handshakes.Cancel(state); err != nil {
		respondWithServiceError(w, err, "Failed to cancel social sign-in")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
