package user

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrWeakPassword       = errors.New("password too weak")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrAgreementRequired  = errors.New("mandatory agreements not accepted")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrIdentityExists     = errors.New("identity already linked")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnknownProvider    = errors.New("unknown identity provider")
	ErrProviderDisabled   = errors.New("identity provider not configured")
	ErrProviderRejected   = errors.New("identity provider rejected the sign-in")
	ErrHandshakeNotFound  = errors.New("sign-in handshake not found")
	ErrHandshakeTimeout   = errors.New("sign-in handshake timed out")
	ErrHandshakeCancelled = errors.New("sign-in handshake cancelled")
)

// MinPasswordLength is the shortest password SignUp and ConfirmReset accept.
const MinPasswordLength = 8

var messages = []struct {
	err error
	msg string
}{
	{ErrUserNotFound, "등록되지 않은 이메일입니다."},
	{ErrEmailInUse, "이미 사용 중인 이메일입니다."},
	{ErrInvalidEmail, "올바른 이메일 형식이 아닙니다."},
	{ErrInvalidCredential, "비밀번호가 올바르지 않습니다."},
	{ErrWeakPassword, "비밀번호는 8자 이상이어야 합니다."},
	{ErrPasswordMismatch, "비밀번호가 일치하지 않습니다."},
	{ErrAgreementRequired, "필수 약관에 동의해주세요."},
	{ErrTooManyRequests, "너무 많은 시도가 있었습니다. 잠시 후 다시 시도해주세요."},
	{ErrInvalidToken, "인증 정보가 만료되었거나 올바르지 않습니다."},
	{ErrUnknownProvider, "지원하지 않는 로그인 방식입니다."},
	{ErrProviderDisabled, "현재 사용할 수 없는 로그인 방식입니다."},
	{ErrProviderRejected, "소셜 로그인에 실패했습니다."},
	{ErrHandshakeNotFound, "로그인 요청을 찾을 수 없습니다. 다시 시도해주세요."},
	{ErrHandshakeTimeout, "로그인 시간이 초과되었습니다. 다시 시도해주세요."},
	{ErrHandshakeCancelled, "로그인 창이 닫혔습니다."},
}

// Message maps err to the Korean text shown to customers. Unknown errors keep their own text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
