package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/assistant"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
	"github.com/vasiliy-maslov/buyproxy/internal/checkout"
	"github.com/vasiliy-maslov/buyproxy/internal/inquiry"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type ValidationErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// respondWithError sends {"error": message}.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	details := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("Field '%s' is required", fe.Field()))
		case "email":
			details = append(details, fmt.Sprintf("Field '%s' must be a valid email address", fe.Field()))
		case "min":
			if fe.Kind().String() == "string" {
				details = append(details, fmt.Sprintf("Field '%s' must be at least %s characters long", fe.Field(), fe.Param()))
			} else {
				details = append(details, fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param()))
			}
		case "max":
			details = append(details, fmt.Sprintf("Field '%s' must be at most %s", fe.Field(), fe.Param()))
		case "oneof":
			details = append(details, fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param()))
		case "url":
			details = append(details, fmt.Sprintf("Field '%s' must be a valid URL", fe.Field()))
		default:
			details = append(details, fmt.Sprintf("Field '%s' failed on the '%s' rule", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(details, "; ")
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, user.ErrHandshakeNotFound),
		errors.Is(err, checkout.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrEmailInUse),
		errors.Is(err, user.ErrIdentityExists),
		errors.Is(err, order.ErrDuplicateOrder),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, user.ErrInvalidCredential),
		errors.Is(err, user.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, user.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, user.ErrHandshakeTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, user.ErrHandshakeCancelled):
		return http.StatusGone
	case errors.Is(err, user.ErrProviderRejected):
		return http.StatusBadGateway
	case errors.Is(err, checkout.ErrGatewayNotReady),
		errors.Is(err, user.ErrProviderDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, user.ErrWeakPassword),
		errors.Is(err, user.ErrPasswordMismatch),
		errors.Is(err, user.ErrAgreementRequired),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrUnknownProvider),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidAddress),
		errors.Is(err, inquiry.ErrInvalidRequest),
		errors.Is(err, checkout.ErrInvalidCheckout),
		errors.Is(err, checkout.ErrInvalidConfirmation),
		errors.Is(err, checkout.ErrAmountMismatch),
		errors.Is(err, assistant.ErrMissingAPIKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError maps err to a status code. Client errors carry the customer-facing
// message; server errors carry fallback only.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(fallback)
		respondWithError(w, code, fallback)
		return
	}
	respondWithError(w, code, user.Message(err))
}
