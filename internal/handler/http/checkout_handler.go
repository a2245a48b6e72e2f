package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/buyproxy/internal/checkout"
	"github.com/vasiliy-maslov/buyproxy/internal/payment"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type CheckoutRequest struct {
	ClientKey     string `json:"clientKey" validate:"required,max=128"`
	ProductID     string `json:"productId" validate:"required,uuid"`
	Quantity      int    `json:"quantity" validate:"max=99"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	CustomerName  string `json:"customerName"`
}

type ReleaseRequest struct {
	ClientKey string `json:"clientKey" validate:"required"`
}

type CheckoutStatusResponse struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

type CheckoutHandler struct {
	service  checkout.Service
	users    user.Service
	validate *validator.Validate
}

func NewCheckoutHandler(service checkout.Service, users user.Service) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		users:    users,
		validate: validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handleInitiate)
	router.Get("/checkout/status", h.handleStatus)
	router.Delete("/checkout", h.handleRelease)
	router.Get("/payment/success", h.handlePaymentSuccess)
	router.Get("/payment/fail", h.handlePaymentFail)
}

func (h *CheckoutHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready() {
		respondWithJSON(w, http.StatusOK, CheckoutStatusResponse{Ready: false, Message: "결제 준비 중..."})
		return
	}
	respondWithJSON(w, http.StatusOK, CheckoutStatusResponse{Ready: true})
}

func (h *CheckoutHandler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var requestPayload CheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	in := checkout.Input{
		ClientKey: requestPayload.ClientKey,
		ProductID: uuid.FromStringOrNil(requestPayload.ProductID),
		Quantity:  requestPayload.Quantity,
		Customer: checkout.Customer{
			Email: requestPayload.CustomerEmail,
			Name:  requestPayload.CustomerName,
		},
	}
	if uid, ok := sessionUserID(r); ok {
		in.Customer.UserID = uuid.NullUUID{UUID: uid, Valid: true}
		if profile, err := h.users.GetProfile(r.Context(), uid); err == nil {
			if in.Customer.Email == "" {
				in.Customer.Email = profile.Email
			}
			if in.Customer.Name == "" {
				in.Customer.Name = profile.Name
			}
		}
	}

	req, err := h.service.Initiate(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err, "Failed to start checkout")
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

func (h *CheckoutHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var requestPayload ReleaseRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	h.service.Release(r.Context(), requestPayload.ClientKey)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid amount parameter")
		return
	}

	receipt, err := h.service.ConfirmSuccess(r.Context(), q.Get("orderId"), amount, q.Get("paymentKey"))
	if err != nil {
		var gwErr *payment.Error
		if errors.As(err, &gwErr) {
			status := http.StatusBadGateway
			if gwErr.Status >= 400 && gwErr.Status < 500 {
				status = gwErr.Status
			}
			respondWithJSON(w, status, checkout.Failure{Code: gwErr.Code, Message: gwErr.Message})
			return
		}
		respondWithServiceError(w, err, "Failed to confirm payment")
		return
	}
	respondWithJSON(w, http.StatusOK, receipt)
}

func (h *CheckoutHandler) handlePaymentFail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	failure := h.service.RecordFailure(r.Context(), q.Get("code"), q.Get("message"), q.Get("orderId"))
	respondWithJSON(w, http.StatusOK, failure)
}
