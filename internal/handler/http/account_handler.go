package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,min=2"`
	Phone string `json:"phone"`
}

type AddressRequest struct {
	Name      string `json:"name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	Detail    string `json:"detail"`
	IsDefault bool   `json:"isDefault"`
}

type OrderResponse struct {
	ID          uuid.UUID         `json:"id"`
	OrderID     string            `json:"orderId"`
	ProductID   uuid.UUID         `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    int               `json:"quantity"`
	TotalAmount int64             `json:"totalAmount"`
	Status      order.OrderStatus `json:"status"`
	StatusLabel string            `json:"statusLabel"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func toOrderResponses(orders []order.Order) []OrderResponse {
	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, OrderResponse{
			ID:          o.ID,
			OrderID:     o.OrderID,
			ProductID:   o.ProductID,
			ProductName: o.ProductName,
			Quantity:    o.Quantity,
			TotalAmount: o.TotalAmount,
			Status:      o.Status,
			StatusLabel: o.Status.Label(),
			CreatedAt:   o.CreatedAt,
		})
	}
	return response
}

// AccountHandler serves the signed-in customer's own profile, orders and addresses.
type AccountHandler struct {
	users     user.Service
	orders    order.Service
	addresses order.AddressService
	validate  *validator.Validate
}

func NewAccountHandler(users user.Service, orders order.Service, addresses order.AddressService) *AccountHandler {
	return &AccountHandler{
		users:     users,
		orders:    orders,
		addresses: addresses,
		validate:  validator.New(),
	}
}

func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Route("/api/me", func(r chi.Router) {
		r.Use(RequireSession)
		r.Get("/", h.handleGetProfile)
		r.Put("/", h.handleUpdateProfile)
		r.Get("/orders", h.handleListOrders)
		r.Get("/addresses", h.handleListAddresses)
		r.Post("/addresses", h.handleAddAddress)
		r.Put("/addresses/{id}/default", h.handleSetDefaultAddress)
		r.Delete("/addresses/{id}", h.handleDeleteAddress)
	})
}

func (h *AccountHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := sessionUserID(r)
	profile, err := h.users.GetProfile(r.Context(), uid)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get profile")
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	uid, _ := sessionUserID(r)
	profile, err := h.users.UpdateProfile(r.Context(), uid, requestPayload.Name, requestPayload.Phone)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *AccountHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	uid, _ := sessionUserID(r)
	orders, err := h.orders.GetOrdersByUserID(r.Context(), uid)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get orders")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *AccountHandler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	uid, _ := sessionUserID(r)
	addresses, err := h.addresses.ListAddresses(r.Context(), uid)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get addresses")
		return
	}
	if addresses == nil {
		addresses = []order.Address{}
	}
	respondWithJSON(w, http.StatusOK, addresses)
}

func (h *AccountHandler) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddressRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	uid, _ := sessionUserID(r)
	created, err := h.addresses.AddAddress(r.Context(), &order.Address{
		UserID:    uid,
		Name:      requestPayload.Name,
		Phone:     requestPayload.Phone,
		Address:   requestPayload.Address,
		Detail:    requestPayload.Detail,
		IsDefault: requestPayload.IsDefault,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to add address")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AccountHandler) handleSetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	addressID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	uid, _ := sessionUserID(r)
	if err := h.addresses.SetDefaultAddress(r.Context(), uid, addressID); err != nil {
		respondWithServiceError(w, err, "Failed to set default address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	addressID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	uid, _ := sessionUserID(r)
	if err := h.addresses.DeleteAddress(r.Context(), uid, addressID); err != nil {
		respondWithServiceError(w, err, "Failed to delete address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
