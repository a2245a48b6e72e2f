package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/buyproxy/internal/inquiry"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PAYMENT_COMPLETE PROXY_PURCHASING SHIPPING DELIVERED CANCELLED"`
}

type AdminHandler struct {
	orders    order.Service
	stats     order.StatsReader
	users     user.Service
	inquiries inquiry.Service
	products  *ProductHandler
	admins    []string
	validate  *validator.Validate
}

func NewAdminHandler(orders order.Service, stats order.StatsReader, users user.Service, inquiries inquiry.Service, products *ProductHandler, admins []string) *AdminHandler {
	return &AdminHandler{
		orders:    orders,
		stats:     stats,
		users:     users,
		inquiries: inquiries,
		products:  products,
		admins:    admins,
		validate:  validator.New(),
	}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin(h.admins))
		r.Get("/stats", h.handleStats)
		r.Get("/orders", h.handleListOrders)
		r.Patch("/orders/{id}/status", h.handleUpdateStatus)
		r.Get("/users", h.handleListUsers)
		r.Get("/purchase-requests", h.handleListPurchaseRequests)
		h.products.RegisterAdminRoutes(r)
	})
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.stats.Dashboard(r.Context(), time.Now())
	if err != nil {
		respondWithServiceError(w, err, "Failed to load statistics")
		return
	}
	respondWithJSON(w, http.StatusOK, dashboard)
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), limitParam(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *AdminHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	if err := h.orders.UpdateOrderStatus(r.Context(), orderID, order.OrderStatus(requestPayload.Status)); err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), limitParam(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list users")
		return
	}
	if users == nil {
		users = []user.Profile{}
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) handleListPurchaseRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.inquiries.List(r.Context(), limitParam(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list purchase requests")
		return
	}
	respondWithJSON(w, http.StatusOK, requests)
}
