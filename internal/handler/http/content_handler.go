package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/assistant"
	"github.com/vasiliy-maslov/buyproxy/internal/inquiry"
	"github.com/vasiliy-maslov/buyproxy/internal/news"
)

type ChatRequest struct {
	Messages []assistant.Message `json:"messages" validate:"dive"`
	APIKey   string              `json:"apiKey"`
}

type PurchaseRequestPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Product  string `json:"product" validate:"required"`
	URL      string `json:"url" validate:"omitempty,url"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Budget   string `json:"budget"`
	Message  string `json:"message"`
	Country  string `json:"country"`
	Delivery string `json:"delivery"`
}

// ContentHandler serves the landing page widgets: news, the chat assistant and purchase requests.
type ContentHandler struct {
	news      news.Service
	assistant assistant.Service
	inquiries inquiry.Service
	validate  *validator.Validate
}

func NewContentHandler(newsService news.Service, assistantService assistant.Service, inquiries inquiry.Service) *ContentHandler {
	return &ContentHandler{
		news:      newsService,
		assistant: assistantService,
		inquiries: inquiries,
		validate:  validator.New(),
	}
}

func (h *ContentHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/news", h.handleNews)
	router.Post("/api/chat", h.handleChat)
	router.Post("/api/purchase-requests", h.handlePurchaseRequest)
}

func (h *ContentHandler) handleNews(w http.ResponseWriter, r *http.Request) {
	digest, err := h.news.Digest(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "뉴스를 가져오는 중 오류가 발생했습니다.",
			"items":   []news.Item{},
			"hasNews": false,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, digest)
}

func (h *ContentHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var requestPayload ChatRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	reply, err := h.assistant.Open(r.Context(), requestPayload.APIKey, requestPayload.Messages)
	if err != nil {
		status := http.StatusInternalServerError
		if mapErrorToStatusCode(err) == http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		respondWithError(w, status, assistant.ErrorMessage(err))
		return
	}
	defer reply.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if err := assistant.Relay(reply, w, flush); err != nil {
		// Headers are already sent; the client sees a truncated body.
		log.Warn().Err(err).Msg("Assistant stream ended early")
	}
}

func (h *ContentHandler) handlePurchaseRequest(w http.ResponseWriter, r *http.Request) {
	var requestPayload PurchaseRequestPayload
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	receipt, err := h.inquiries.Submit(r.Context(), &inquiry.Request{
		Name:     requestPayload.Name,
		Email:    requestPayload.Email,
		Phone:    requestPayload.Phone,
		Product:  requestPayload.Product,
		URL:      requestPayload.URL,
		Quantity: requestPayload.Quantity,
		Budget:   requestPayload.Budget,
		Message:  requestPayload.Message,
		Country:  requestPayload.Country,
		Delivery: requestPayload.Delivery,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit purchase request")
		return
	}
	respondWithJSON(w, http.StatusCreated, receipt)
}
