package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
)

type ProductRequest struct {
	Name          string   `json:"name" validate:"required"`
	Brand         string   `json:"brand" validate:"required"`
	Category      string   `json:"category" validate:"required"`
	Price         int64    `json:"price" validate:"min=0"`
	OriginalPrice int64    `json:"originalPrice" validate:"min=0"`
	Image         string   `json:"image"`
	Country       string   `json:"country"`
	Badge         string   `json:"badge"`
	Description   string   `json:"description"`
	Specs         []string `json:"specs"`
}

type ProductResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Brand           string    `json:"brand"`
	Category        string    `json:"category"`
	Price           int64     `json:"price"`
	OriginalPrice   int64     `json:"originalPrice"`
	DiscountPercent int       `json:"discountPercent"`
	Image           string    `json:"image"`
	Country         string    `json:"country"`
	Badge           string    `json:"badge"`
	Description     string    `json:"description"`
	Specs           []string  `json:"specs"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toProductResponse(p *catalog.Product) ProductResponse {
	specs := p.Specs
	if specs == nil {
		specs = []string{}
	}
	return ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Brand:           p.Brand,
		Category:        p.Category,
		Price:           p.Price,
		OriginalPrice:   p.OriginalPrice,
		DiscountPercent: p.DiscountPercent(),
		Image:           p.Image,
		Country:         p.Country,
		Badge:           p.Badge,
		Description:     p.Description,
		Specs:           specs,
		CreatedAt:       p.CreatedAt,
	}
}

func (pr ProductRequest) toProduct() *catalog.Product {
	return &catalog.Product{
		Name:          pr.Name,
		Brand:         pr.Brand,
		Category:      pr.Category,
		Price:         pr.Price,
		OriginalPrice: pr.OriginalPrice,
		Image:         pr.Image,
		Country:       pr.Country,
		Badge:         pr.Badge,
		Description:   pr.Description,
		Specs:         pr.Specs,
	}
}

type ProductHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewProductHandler(service catalog.Service) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/products", h.handleListProducts)
	router.Get("/api/products/{id}", h.handleGetProduct)
}

// RegisterAdminRoutes mounts product management under an already-guarded router.
func (h *ProductHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
	router.Post("/products/seed", h.handleSeed)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}

	response := make([]ProductResponse, 0, len(products))
	for i := range products {
		response = append(response, toProductResponse(&products[i]))
	}
	respondWithJSON(w, http.StatusOK, response)
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, name)
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str(name, idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), requestPayload.toProduct())
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, toProductResponse(created))
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	p := requestPayload.toProduct()
	p.ID = id
	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) handleSeed(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Seed(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to seed products")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]int{"created": n})
}
