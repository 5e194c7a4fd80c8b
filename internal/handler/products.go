package handler

import (
	"net/http"

	"github.com/novamart/nova-storefront/internal/service"
)

// ProductsHandler serves the catalog.
type ProductsHandler struct {
	catalog *service.CatalogService
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(catalog *service.CatalogService) *ProductsHandler {
	return &ProductsHandler{catalog: catalog}
}

// List handles GET /api/products
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List(r.Context()))
}
