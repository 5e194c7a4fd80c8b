package service

import (
	"context"
	"sync"

	"github.com/novamart/nova-storefront/internal/model"
)

// CatalogService serves the product catalog. Products also feed the QA
// knowledge base.
type CatalogService struct {
	mu       sync.RWMutex
	products []model.Product
}

// NewCatalogService creates a catalog seeded with the demo products.
func NewCatalogService() *CatalogService {
	return &CatalogService{
		products: []model.Product{
			{ID: "p1", Title: "Nova Wireless Headphones", Price: 129.99, Description: "Over-ear wireless headphones with 30 hour battery life and active noise cancellation."},
			{ID: "p2", Title: "Nova Smart Mug", Price: 49.50, Description: "Temperature controlled mug that keeps coffee at your preferred heat for hours."},
			{ID: "p3", Title: "Nova Desk Lamp", Price: 34.00, Description: "Adjustable LED desk lamp with warm and cool color modes and a USB charging port."},
		},
	}
}

// List returns all products.
func (s *CatalogService) List(ctx context.Context) []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out
}
