package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"farmazia/internal/domain"
	"farmazia/internal/middleware"
	"farmazia/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultFeaturedLimit = 10

// CatalogHandler serves the public, read-only catalog endpoints used by the
// buyer side of the marketplace.
type CatalogHandler struct {
	catalog repository.CatalogRepository
	sellers repository.SellerRepository
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog repository.CatalogRepository, sellers repository.SellerRepository, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, sellers: sellers, logger: logger}
}

// RegisterRoutes registers all catalog routes; none require auth
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/featured", h.FeaturedProducts)
		r.Get("/watch", h.WatchProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Route("/api/farms", func(r chi.Router) {
		r.Get("/{id}", h.GetFarm)
		r.Get("/{id}/products", h.FarmProducts)
	})
}

// ListProducts returns the catalog, optionally filtered by category and
// sorted by the requested order
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []domain.Product
		err      error
	)

	if category := r.URL.Query().Get("category"); category != "" {
		cat := domain.ProductCategory(category)
		if !cat.Valid() {
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown category")
			return
		}
		products, err = h.catalog.FetchByCategory(r.Context(), cat)
	} else {
		products, err = h.catalog.FetchAll(r.Context())
	}
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	if order := r.URL.Query().Get("sort"); order != "" {
		products = domain.SortProducts(products, domain.SortOrder(order))
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// SearchProducts returns products whose name contains the query term
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	products, err := h.catalog.Search(r.Context(), term)
	if err != nil {
		h.logger.Error("Search failed", zap.String("term", term), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "search failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// FeaturedProducts returns up to limit featured products
func (h *CatalogHandler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeaturedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	products, err := h.catalog.FetchFeatured(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to fetch featured products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch featured products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns a single product by id
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.catalog.FetchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to fetch product", zap.String("product_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// WatchProducts streams catalog snapshots over server-sent events. Each
// mutation of the products collection pushes the full list as one event.
func (h *CatalogHandler) WatchProducts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan []domain.Product, 8)
	sub := h.catalog.Subscribe(func(products []domain.Product) {
		select {
		case events <- products:
		default:
		}
	})
	defer sub.Close()

	// Initial snapshot so clients do not wait for the first mutation
	if products, err := h.catalog.FetchAll(r.Context()); err == nil {
		h.writeEvent(w, products)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case products := <-events:
			h.writeEvent(w, products)
			flusher.Flush()
		}
	}
}

func (h *CatalogHandler) writeEvent(w http.ResponseWriter, products []domain.Product) {
	payload, err := json.Marshal(products)
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// GetFarm returns a seller's public farm profile
func (h *CatalogHandler) GetFarm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	seller, err := h.sellers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "farm not found")
			return
		}
		h.logger.Error("Failed to fetch farm", zap.String("seller_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch farm")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, seller)
}

// FarmProducts returns every product belonging to a seller
func (h *CatalogHandler) FarmProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.sellers.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "farm not found")
			return
		}
		h.logger.Error("Failed to fetch farm", zap.String("seller_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch farm")
		return
	}

	products, err := h.catalog.FetchBySeller(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch farm products", zap.String("seller_id", id), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch farm products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}
