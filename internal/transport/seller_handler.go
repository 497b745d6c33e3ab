package transport

import (
	"errors"
	"net/http"

	"farmazia/internal/domain"
	"farmazia/internal/middleware"
	"farmazia/internal/repository"
	"farmazia/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FarmRequest carries the editable farm-profile fields. Empty fields keep
// their current value.
type FarmRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email" validate:"omitempty,email"`
	PhoneNumber     string `json:"phone_number"`
	FarmName        string `json:"farm_name" validate:"required"`
	FarmDescription string `json:"farm_description"`
	City            string `json:"city"`
	County          string `json:"county"`
	Address         string `json:"address"`
	PostalCode      string `json:"postal_code"`
}

// ProductRequest carries product fields plus an optional image payload
type ProductRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	ProductType  string  `json:"product_type" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	Quantity     int     `json:"quantity" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"required"`
	IsOrganic    bool    `json:"is_organic"`
	IsOutOfStock bool    `json:"is_out_of_stock"`
	IsFeatured   bool    `json:"is_featured"`
	ImageData    []byte  `json:"image_data,omitempty"`
}

// ReorderRequest moves a product within the seller's local list
type ReorderRequest struct {
	From int `json:"from" validate:"gte=0"`
	To   int `json:"to" validate:"gte=0"`
}

// SellerHandler handles the seller-side endpoints: farm profile and the
// seller's own catalog entries, all flowing through the sync service.
type SellerHandler struct {
	sync   *service.SyncRegistry
	logger *zap.Logger
}

// NewSellerHandler creates a new SellerHandler
func NewSellerHandler(sync *service.SyncRegistry, logger *zap.Logger) *SellerHandler {
	return &SellerHandler{sync: sync, logger: logger}
}

// RegisterRoutes registers all seller routes. Every route requires auth;
// product routes additionally require a completed farm profile.
func (h *SellerHandler) RegisterRoutes(r chi.Router, authMiddleware, farmMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/seller", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/farm", h.GetFarm)
		r.Put("/farm", h.UpsertFarm)
		r.Group(func(r chi.Router) {
			r.Use(farmMiddleware)
			r.Get("/products", h.ListProducts)
			r.Post("/products", h.AddProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)
			r.Post("/products/reorder", h.ReorderProducts)
		})
	})
}

// session loads the caller's sync service, fetching the seller when the
// session is fresh
func (h *SellerHandler) session(w http.ResponseWriter, r *http.Request) (*service.SyncService, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	svc := h.sync.ForSeller(userID)
	if svc.State().Seller == nil {
		if err := svc.LoadOwner(r.Context()); err != nil {
			h.logger.Error("Failed to load seller", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load seller")
			return nil, false
		}
	}
	return svc, true
}

// GetFarm returns the caller's farm profile
func (h *SellerHandler) GetFarm(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	state := svc.State()
	if state.Seller == nil {
		middleware.RespondWithError(w, http.StatusNotFound, "farm profile not found")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, state.Seller)
}

// UpsertFarm creates or updates the caller's farm profile
func (h *SellerHandler) UpsertFarm(w http.ResponseWriter, r *http.Request) {
	var req FarmRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Farm validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	attrs := service.OwnerAttributes{
		FullName:        req.FullName,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		FarmName:        req.FarmName,
		FarmDescription: req.FarmDescription,
		Address: domain.Address{
			City:       req.City,
			County:     req.County,
			Address:    req.Address,
			PostalCode: req.PostalCode,
		},
	}

	if err := svc.CreateOrUpdateOwner(r.Context(), attrs); err != nil {
		h.logger.Error("Farm upsert failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to save farm")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, svc.State().Seller)
}

// ListProducts refetches and returns the caller's products
func (h *SellerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := svc.LoadProducts(r.Context()); err != nil {
		if errors.Is(err, service.ErrOwnerNotLoaded) {
			middleware.RespondWithError(w, http.StatusNotFound, "farm profile not found")
			return
		}
		h.logger.Error("Failed to load products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, svc.State().Products)
}

// AddProduct creates a catalog entry for the caller
func (h *SellerHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	product, err := svc.AddProduct(r.Context(), req.draft(), req.ImageData)
	if err != nil {
		if errors.Is(err, service.ErrOwnerNotLoaded) {
			middleware.RespondWithError(w, http.StatusNotFound, "farm profile not found")
			return
		}
		if isDomainValidation(err) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to add product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add product")
		return
	}

	h.logger.Info("Product added",
		zap.String("product_id", product.ID),
		zap.String("seller_id", product.SellerID),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a catalog entry for the caller
func (h *SellerHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	product := req.draft().Saved(id)

	// Keep the stored image when no replacement is uploaded
	if req.ImageData == nil {
		for _, existing := range svc.State().Products {
			if existing.ID == id {
				product.Image = existing.Image
				break
			}
		}
	}

	if err := svc.UpdateProduct(r.Context(), product, req.ImageData); err != nil {
		switch {
		case errors.Is(err, service.ErrOwnerNotLoaded):
			middleware.RespondWithError(w, http.StatusNotFound, "farm profile not found")
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case isDomainValidation(err):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to update product", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a catalog entry for the caller
func (h *SellerHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := svc.DeleteProduct(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrOwnerNotLoaded):
			middleware.RespondWithError(w, http.StatusNotFound, "farm profile not found")
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		default:
			h.logger.Error("Failed to delete product", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ReorderProducts moves a product within the local list; ordering never
// touches the store
func (h *SellerHandler) ReorderProducts(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc, ok := h.session(w, r)
	if !ok {
		return
	}

	svc.MoveProduct(req.From, req.To)
	middleware.RespondWithJSON(w, http.StatusOK, svc.State().Products)
}

func (h *SellerHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*ProductRequest, bool) {
	var req ProductRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

func (r *ProductRequest) draft() domain.ProductDraft {
	return domain.ProductDraft{
		Name:         r.Name,
		Description:  r.Description,
		ProductType:  domain.ProductCategory(r.ProductType),
		Price:        r.Price,
		Quantity:     r.Quantity,
		Unit:         domain.UnitType(r.Unit),
		IsOrganic:    r.IsOrganic,
		IsOutOfStock: r.IsOutOfStock,
		IsFeatured:   r.IsFeatured,
	}
}

func isDomainValidation(err error) bool {
	return errors.Is(err, domain.ErrEmptyName) ||
		errors.Is(err, domain.ErrEmptySellerID) ||
		errors.Is(err, domain.ErrInvalidCategory) ||
		errors.Is(err, domain.ErrInvalidUnit) ||
		errors.Is(err, domain.ErrNegativePrice) ||
		errors.Is(err, domain.ErrNegativeQty)
}
