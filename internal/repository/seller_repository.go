package repository

import (
	"context"
	"errors"
	"fmt"

	"farmazia/internal/docstore"
	"farmazia/internal/domain"
)

const sellersCollection = "sellers"

var (
	ErrSellerNotFound  = errors.New("seller not found")
	ErrMissingSellerID = errors.New("seller id is missing")
)

// SellerRepository stores the seller (farm profile) aggregate. Seller ids
// are never minted here: a seller's id IS the owning account's identity id,
// which keeps owner and account strictly one-to-one.
type SellerRepository interface {
	Create(ctx context.Context, seller domain.Seller) error
	GetByID(ctx context.Context, id string) (*domain.Seller, error)
	Update(ctx context.Context, seller domain.Seller) error
	Delete(ctx context.Context, id string) error
}

type sellerRepository struct {
	store docstore.Store
}

// NewSellerRepository creates a seller repository over the given document store
func NewSellerRepository(store docstore.Store) SellerRepository {
	return &sellerRepository{store: store}
}

// Create persists a new seller under its pre-assigned id
func (r *sellerRepository) Create(ctx context.Context, seller domain.Seller) error {
	if seller.ID == "" {
		return ErrMissingSellerID
	}

	if err := r.store.Set(ctx, sellersCollection, seller.ID, seller); err != nil {
		return fmt.Errorf("failed to create seller: %w", err)
	}
	return nil
}

// GetByID retrieves a seller by id
func (r *sellerRepository) GetByID(ctx context.Context, id string) (*domain.Seller, error) {
	entry, err := r.store.Get(ctx, sellersCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}

	var seller domain.Seller
	if err := entry.Decode(&seller); err != nil {
		return nil, err
	}
	seller.ID = entry.ID
	return &seller, nil
}

// Update replaces the full seller document
func (r *sellerRepository) Update(ctx context.Context, seller domain.Seller) error {
	if seller.ID == "" {
		return ErrMissingSellerID
	}

	if err := r.store.Update(ctx, sellersCollection, seller.ID, seller); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrSellerNotFound
		}
		return fmt.Errorf("failed to update seller: %w", err)
	}
	return nil
}

// Delete removes a seller document
func (r *sellerRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, sellersCollection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrSellerNotFound
		}
		return fmt.Errorf("failed to delete seller: %w", err)
	}
	return nil
}
