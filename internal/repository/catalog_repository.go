package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"farmazia/internal/docstore"
	"farmazia/internal/domain"
)

const productsCollection = "products"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrMissingProductID = errors.New("product id is missing")
)

// CatalogRepository is the source of truth for individual product records
type CatalogRepository interface {
	FetchAll(ctx context.Context) ([]domain.Product, error)
	FetchByID(ctx context.Context, id string) (*domain.Product, error)
	FetchByCategory(ctx context.Context, category domain.ProductCategory) ([]domain.Product, error)
	FetchBySeller(ctx context.Context, sellerID string) ([]domain.Product, error)
	FetchFeatured(ctx context.Context, limit int) ([]domain.Product, error)
	Search(ctx context.Context, term string) ([]domain.Product, error)
	Create(ctx context.Context, draft domain.ProductDraft) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, id string) error
	DeleteAllBySeller(ctx context.Context, sellerID string) error
	Subscribe(onChange func([]domain.Product)) *docstore.Subscription
}

type catalogRepository struct {
	store docstore.Store
}

// NewCatalogRepository creates a catalog over the given document store
func NewCatalogRepository(store docstore.Store) CatalogRepository {
	return &catalogRepository{store: store}
}

// FetchAll retrieves every product in the catalog
func (r *catalogRepository) FetchAll(ctx context.Context) ([]domain.Product, error) {
	entries, err := r.store.GetAll(ctx, productsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return decodeProducts(entries), nil
}

// FetchByID retrieves a single product
func (r *catalogRepository) FetchByID(ctx context.Context, id string) (*domain.Product, error) {
	entry, err := r.store.Get(ctx, productsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}

	product, err := decodeProduct(entry)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FetchByCategory retrieves products of one category
func (r *catalogRepository) FetchByCategory(ctx context.Context, category domain.ProductCategory) ([]domain.Product, error) {
	entries, err := r.store.GetWhere(ctx, productsCollection, "productType", string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products by category: %w", err)
	}
	return decodeProducts(entries), nil
}

// FetchBySeller retrieves every product owned by one seller
func (r *catalogRepository) FetchBySeller(ctx context.Context, sellerID string) ([]domain.Product, error) {
	entries, err := r.store.GetWhere(ctx, productsCollection, "sellerId", sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products by seller: %w", err)
	}
	return decodeProducts(entries), nil
}

// FetchFeatured retrieves up to limit featured products
func (r *catalogRepository) FetchFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	entries, err := r.store.Query(productsCollection).Where("isFeatured", true).Limit(limit).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch featured products: %w", err)
	}
	return decodeProducts(entries), nil
}

// Search matches the term against product names, case-insensitively.
// The whole catalog is fetched and filtered client-side, which only holds
// up at small catalog sizes.
func (r *catalogRepository) Search(ctx context.Context, term string) ([]domain.Product, error) {
	products, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	matched := []domain.Product{}
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Create persists a draft and returns the product with its assigned id
func (r *catalogRepository) Create(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	if err := draft.Validate(); err != nil {
		return domain.Product{}, err
	}

	id, err := r.store.Add(ctx, productsCollection, draft)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return draft.Saved(id), nil
}

// Update replaces a persisted product in full
func (r *catalogRepository) Update(ctx context.Context, product domain.Product) error {
	if product.ID == "" {
		return ErrMissingProductID
	}
	if err := product.Validate(); err != nil {
		return err
	}

	if err := r.store.Update(ctx, productsCollection, product.ID, product); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// Delete removes a product from the catalog
func (r *catalogRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, productsCollection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// DeleteAllBySeller removes every product owned by the seller. When an
// individual delete fails the remaining deletes are still attempted and the
// aggregate error is reported; cleanup is at-least-once, not atomic.
func (r *catalogRepository) DeleteAllBySeller(ctx context.Context, sellerID string) error {
	entries, err := r.store.GetWhere(ctx, productsCollection, "sellerId", sellerID)
	if err != nil {
		return fmt.Errorf("failed to list seller products: %w", err)
	}

	var failures []error
	for _, entry := range entries {
		if err := r.store.Delete(ctx, productsCollection, entry.ID); err != nil {
			failures = append(failures, fmt.Errorf("failed to delete product %s: %w", entry.ID, err))
		}
	}

	return errors.Join(failures...)
}

// Subscribe delivers the full catalog after every mutation
func (r *catalogRepository) Subscribe(onChange func([]domain.Product)) *docstore.Subscription {
	return r.store.Listen(productsCollection, func(entries []docstore.Entry) {
		onChange(decodeProducts(entries))
	})
}

func decodeProduct(entry docstore.Entry) (domain.Product, error) {
	var product domain.Product
	if err := entry.Decode(&product); err != nil {
		return domain.Product{}, err
	}
	// The store's id is authoritative over anything embedded in the document
	product.ID = entry.ID
	return product, nil
}

// decodeProducts skips entries that fail to decode, mirroring how the
// catalog tolerates malformed documents instead of failing the whole fetch
func decodeProducts(entries []docstore.Entry) []domain.Product {
	products := []domain.Product{}
	for _, entry := range entries {
		product, err := decodeProduct(entry)
		if err != nil {
			continue
		}
		products = append(products, product)
	}
	return products
}
