package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"farmazia/internal/blob"
	"farmazia/internal/domain"
	"farmazia/internal/identity"
	"farmazia/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrOwnerNotLoaded is returned by operations that require a loaded seller
// profile when none is present.
var ErrOwnerNotLoaded = errors.New("seller profile is not loaded")

// productImagePrefix scopes uploaded product image blobs
const productImagePrefix = "product_images"

// SyncState is an immutable snapshot of the synchronization service's state.
// ErrorMessage carries the last failure in user-presentable form; it is
// cleared by the next successful operation.
type SyncState struct {
	Seller       *domain.Seller
	Products     []domain.Product
	ErrorMessage string
}

// OwnerAttributes are the farm-profile fields a seller can edit. Empty
// fields fall back to the existing value (or the identity's, on creation);
// the denormalized product references and the rating are never touched here.
type OwnerAttributes struct {
	FullName        string
	Email           string
	PhoneNumber     string
	FarmName        string
	FarmDescription string
	Address         domain.Address
}

// SyncService keeps one seller's profile, their product catalog entries and
// the seller's denormalized product-reference list consistent across
// mutations. All mutating operations are serialized: the mutex is held for
// the whole operation including its remote round trips, so two concurrent
// calls can never interleave their state updates.
type SyncService struct {
	sellers repository.SellerRepository
	catalog repository.CatalogRepository
	blobs   blob.Store
	idp     identity.Provider
	logger  *zap.Logger

	mu       sync.Mutex
	seller   *domain.Seller
	products []domain.Product
	errMsg   string

	subMu       sync.Mutex
	subscribers map[int]func(SyncState)
	nextSubID   int

	releaseUsers func()
}

// NewSyncService creates the service and subscribes to identity changes:
// a sign-out observed on the stream clears the loaded seller and products.
// Close must be called to release the subscription.
func NewSyncService(
	sellers repository.SellerRepository,
	catalog repository.CatalogRepository,
	blobs blob.Store,
	idp identity.Provider,
	logger *zap.Logger,
) *SyncService {
	s := &SyncService{
		sellers:     sellers,
		catalog:     catalog,
		blobs:       blobs,
		idp:         idp,
		logger:      logger,
		subscribers: make(map[int]func(SyncState)),
	}

	changes, release := idp.UserChanges()
	s.releaseUsers = release
	go func() {
		for id := range changes {
			if id == nil {
				s.clearState()
			}
		}
	}()

	return s
}

// Close releases the identity-change subscription
func (s *SyncService) Close() {
	s.releaseUsers()
}

// State returns a snapshot of the current seller, products and last error
func (s *SyncService) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer that receives a state snapshot after
// every operation. The returned function removes the observer.
func (s *SyncService) Subscribe(fn func(SyncState)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// mutate runs op under the mutex and delivers the resulting snapshot to
// subscribers after the mutex is released. Observers may therefore call
// back into the service from their callback without deadlocking.
func (s *SyncService) mutate(op func() error) error {
	s.mu.Lock()
	err := op()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snapshot)
	return err
}

// LoadOwner resolves the active identity and fetches its seller profile.
// A missing profile is not an error (the account has not completed farm
// setup yet); a loaded profile triggers a product load.
func (s *SyncService) LoadOwner(ctx context.Context) error {
	return s.mutate(func() error {
		user, err := s.idp.CurrentUser(ctx)
		if err != nil {
			return s.failLocked(identity.ErrUnauthenticated, "No authenticated user found")
		}

		seller, err := s.sellers.GetByID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, repository.ErrSellerNotFound) {
				s.seller = nil
				s.products = nil
				s.succeedLocked()
				return nil
			}
			return s.failLocked(err, fmt.Sprintf("Failed to load seller: %v", err))
		}

		s.seller = seller
		if err := s.loadProductsLocked(ctx); err != nil {
			return err
		}
		s.succeedLocked()
		return nil
	})
}

// LoadProducts refetches the seller's products from the catalog, replaces
// the in-memory list wholesale and persists the rebuilt reference list.
func (s *SyncService) LoadProducts(ctx context.Context) error {
	return s.mutate(func() error {
		if err := s.loadProductsLocked(ctx); err != nil {
			return err
		}
		s.succeedLocked()
		return nil
	})
}

func (s *SyncService) loadProductsLocked(ctx context.Context) error {
	if s.seller == nil {
		return s.failLocked(ErrOwnerNotLoaded, "Seller profile is not loaded")
	}

	products, err := s.catalog.FetchBySeller(ctx, s.seller.ID)
	if err != nil {
		return s.failLocked(err, fmt.Sprintf("Failed to load products: %v", err))
	}

	// Replace, never merge: the catalog is authoritative
	s.products = products
	s.seller.ProductIDs = productIDs(products)

	if err := s.sellers.Update(ctx, *s.seller); err != nil {
		return s.failLocked(err, fmt.Sprintf("Failed to persist seller references: %v", err))
	}
	return nil
}

// CreateOrUpdateOwner upserts the seller profile keyed on the active
// identity. An existing profile keeps its product references and rating;
// a new one gets the identity's id, enforcing one seller per account.
func (s *SyncService) CreateOrUpdateOwner(ctx context.Context, attrs OwnerAttributes) error {
	return s.mutate(func() error {
		user, err := s.idp.CurrentUser(ctx)
		if err != nil {
			return s.failLocked(identity.ErrUnauthenticated, "No authenticated user found")
		}

		if s.seller != nil {
			updated := *s.seller
			applyAttributes(&updated, attrs)
			if err := s.sellers.Update(ctx, updated); err != nil {
				return s.failLocked(err, fmt.Sprintf("Failed to update farm: %v", err))
			}
			s.seller = &updated
			s.succeedLocked()
			return nil
		}

		seller := domain.Seller{
			ID:       user.ID,
			FullName: user.FullName,
			ContactInformation: domain.Contact{
				Email: user.Email,
			},
			ProductIDs: []string{},
		}
		applyAttributes(&seller, attrs)

		if err := s.sellers.Create(ctx, seller); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to create farm: %v", err))
		}
		s.seller = &seller
		s.succeedLocked()
		return nil
	})
}

// AddProduct uploads the optional image, creates the catalog entry and
// optimistically appends it to the in-memory list. The image upload always
// precedes persistence so a stored product never references an image that
// has not finished uploading. If creation fails after a successful upload,
// the uploaded blob is deleted best-effort.
func (s *SyncService) AddProduct(ctx context.Context, draft domain.ProductDraft, image []byte) (domain.Product, error) {
	var product domain.Product
	err := s.mutate(func() error {
		if s.seller == nil {
			return s.failLocked(ErrOwnerNotLoaded, "Seller profile is not loaded")
		}
		draft.SellerID = s.seller.ID

		imagePath := ""
		if image != nil {
			imagePath = fmt.Sprintf("%s/%s.jpg", productImagePrefix, uuid.NewString())
			url, err := s.blobs.Upload(ctx, image, imagePath)
			if err != nil {
				return s.failLocked(err, fmt.Sprintf("Failed to upload image: %v", err))
			}
			draft.Image = url
		}

		created, err := s.catalog.Create(ctx, draft)
		if err != nil {
			if imagePath != "" {
				if delErr := s.blobs.Delete(ctx, imagePath); delErr != nil {
					s.logger.Warn("Failed to clean up orphaned image",
						zap.String("path", imagePath),
						zap.Error(delErr),
					)
				}
			}
			return s.failLocked(err, fmt.Sprintf("Failed to add product: %v", err))
		}

		s.products = append(s.products, created)
		s.seller.ProductIDs = append(s.seller.ProductIDs, created.ID)

		if err := s.sellers.Update(ctx, *s.seller); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to persist seller references: %v", err))
		}

		product = created
		s.succeedLocked()
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct replaces a catalog entry in place. Only entries in the
// loaded seller's list can be targeted; an id outside it is rejected with
// ErrProductNotFound before any remote call. A new image is uploaded and
// attached before the catalog write; the previous blob is deleted
// best-effort first.
func (s *SyncService) UpdateProduct(ctx context.Context, product domain.Product, newImage []byte) error {
	return s.mutate(func() error {
		if s.seller == nil {
			return s.failLocked(ErrOwnerNotLoaded, "Seller profile is not loaded")
		}
		if product.ID == "" {
			return s.failLocked(repository.ErrMissingProductID, "Product id is missing")
		}
		idx := s.indexOfLocked(product.ID)
		if idx < 0 {
			return s.failLocked(repository.ErrProductNotFound, "Product not found")
		}
		product.SellerID = s.seller.ID

		if newImage != nil {
			if product.Image != "" {
				if err := s.blobs.Delete(ctx, product.Image); err != nil {
					s.logger.Warn("Failed to delete previous image",
						zap.String("url", product.Image),
						zap.Error(err),
					)
				}
			}
			path := fmt.Sprintf("%s/%s.jpg", productImagePrefix, uuid.NewString())
			url, err := s.blobs.Upload(ctx, newImage, path)
			if err != nil {
				return s.failLocked(err, fmt.Sprintf("Failed to upload image: %v", err))
			}
			product.Image = url
		}

		if err := s.catalog.Update(ctx, product); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to update product: %v", err))
		}

		s.products[idx] = product
		s.seller.ProductIDs = productIDs(s.products)

		s.succeedLocked()
		return nil
	})
}

// DeleteProduct removes a catalog entry. Only ids in the loaded seller's
// list are deletable. The remote delete happens first; only after it
// succeeds is the entry dropped locally, so a failed delete never leaves a
// dangling reference. This is deliberately the opposite of AddProduct's
// optimistic append.
func (s *SyncService) DeleteProduct(ctx context.Context, id string) error {
	return s.mutate(func() error {
		if s.seller == nil {
			return s.failLocked(ErrOwnerNotLoaded, "Seller profile is not loaded")
		}
		if s.indexOfLocked(id) < 0 {
			return s.failLocked(repository.ErrProductNotFound, "Product not found")
		}

		if err := s.catalog.Delete(ctx, id); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to delete product: %v", err))
		}

		kept := s.products[:0]
		for _, p := range s.products {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		s.products = kept
		s.seller.ProductIDs = productIDs(s.products)

		if err := s.sellers.Update(ctx, *s.seller); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to persist seller references: %v", err))
		}

		s.succeedLocked()
		return nil
	})
}

// DeleteOwnerAccount deletes every owned product, then the seller document,
// then the identity account, strictly in that order: the identity must
// outlive the cleanup it authorizes. Each step must succeed before the next
// begins.
func (s *SyncService) DeleteOwnerAccount(ctx context.Context) error {
	return s.mutate(func() error {
		if s.seller == nil {
			return s.failLocked(ErrOwnerNotLoaded, "Seller profile is not loaded")
		}
		sellerID := s.seller.ID

		if err := s.catalog.DeleteAllBySeller(ctx, sellerID); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to delete products: %v", err))
		}

		if err := s.sellers.Delete(ctx, sellerID); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to delete seller: %v", err))
		}

		if err := s.idp.DeleteAccount(ctx); err != nil {
			return s.failLocked(err, fmt.Sprintf("Failed to delete account: %v", err))
		}

		s.seller = nil
		s.products = nil
		s.succeedLocked()
		return nil
	})
}

// MoveProduct reorders the in-memory list. Ordering is a purely local
// concern and triggers no remote write.
func (s *SyncService) MoveProduct(from, to int) {
	s.mutate(func() error {
		if from < 0 || from >= len(s.products) || to < 0 || to > len(s.products) {
			return nil
		}

		moved := s.products[from]
		rest := append(s.products[:from:from], s.products[from+1:]...)
		dst := to
		if dst > from {
			dst--
		}
		s.products = append(rest[:dst:dst], append([]domain.Product{moved}, rest[dst:]...)...)
		return nil
	})
}

func (s *SyncService) clearState() {
	s.mutate(func() error {
		s.seller = nil
		s.products = nil
		s.errMsg = ""
		return nil
	})
}

// indexOfLocked returns the position of id in the loaded product list, or
// -1 when the seller does not own it
func (s *SyncService) indexOfLocked(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

// failLocked records the user-visible message and returns the error. The
// updated state reaches subscribers when the enclosing mutate returns.
func (s *SyncService) failLocked(err error, message string) error {
	s.errMsg = message
	s.logger.Error("Sync operation failed", zap.Error(err))
	return err
}

func (s *SyncService) succeedLocked() {
	s.errMsg = ""
}

func (s *SyncService) snapshotLocked() SyncState {
	state := SyncState{ErrorMessage: s.errMsg}
	if s.seller != nil {
		seller := *s.seller
		seller.ProductIDs = append([]string{}, s.seller.ProductIDs...)
		state.Seller = &seller
	}
	state.Products = append([]domain.Product{}, s.products...)
	return state
}

func (s *SyncService) publish(state SyncState) {
	s.subMu.Lock()
	observers := make([]func(SyncState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func applyAttributes(seller *domain.Seller, attrs OwnerAttributes) {
	if attrs.FullName != "" {
		seller.FullName = attrs.FullName
	}
	if attrs.Email != "" {
		seller.ContactInformation.Email = attrs.Email
	}
	if attrs.PhoneNumber != "" {
		seller.ContactInformation.PhoneNumber = attrs.PhoneNumber
	}
	if attrs.FarmName != "" {
		seller.FarmName = attrs.FarmName
	}
	if attrs.FarmDescription != "" {
		seller.FarmDescription = attrs.FarmDescription
	}
	if attrs.Address != (domain.Address{}) {
		seller.ContactInformation.AddressInformation = attrs.Address
	}
}

func productIDs(products []domain.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
