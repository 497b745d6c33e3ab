package service

import "sync"

// SyncRegistry hands out one SyncService per seller id, so every seller's
// mutations flow through a single writer regardless of how many requests
// arrive concurrently.
type SyncRegistry struct {
	mu       sync.Mutex
	factory  func() *SyncService
	sessions map[string]*SyncService
}

// NewSyncRegistry creates a registry; factory builds a fresh service with
// the shared repositories wired in.
func NewSyncRegistry(factory func() *SyncService) *SyncRegistry {
	return &SyncRegistry{
		factory:  factory,
		sessions: make(map[string]*SyncService),
	}
}

// ForSeller returns the seller's service, creating it on first use
func (r *SyncRegistry) ForSeller(sellerID string) *SyncService {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.sessions[sellerID]; ok {
		return svc
	}
	svc := r.factory()
	r.sessions[sellerID] = svc
	return svc
}

// Remove drops a seller's service, closing it
func (r *SyncRegistry) Remove(sellerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.sessions[sellerID]; ok {
		svc.Close()
		delete(r.sessions, sellerID)
	}
}

// Close releases every session
func (r *SyncRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, svc := range r.sessions {
		svc.Close()
		delete(r.sessions, id)
	}
}
