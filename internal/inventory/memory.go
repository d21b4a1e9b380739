package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/google/uuid"
)

const (
	// reservationTTL is how long a held reservation is valid before the
	// background sweep returns its stock to the pool.
	reservationTTL = 5 * time.Minute

	cleanupInterval = 30 * time.Second
)

type reservationStatus string

const (
	statusHeld     reservationStatus = "held"
	statusReleased reservationStatus = "released"
	statusExpired  reservationStatus = "expired"
)

type reservation struct {
	id        string
	key       string
	items     []ReserveItem
	status    reservationStatus
	expiresAt time.Time
}

type stock struct {
	total    int32
	reserved int32
}

func (s stock) available() int32 {
	return s.total - s.reserved
}

// MemoryStore is an in-process Client used by the local wiring and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	stocks       map[string]*stock
	reservations map[string]*reservation
	byKey        map[string]string

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		stocks:       make(map[string]*stock),
		reservations: make(map[string]*reservation),
		byKey:        make(map[string]string),
		stopCleanup:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireReservations()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireReservations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, r := range s.reservations {
		if r.status == statusHeld && now.After(r.expiresAt) {
			r.status = statusExpired
			for _, item := range r.items {
				s.stocks[item.SKU].reserved -= item.Quantity
			}
			if r.key != "" {
				delete(s.byKey, r.key)
			}
		}
	}
}

// Reserve validates every line before touching stock, so a failed batch
// leaves no partial holds behind. A key already backed by a live hold answers
// with that hold instead of placing a second one.
func (s *MemoryStore) Reserve(_ context.Context, idempotencyKey string, items []ReserveItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := s.byKey[idempotencyKey]; ok {
			if r := s.reservations[id]; r != nil && r.status == statusHeld {
				return id, nil
			}
		}
	}

	for _, item := range items {
		st, exists := s.stocks[item.SKU]
		if !exists {
			return "", &domain.UnknownSKUError{SKU: item.SKU}
		}
		if st.available() < item.Quantity {
			return "", &domain.OutOfStockError{SKU: item.SKU}
		}
	}

	for _, item := range items {
		s.stocks[item.SKU].reserved += item.Quantity
	}

	r := &reservation{
		id:        uuid.New().String(),
		key:       idempotencyKey,
		items:     items,
		status:    statusHeld,
		expiresAt: time.Now().Add(reservationTTL),
	}
	s.reservations[r.id] = r
	if idempotencyKey != "" {
		s.byKey[idempotencyKey] = r.id
	}
	return r.id, nil
}

// Release voids a held reservation and returns its stock to the pool.
// Unknown or already-released reservations are a no-op success.
func (s *MemoryStore) Release(_ context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.reservations[reservationID]
	if !exists || r.status != statusHeld {
		return nil
	}

	for _, item := range r.items {
		s.stocks[item.SKU].reserved -= item.Quantity
	}
	r.status = statusReleased
	if r.key != "" {
		delete(s.byKey, r.key)
	}
	return nil
}

// SetStock sets the stock level for a SKU (used for seeding).
func (s *MemoryStore) SetStock(sku string, quantity int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stocks[sku] = &stock{total: quantity}
}

// Available returns total minus reserved for a SKU, zero if unknown.
func (s *MemoryStore) Available(sku string) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.stocks[sku]
	if !exists {
		return 0
	}
	return st.available()
}

// Close stops the background cleanup and waits for it to finish.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
