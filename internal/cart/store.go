package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storefront-gateway/internal/config"
	"storefront-gateway/internal/metrics"
)

// Store persists carts by id.
type Store interface {
	// Get returns a copy of the cart, or ErrNotFound.
	Get(ctx context.Context, id string) (*Cart, error)
	// Put saves a cart and refreshes its expiry.
	Put(ctx context.Context, c *Cart) error
	// Clear removes a cart. Clearing an unknown id is not an error.
	Clear(ctx context.Context, id string) error
	// Update applies fn to the cart (a new empty one if absent) and saves the result atomically.
	Update(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error)
}

// MemoryStore keeps carts in process memory. A cart expires once it has
// been idle for longer than the TTL.
type MemoryStore struct {
	mu     sync.Mutex
	carts  map[string]*Cart
	ttl    time.Duration
	now    func() time.Time
	gauge  func(float64)
	logger *slog.Logger
}

// NewMemoryStore creates a MemoryStore using cfg.Cart.TTL. m may be nil.
func NewMemoryStore(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *MemoryStore {
	s := &MemoryStore{
		carts:  make(map[string]*Cart),
		ttl:    cfg.Cart.TTL(),
		now:    time.Now,
		gauge:  func(float64) {},
		logger: logger.With("component", "cart_store"),
	}
	if m != nil {
		s.gauge = m.ActiveCarts.Set
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	stored.UpdatedAt = s.now()
	s.carts[c.ID] = stored
	s.gauge(float64(len(s.carts)))
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
	s.gauge(float64(len(s.carts)))
	return nil
}

// Update implements Store. The cart is left untouched when fn fails.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(id)
	if ok {
		c = c.Clone()
	} else {
		c = New(id)
	}
	if err := fn(c); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now()
	s.carts[id] = c
	s.gauge(float64(len(s.carts)))
	return c.Clone(), nil
}

// Len returns the number of stored carts, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// Sweep drops expired carts and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.carts {
		if s.expired(c) {
			delete(s.carts, id)
			removed++
		}
	}
	s.gauge(float64(len(s.carts)))
	return removed
}

// Run sweeps expired carts every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired carts removed", "count", n)
			}
		}
	}
}

// live returns the cart for id if it exists and has not expired.
// Callers must hold s.mu.
func (s *MemoryStore) live(id string) (*Cart, bool) {
	c, ok := s.carts[id]
	if !ok {
		return nil, false
	}
	if s.expired(c) {
		delete(s.carts, id)
		s.gauge(float64(len(s.carts)))
		return nil, false
	}
	return c, true
}

func (s *MemoryStore) expired(c *Cart) bool {
	return s.ttl > 0 && s.now().Sub(c.UpdatedAt) > s.ttl
}
