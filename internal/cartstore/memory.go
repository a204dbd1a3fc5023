package cartstore

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	cart      Cart
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when no Redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	carts map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, carts: map[string]entry{}}
}

func clone(c Cart) *Cart {
	out := &Cart{SupplierID: c.SupplierID, SupplierName: c.SupplierName, Items: make(map[uint]int, len(c.Items))}
	for k, v := range c.Items {
		out.Items[k] = v
	}
	return out
}

func (s *MemoryStore) Load(_ context.Context, token string) (*Cart, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.carts[token]
	if !ok {
		return NewCart(), nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.carts, token)
		return NewCart(), nil
	}
	return clone(e.cart), nil
}

func (s *MemoryStore) Save(_ context.Context, token string, cart *Cart) error {
	if token == "" {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cart.Empty() {
		delete(s.carts, token)
		return nil
	}
	s.carts[token] = entry{cart: *clone(*cart), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, token)
	return nil
}
