package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
}

// Store keeps the first response per Idempotency-Key for ttl.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now, items: make(map[string]entry)}
}

// Reserve is first-writer-wins while the existing entry is live.
func (s *Store) Reserve(_ context.Context, key, requestHash string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && s.live(e) {
		resp := e.response
		resp.Body = append([]byte(nil), e.response.Body...)
		return &resp, nil
	}
	s.items[key] = entry{response: ports.StoredResponse{RequestHash: requestHash}, savedAt: s.now()}
	return nil, nil
}

// Complete stores the response for a reserved key. A key that already holds
// a response keeps it.
func (s *Store) Complete(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && !e.response.InFlight() && s.live(e) {
		return nil
	}
	response.Body = append([]byte(nil), response.Body...)
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}

// Release drops an unfinished reservation so the key can be retried.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && e.response.InFlight() {
		delete(s.items, key)
	}
	return nil
}

func (s *Store) live(e entry) bool {
	age := s.now().Sub(e.savedAt)
	if e.response.InFlight() {
		return age < ports.ReservationTimeout
	}
	return s.ttl <= 0 || age < s.ttl
}
