package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const stateStoreSize = 10_000

// StateStore holds pending login states. Each state can be taken once.
type StateStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, StateData]
	ttl   time.Duration
	now   func() time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		cache: expirable.NewLRU[string, StateData](stateStoreSize, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put records d, stamping CreatedAt and ExpiresAt.
func (s *StateStore) Put(d StateData) StateData {
	d.CreatedAt = s.now()
	d.ExpiresAt = d.CreatedAt.Add(s.ttl)
	s.mu.Lock()
	s.cache.Add(d.State, d)
	s.mu.Unlock()
	return d
}

// Take removes and returns the state. Unknown, reused and expired states yield ErrStateNotFound.
func (s *StateStore) Take(state string) (StateData, error) {
	s.mu.Lock()
	d, ok := s.cache.Get(state)
	if ok {
		s.cache.Remove(state)
	}
	s.mu.Unlock()

	if !ok || !s.now().Before(d.ExpiresAt) {
		return StateData{}, ErrStateNotFound
	}
	return d, nil
}

func (s *StateStore) Len() int {
	return s.cache.Len()
}
