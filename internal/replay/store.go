package replay

import (
	"context"
	"sync"
	"time"
)

// Store tracks processor-scoped delivery ids. CheckAndMark returns true the
// first time a key is seen; every later call within the retention window
// returns false. Checking and marking is a single critical section per key
// so a sweep cannot evict a record between the check and the mark.
type Store interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
}

// MemoryStore is the in-process default.
type MemoryStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore builds a store that forgets keys after the retention window.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryStore) CheckAndMark(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if seenAt, ok := s.seen[key]; ok && now.Sub(seenAt) < s.retention {
		return false, nil
	}
	s.seen[key] = now
	return true, nil
}

func (s *MemoryStore) Forget(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen), nil
}

// Sweep evicts expired records and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, seenAt := range s.seen {
		if now.Sub(seenAt) >= s.retention {
			delete(s.seen, key)
			evicted++
		}
	}
	return evicted
}
