package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
)

// Repository stores tips. Mutations run inside a single critical section so
// concurrent webhook deliveries for the same tip serialize.
type Repository interface {
	Create(ctx context.Context, tip *Tip) (*Tip, error)
	Get(ctx context.Context, id string) (*Tip, error)
	FindByReference(ctx context.Context, reference string) (*Tip, error)
	Mutate(ctx context.Context, id string, fn func(*Tip) error) (*Tip, error)
	List(ctx context.Context, limit int) ([]*Tip, error)
	ListByPerformer(ctx context.Context, performerID string, limit int) ([]*Tip, error)
	Count(ctx context.Context) (int, error)
}

type memoryRepo struct {
	mu   sync.RWMutex
	tips map[string]*Tip
}

// NewMemoryRepository builds an in-process tip store.
func NewMemoryRepository() Repository {
	return &memoryRepo{tips: make(map[string]*Tip)}
}

func (r *memoryRepo) Create(ctx context.Context, tip *Tip) (*Tip, error) {
	if tip == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip is required")
	}
	if tip.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip amount must be positive")
	}

	stored := tip.clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tips[stored.ID]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "tip id already exists")
	}
	r.tips[stored.ID] = stored
	return stored.clone(), nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Tip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tip, ok := r.tips[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tip not found")
	}
	return tip.clone(), nil
}

// FindByReference resolves the tip a webhook's reference points at. The
// reference is the tip id; resolution stays a lookup so unknown references
// map cleanly to not-found.
func (r *memoryRepo) FindByReference(ctx context.Context, reference string) (*Tip, error) {
	return r.Get(ctx, reference)
}

func (r *memoryRepo) Mutate(ctx context.Context, id string, fn func(*Tip) error) (*Tip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tip, ok := r.tips[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tip not found")
	}

	working := tip.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.tips[id] = working
	return working.clone(), nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]*Tip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(limit, func(*Tip) bool { return true }), nil
}

func (r *memoryRepo) ListByPerformer(ctx context.Context, performerID string, limit int) ([]*Tip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(limit, func(t *Tip) bool { return t.PerformerID == performerID }), nil
}

func (r *memoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tips), nil
}

// collect assumes the caller holds at least a read lock.
func (r *memoryRepo) collect(limit int, keep func(*Tip) bool) []*Tip {
	out := make([]*Tip, 0, len(r.tips))
	for _, tip := range r.tips {
		if keep(tip) {
			out = append(out, tip.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
