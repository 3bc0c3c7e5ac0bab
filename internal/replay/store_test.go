package replay

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCheckAndMarkFirstSeenWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Minute)

	first, err := store.CheckAndMark(ctx, "bold:ref-1:txn-9")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !first {
		t.Fatalf("first delivery must be fresh")
	}

	second, err := store.CheckAndMark(ctx, "bold:ref-1:txn-9")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if second {
		t.Fatalf("redelivery must be a replay")
	}

	other, err := store.CheckAndMark(ctx, "bold:ref-2:txn-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !other {
		t.Fatalf("distinct keys must not collide")
	}
}

func TestCheckAndMarkConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Minute)

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.CheckAndMark(ctx, "paypal:tx-1")
			if err != nil {
				t.Errorf("check failed: %v", err)
				return
			}
			if fresh {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactly one delivery should be fresh, got %d", wins)
	}
}

func TestForgetReleasesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Minute)

	if _, err := store.CheckAndMark(ctx, "bold:ref-1"); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if err := store.Forget(ctx, "bold:ref-1"); err != nil {
		t.Fatalf("forget failed: %v", err)
	}
	fresh, err := store.CheckAndMark(ctx, "bold:ref-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !fresh {
		t.Fatalf("forgotten key must be markable again")
	}
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	if _, err := store.CheckAndMark(ctx, "old"); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	current = current.Add(10 * time.Minute)
	if _, err := store.CheckAndMark(ctx, "young"); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	current = current.Add(10 * time.Minute)
	if evicted := store.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	count, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("len failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining record, got %d", count)
	}

	// An expired record that was never swept still reads as fresh again.
	fresh, err := store.CheckAndMark(ctx, "old")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !fresh {
		t.Fatalf("expired record must not block remark")
	}
}
