package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"shopsync/internal/domain"
)

func TestLinesSetSemantics(t *testing.T) {
	var l Lines
	l.Add("1", 2)
	l.Add("2", 1)
	l.Add("1", 3)

	got := l.Snapshot()
	want := []domain.CartLine{{ProductID: "1", Quantity: 5}, {ProductID: "2", Quantity: 1}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if l.Set("3", 0) {
		t.Fatalf("expected removing a missing line to be a no-op")
	}
	if !l.Set("1", 0) {
		t.Fatalf("expected removal to report a change")
	}
	if !l.Set("2", 7) || l.Snapshot()[0].Quantity != 7 {
		t.Fatalf("expected absolute set, got %v", l.Snapshot())
	}
	if !l.Set("4", 1) || l.Len() != 2 {
		t.Fatalf("expected set on a missing line to insert, got %v", l.Snapshot())
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("expected empty lines after clear, got %v", l.Snapshot())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	var l Lines
	l.Add("1", 1)
	snap := l.Snapshot()
	snap[0].Quantity = 99
	if l.Snapshot()[0].Quantity != 1 {
		t.Fatalf("snapshot aliases stored lines")
	}
}

func TestMemoryCreatesLazilyAndIsolatesOwners(t *testing.T) {
	repo := NewMemory()
	if got := repo.View("A"); len(got) != 0 {
		t.Fatalf("expected empty cart, got %v", got)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected view to create the entry, got %d entries", repo.Len())
	}

	_ = repo.Update("A", func(l *Lines) error { l.Add("1", 1); return nil })
	_ = repo.Update("B", func(l *Lines) error { l.Add("2", 4); return nil })

	if a := repo.View("A"); len(a) != 1 || a[0].ProductID != "1" {
		t.Fatalf("unexpected cart for A: %v", a)
	}
	if b := repo.View("B"); len(b) != 1 || b[0].Quantity != 4 {
		t.Fatalf("unexpected cart for B: %v", b)
	}
}

func TestUpdatePropagatesError(t *testing.T) {
	repo := NewMemory()
	boom := errors.New("boom")
	if err := repo.Update("A", func(*Lines) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	repo := NewMemory()
	var g errgroup.Group
	for i := 0; i < 200; i++ {
		g.Go(func() error {
			return repo.Update("A", func(l *Lines) error {
				l.Add("1", 1)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := repo.View("A"); len(got) != 1 || got[0].Quantity != 200 {
		t.Fatalf("expected quantity 200, got %v", got)
	}
}

func TestSweepEvictsIdleCarts(t *testing.T) {
	repo := NewMemory()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_ = repo.Update("old", func(l *Lines) error { l.Add("1", 1); return nil })
	now = now.Add(2 * time.Hour)
	_ = repo.Update("fresh", func(l *Lines) error { l.Add("1", 1); return nil })

	if n := repo.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 remaining cart, got %d", repo.Len())
	}
	if got := repo.View("old"); len(got) != 0 {
		t.Fatalf("expected evicted cart to come back empty, got %v", got)
	}
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	repo := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		repo.RunJanitor(ctx, time.Millisecond, time.Nanosecond, nil)
		close(done)
	}()

	_ = repo.Update("A", func(l *Lines) error { l.Add("1", 1); return nil })
	deadline := time.Now().Add(time.Second)
	for repo.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.Len() != 0 {
		t.Fatalf("expected janitor to evict idle cart")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}

func TestLinesQuantity(t *testing.T) {
	var l Lines
	if got := l.Quantity("1"); got != 0 {
		t.Fatalf("expected 0 for a missing line, got %d", got)
	}
	l.Add("1", 4)
	if got := l.Quantity("1"); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}
