package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/domain"
)

type entry struct {
	mu       sync.Mutex
	lines    Lines
	lastSeen time.Time
	evicted  bool
}

// Memory is the in-process cart registry. Entries are created on first access
// and each carries its own lock, so a read-modify-write on one user's cart
// never interleaves with another on the same cart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (r *Memory) lookup(owner string) *entry {
	r.mu.RLock()
	e, ok := r.entries[owner]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[owner]; ok {
		return e
	}
	e = &entry{lastSeen: r.now()}
	r.entries[owner] = e
	return e
}

// Update runs fn with exclusive access to owner's lines. The entry is created
// if it does not exist yet.
func (r *Memory) Update(owner string, fn func(*Lines) error) error {
	for {
		e := r.lookup(owner)
		e.mu.Lock()
		if e.evicted {
			// swept between lookup and lock; retry on a fresh entry
			e.mu.Unlock()
			continue
		}
		e.lastSeen = r.now()
		err := fn(&e.lines)
		e.mu.Unlock()
		return err
	}
}

// View returns a copy of owner's lines.
func (r *Memory) View(owner string) []domain.CartLine {
	var out []domain.CartLine
	_ = r.Update(owner, func(l *Lines) error {
		out = l.Snapshot()
		return nil
	})
	return out
}

// Len is the number of carts currently held.
func (r *Memory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep drops carts not touched for idle and returns how many were removed.
// Carts that are locked at the moment are skipped.
func (r *Memory) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for owner, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastSeen.Before(cutoff) {
			e.evicted = true
			delete(r.entries, owner)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done. A non-positive idle or
// interval disables it.
func (r *Memory) RunJanitor(ctx context.Context, interval, idle time.Duration, logger *zap.Logger) {
	if interval <= 0 || idle <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				logger.Info("idle carts evicted", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
