package replay

import (
	"context"
	"sync"
	"time"

	"github.com/mailgun/holster/v4/clock"
)

// MemoryGuard keeps keys in process memory. Suitable for a single instance.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: make(map[string]time.Time)}
}

func (g *MemoryGuard) Seen(_ context.Context, key string, expires time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.keys[key]; ok && clock.Now().Before(exp) {
		return true, nil
	}
	g.keys[key] = expires
	return false, nil
}

func (g *MemoryGuard) Forget(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

func (g *MemoryGuard) Prune(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := clock.Now()
	for key, exp := range g.keys {
		if !now.Before(exp) {
			delete(g.keys, key)
		}
	}
	return nil
}

// Len returns the number of tracked keys.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}
