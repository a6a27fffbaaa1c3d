// Package guard provides small concurrency guards for operations that must
// not overlap: the recording/processing pipeline and shutdown cleanup.
package guard

import (
	"log/slog"
	"sync"
)

// OperationGuard admits at most one named operation at a time. A trigger
// that fires while an operation is in flight is rejected, not queued.
type OperationGuard struct {
	mu     sync.Mutex
	active string
}

// NewOperationGuard returns an idle guard.
func NewOperationGuard() *OperationGuard {
	return &OperationGuard{}
}

// TryEnter attempts to begin the named operation. It returns true and
// records the name when the guard was idle; otherwise it returns false and
// the guard is unchanged. name must be non-empty.
func (g *OperationGuard) TryEnter(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != "" {
		slog.Debug("operation rejected", "name", name, "active", g.active)
		return false
	}
	g.active = name
	return true
}

// Leave ends the operation that previously entered. Leaving an idle guard
// is a no-op so error paths can defer it unconditionally.
func (g *OperationGuard) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = ""
}

// Active returns the name of the operation in flight, or "" when idle.
func (g *OperationGuard) Active() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// CleanupGuard makes a cleanup routine run exactly once. Later callers get
// false immediately instead of running cleanup again.
type CleanupGuard struct {
	mu      sync.Mutex
	started bool
}

// Begin marks cleanup as started. Only the first call returns true.
func (g *CleanupGuard) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return false
	}
	g.started = true
	return true
}

// Started reports whether cleanup has begun.
func (g *CleanupGuard) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}
