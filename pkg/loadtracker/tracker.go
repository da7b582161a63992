package loadtracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jordanlanch/leadrouter/pkg/store"
)

// Tracker maintains each agent's current active-lead count. The counters are
// derived state: Rebuild re-derives them from the leads table so the sum per
// tenant always matches the assigned leads on record after a restart.
type Tracker struct {
	mu     sync.RWMutex
	counts map[int]int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{counts: make(map[int]int)}
}

// ActiveCount returns an agent's current active-lead count.
func (t *Tracker) ActiveCount(agentID int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[agentID]
}

// Increment records one more active lead for an agent.
func (t *Tracker) Increment(agentID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[agentID]++
}

// Decrement records one fewer active lead for an agent. Never goes negative.
func (t *Tracker) Decrement(agentID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[agentID] > 0 {
		t.counts[agentID]--
	}
}

// HasCapacity reports whether an agent can take another lead. A nil capacity
// means unlimited.
func (t *Tracker) HasCapacity(agentID int, capacity *int) bool {
	if capacity == nil {
		return true
	}
	return t.ActiveCount(agentID) < *capacity
}

// Rebuild rehydrates a tenant's counters from persisted lead state.
func (t *Tracker) Rebuild(ctx context.Context, st *store.Store, tenantID int) error {
	counts, err := st.CountAssignedByAgent(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to rebuild load counters: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for agentID, n := range counts {
		t.counts[agentID] = n
	}
	return nil
}
