package watchdog

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/store"
)

// StoreTimeline answers activity questions from the lead's own contact
// timestamp. Deployments with a dedicated activity service swap in their own
// ActivityTimeline implementation.
type StoreTimeline struct {
	store *store.Store
}

// NewStoreTimeline creates a store-backed activity timeline.
func NewStoreTimeline(st *store.Store) *StoreTimeline {
	return &StoreTimeline{store: st}
}

// HasContactActivitySince reports whether the lead was contacted after the
// given instant.
func (t *StoreTimeline) HasContactActivitySince(ctx context.Context, leadID int, since time.Time) (bool, error) {
	lead, err := t.store.GetLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	return lead.LastContactedAt != nil && lead.LastContactedAt.After(since), nil
}
