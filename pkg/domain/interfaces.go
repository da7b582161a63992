package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// CacheRepository defines caching operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// AgentDirectory lists the agents the engine may route to. Backed by the
// local agents table here; an external directory can stand in for tests or
// other deployments.
type AgentDirectory interface {
	ListEnabledAgents(ctx context.Context, tenantID int) ([]*models.Agent, error)
	GetAgent(ctx context.Context, agentID int) (*models.Agent, error)
}

// ActivityTimeline answers SLA questions for the watchdog. The production
// implementation reads the lead's contact timestamps; the real activity
// service is an external collaborator.
type ActivityTimeline interface {
	HasContactActivitySince(ctx context.Context, leadID int, since time.Time) (bool, error)
}

// OwnerChangedEvent is the payload fanned out after every ownership change.
type OwnerChangedEvent struct {
	TenantID  int
	LeadID    int
	OwnerKind models.OwnerKind
	OwnerID   int
	Source    models.DecisionSource
	Reason    string
	Escalated bool
}

// Notifier fans out owner-changed events. Implementations must never block
// the caller or surface delivery failures to it.
type Notifier interface {
	Dispatch(event OwnerChangedEvent)
}
