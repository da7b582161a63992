package audit

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// Service is the append-only assignment audit trail. Entries are never
// mutated or deleted.
type Service struct {
	store *store.Store
}

// NewService creates a new audit service
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Record appends one decision to the trail.
func (s *Service) Record(ctx context.Context, e *models.AssignmentLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.store.AppendLog(ctx, e)
}

// Query returns a page of a tenant's assignment log, newest first. Consumed
// by the external assignment-logs view.
func (s *Service) Query(ctx context.Context, tenantID int, f models.AssignmentLogFilter) (*models.AssignmentLogPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, total, err := s.store.QueryLogs(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []models.AssignmentLogEntry{}
	}
	return &models.AssignmentLogPage{
		Data:       entries,
		Pagination: models.NewPaginationInfo(page, limit, total),
	}, nil
}
