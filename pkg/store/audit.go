package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// AppendLog writes one immutable assignment-log row. There is deliberately no
// update or delete counterpart; this table is the system of record for "why
// did this lead end up here".
func (s *Store) AppendLog(ctx context.Context, e *models.AssignmentLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	id, err := s.insertID(ctx,
		`INSERT INTO assignment_log
		        (tenant_id, lead_id, prev_owner_kind, prev_owner_id,
		         new_owner_kind, new_owner_id, source, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.LeadID, e.PrevOwnerKind, e.PrevOwnerID,
		e.NewOwnerKind, e.NewOwnerID, e.Source, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append assignment log: %w", err)
	}
	e.ID = id
	return nil
}

// QueryLogs returns a page of a tenant's assignment log, newest first.
func (s *Store) QueryLogs(ctx context.Context, tenantID int, f models.AssignmentLogFilter) ([]models.AssignmentLogEntry, int, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	where := []string{"tenant_id = ?"}
	args := []any{tenantID}
	if f.LeadID != 0 {
		where = append(where, "lead_id = ?")
		args = append(args, f.LeadID)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(1) FROM assignment_log WHERE `+cond), args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count assignment logs: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, tenant_id, lead_id, prev_owner_kind, prev_owner_id,
		        new_owner_kind, new_owner_id, source, reason, created_at
		   FROM assignment_log WHERE `+cond+`
		  ORDER BY id DESC LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query assignment logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AssignmentLogEntry
	for rows.Next() {
		var e models.AssignmentLogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.LeadID, &e.PrevOwnerKind,
			&e.PrevOwnerID, &e.NewOwnerKind, &e.NewOwnerID, &e.Source,
			&e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
