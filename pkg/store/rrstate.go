package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// GetRoundRobinState loads a tenant's rotation state. A tenant with no row
// yet gets a fresh zero state; the first refill initializes the credits.
func (s *Store) GetRoundRobinState(ctx context.Context, tenantID int) (*models.RoundRobinState, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT tenant_id, cursor, credits, last_reset_at
		   FROM round_robin_state WHERE tenant_id = ?`), tenantID)

	var st models.RoundRobinState
	var creditsJSON string
	var lastReset sql.NullTime
	err := row.Scan(&st.TenantID, &st.Cursor, &creditsJSON, &lastReset)
	if err == sql.ErrNoRows {
		return &models.RoundRobinState{TenantID: tenantID, Credits: map[int]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rotation state: %w", err)
	}
	if lastReset.Valid {
		st.LastResetAt = lastReset.Time
	}

	// JSON object keys are strings; credits are keyed by agent id.
	raw := map[string]int{}
	if err := json.Unmarshal([]byte(creditsJSON), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode rotation credits: %w", err)
	}
	st.Credits = make(map[int]int, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("failed to decode rotation credits: %w", err)
		}
		st.Credits[id] = v
	}
	return &st, nil
}

// SaveRoundRobinState upserts a tenant's rotation state.
func (s *Store) SaveRoundRobinState(ctx context.Context, st *models.RoundRobinState) error {
	raw := make(map[string]int, len(st.Credits))
	for id, c := range st.Credits {
		raw[strconv.Itoa(id)] = c
	}
	creditsJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode rotation credits: %w", err)
	}

	var lastReset sql.NullTime
	if !st.LastResetAt.IsZero() {
		lastReset = sql.NullTime{Time: st.LastResetAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO round_robin_state (tenant_id, cursor, credits, last_reset_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		        cursor = excluded.cursor,
		        credits = excluded.credits,
		        last_reset_at = excluded.last_reset_at`),
		st.TenantID, st.Cursor, string(creditsJSON), lastReset)
	if err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}
