package store

import "strings"

// migrations returns the DDL for the engine tables. The two dialects differ
// only in their auto-increment primary key spelling, so the statements are
// written once with a marker that gets substituted per dialect.
func migrations(dialect string) []string {
	pk := "BIGSERIAL PRIMARY KEY"
	if dialect == DialectSQLite {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assignment_config (
			tenant_id INTEGER PRIMARY KEY,
			method TEXT NOT NULL,
			agents TEXT NOT NULL,
			sla_minutes INTEGER NOT NULL,
			max_auto_reassignments INTEGER NOT NULL,
			rule_fallback TEXT NOT NULL,
			default_pool_id INTEGER NOT NULL,
			escalation_pool_id INTEGER NOT NULL,
			sweep_interval_seconds INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS agents (
			id __PK__,
			tenant_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			team_id INTEGER,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			capacity INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_tenant_enabled ON agents (tenant_id, enabled)`,

		`CREATE TABLE IF NOT EXISTS leads (
			id __PK__,
			tenant_id INTEGER NOT NULL,
			campaign TEXT NOT NULL DEFAULT '',
			budget DOUBLE PRECISION NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			property_type TEXT NOT NULL DEFAULT '',
			pool_id INTEGER,
			assigned_agent_id INTEGER,
			state TEXT NOT NULL DEFAULT 'unassigned',
			assigned_at TIMESTAMP,
			last_contacted_at TIMESTAMP,
			reassignment_count INTEGER NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_tenant_state ON leads (tenant_id, state)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_tenant_agent ON leads (tenant_id, assigned_agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_assigned_at ON leads (state, assigned_at)`,

		`CREATE TABLE IF NOT EXISTS assignment_rules (
			id __PK__,
			tenant_id INTEGER NOT NULL,
			priority INTEGER NOT NULL,
			conditions TEXT NOT NULL,
			action_kind TEXT NOT NULL,
			action_target INTEGER NOT NULL,
			UNIQUE (tenant_id, priority)
		)`,

		`CREATE TABLE IF NOT EXISTS lead_pools (
			id __PK__,
			tenant_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (tenant_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS pool_entries (
			id __PK__,
			pool_id INTEGER NOT NULL,
			lead_id INTEGER NOT NULL UNIQUE,
			enqueued_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pool_entries_pool ON pool_entries (pool_id, id)`,

		`CREATE TABLE IF NOT EXISTS round_robin_state (
			tenant_id INTEGER PRIMARY KEY,
			cursor INTEGER NOT NULL DEFAULT 0,
			credits TEXT NOT NULL DEFAULT '{}',
			last_reset_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS assignment_log (
			id __PK__,
			tenant_id INTEGER NOT NULL,
			lead_id INTEGER NOT NULL,
			prev_owner_kind TEXT NOT NULL,
			prev_owner_id INTEGER NOT NULL,
			new_owner_kind TEXT NOT NULL,
			new_owner_id INTEGER NOT NULL,
			source TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assignment_log_tenant_time ON assignment_log (tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_assignment_log_lead ON assignment_log (lead_id)`,
	}

	out := make([]string, len(stmts))
	for i, stmt := range stmts {
		out[i] = strings.ReplaceAll(stmt, "__PK__", pk)
	}
	return out
}
