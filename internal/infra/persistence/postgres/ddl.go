package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaDDL declares the relational shape of the engine for shared
// deployments: five entity tables, cascade from request to its children, and
// the query indexes the list and audit operations rely on. Audit rows carry
// no foreign key so history survives deletion of the entity it describes.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS resource_requests (
	id TEXT PRIMARY KEY,
	number TEXT NOT NULL,
	incident_id TEXT NOT NULL,
	title TEXT NOT NULL,
	section TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	justification TEXT NOT NULL DEFAULT '',
	delivery_location TEXT NOT NULL DEFAULT '',
	comms TEXT NOT NULL DEFAULT '',
	links JSONB NOT NULL DEFAULT '[]',
	needed_by TIMESTAMPTZ,
	training BOOLEAN NOT NULL DEFAULT FALSE,
	version BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_status ON resource_requests (status);

CREATE INDEX IF NOT EXISTS idx_requests_priority ON resource_requests (priority);

CREATE INDEX IF NOT EXISTS idx_requests_needed_by ON resource_requests (needed_by);

CREATE TABLE IF NOT EXISTS request_items (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES resource_requests(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	catalog_ref TEXT,
	description TEXT NOT NULL DEFAULT '',
	quantity NUMERIC NOT NULL CHECK (quantity > 0),
	unit TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_request ON request_items (request_id);

CREATE TABLE IF NOT EXISTS request_approvals (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES resource_requests(id) ON DELETE CASCADE,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	note TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_approvals_request ON request_approvals (request_id);

CREATE TABLE IF NOT EXISTS fulfillments (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES resource_requests(id) ON DELETE CASCADE,
	item_id TEXT REFERENCES request_items(id) ON DELETE SET NULL,
	kind TEXT NOT NULL,
	supplier_ref TEXT,
	assigned_ref TEXT,
	eta TIMESTAMPTZ,
	status TEXT NOT NULL,
	note TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fulfillments_request ON fulfillments (request_id);

CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	seq BIGINT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	request_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	field TEXT NOT NULL,
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_records (entity, entity_id);
`

// splitStatements breaks the schema DDL into single statements so each can
// be executed and attributed on its own.
func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func applySchemaDDL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
