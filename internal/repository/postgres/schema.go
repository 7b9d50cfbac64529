package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaStatements returns the DDL for the library tables, idempotent.
//
// Sibling names are unique case-insensitively through name_key. The unique
// and parent constraints are deferred to commit so a change set may swap
// names or insert children before parents.
func SchemaStatements(tables *TableNames) []string {
	nodes := tables.Nodes
	p := tables.Prefix

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + nodes + ` (
			id TEXT PRIMARY KEY,
			parent_id TEXT,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('folder', 'file')),
			file_type TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0 CHECK (size_bytes >= 0),
			content_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			ancestor_ids TEXT[] NOT NULL DEFAULT '{}',
			course_id TEXT NOT NULL,
			module_id TEXT NOT NULL DEFAULT '',
			trainee_id TEXT NOT NULL DEFAULT '',
			scope_key TEXT NOT NULL,
			can_edit BOOLEAN NOT NULL DEFAULT TRUE,
			video_url TEXT,
			video_title TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT ` + p + `library_nodes_parent_fk FOREIGN KEY (parent_id)
				REFERENCES ` + nodes + `(id) DEFERRABLE INITIALLY DEFERRED,
			CONSTRAINT ` + p + `library_nodes_sibling_unique UNIQUE (parent_id, name_key)
				DEFERRABLE INITIALLY DEFERRED,
			CONSTRAINT ` + p + `library_nodes_video_file CHECK (kind = 'file' OR video_url IS NULL)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + p + `library_nodes_scope_root
			ON ` + nodes + `(scope_key) WHERE parent_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + p + `library_nodes_parent ON ` + nodes + `(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + p + `library_nodes_scope ON ` + nodes + `(scope_key)`,
	}
}

// EnsureSchema creates the library tables and indexes when missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) error {
	for _, stmt := range SchemaStatements(tables) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	logger.Info("schema ready", "nodes_table", tables.Nodes)
	return nil
}
