package postgres

import (
	"context"
	"fmt"

	"github.com/bimatlas/bimatlas/internal/types"
)

// schemaStatements create the relational side of the store. Every statement
// is idempotent so EnsureSchema can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS branches (
		id         BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (project_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS revisions (
		id              BIGSERIAL PRIMARY KEY,
		branch_id       BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
		label           TEXT NOT NULL DEFAULT '',
		source_filename TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS ifc_products (
		id             BIGSERIAL PRIMARY KEY,
		branch_id      BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
		global_id      TEXT NOT NULL,
		ifc_class      TEXT NOT NULL,
		name           TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		object_type    TEXT NOT NULL DEFAULT '',
		tag            TEXT NOT NULL DEFAULT '',
		contained_in   TEXT NOT NULL DEFAULT '',
		vertices       BYTEA NOT NULL DEFAULT ''::bytea,
		normals        BYTEA NOT NULL DEFAULT ''::bytea,
		faces          BYTEA NOT NULL DEFAULT ''::bytea,
		matrix         BYTEA NOT NULL DEFAULT ''::bytea,
		content_hash   TEXT NOT NULL,
		valid_from_rev BIGINT NOT NULL,
		valid_to_rev   BIGINT,
		UNIQUE (branch_id, global_id, valid_from_rev)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_revisions_branch
		ON revisions (branch_id, id)`,

	// Open rows by identity; this is the hot path of the revision writer.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_open
		ON ifc_products (branch_id, global_id)
		WHERE valid_to_rev IS NULL`,

	`CREATE INDEX IF NOT EXISTS idx_products_class
		ON ifc_products (branch_id, ifc_class, valid_to_rev)`,

	`CREATE INDEX IF NOT EXISTS idx_products_container
		ON ifc_products (branch_id, contained_in)
		WHERE valid_to_rev IS NULL`,

	`CREATE INDEX IF NOT EXISTS idx_products_window
		ON ifc_products (branch_id, valid_from_rev, valid_to_rev)`,
}

// EnsureSchema creates tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.execContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", types.ErrStore, err)
		}
	}
	return nil
}
