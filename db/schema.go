package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"slackhooks/db/tx"
)

const (
	installationsTable = "slack_installations"
	oauthStatesTable   = "slack_oauth_states"
)

// schemaStatements need PostgreSQL 15+ for UNIQUE NULLS NOT DISTINCT
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS %[1]s`,
	`CREATE TABLE IF NOT EXISTS %[1]s.slack_installations (
		team_id       TEXT        NOT NULL,
		team_name     TEXT        NOT NULL DEFAULT '',
		enterprise_id TEXT,
		app_id        TEXT        NOT NULL DEFAULT '',
		bot_token     TEXT,
		bot_user_id   TEXT,
		user_token    TEXT,
		user_id       TEXT,
		bot_scopes    TEXT[]      NOT NULL DEFAULT '{}',
		user_scopes   TEXT[]      NOT NULL DEFAULT '{}',
		installed_at  TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT slack_installations_team_enterprise_key UNIQUE NULLS NOT DISTINCT (team_id, enterprise_id)
	)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.slack_oauth_states (
		token        TEXT        PRIMARY KEY,
		redirect_uri TEXT,
		created_at   TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS slack_oauth_states_expires_at_idx ON %[1]s.slack_oauth_states (expires_at)`,
}

// EnsureSchema creates the installation and OAuth state tables when missing
func EnsureSchema(ctx context.Context, db *sqlx.DB, schema string) error {
	return tx.Run(ctx, db, func(ctx context.Context) error {
		q := tx.GetTransactional(ctx, db)
		for _, stmt := range schemaStatements {
			if _, err := q.ExecContext(ctx, fmt.Sprintf(stmt, schema)); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
