package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"slackhooks/core"
	"slackhooks/db/tx"
	"slackhooks/models"
)

type PostgresInstallationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for slack_installations table
var installationsColumns = []string{
	"team_id",
	"team_name",
	"enterprise_id",
	"app_id",
	"bot_token",
	"bot_user_id",
	"user_token",
	"user_id",
	"bot_scopes",
	"user_scopes",
	"installed_at",
	"expires_at",
}

func NewPostgresInstallationsRepository(db *sqlx.DB, schema string) *PostgresInstallationsRepository {
	return &PostgresInstallationsRepository{db: db, schema: schema}
}

// Save upserts the installation on its (team_id, enterprise_id) key in a single statement
func (r *PostgresInstallationsRepository) Save(ctx context.Context, installation *models.Installation) error {
	if installation.TeamID == "" {
		return fmt.Errorf("team ID cannot be empty")
	}
	key := installation.Key()

	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.%s (%s, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::text[], '{}'), COALESCE($10::text[], '{}'), $11, $12, NOW())
		ON CONFLICT ON CONSTRAINT slack_installations_team_enterprise_key DO UPDATE SET
			team_name = EXCLUDED.team_name,
			app_id = EXCLUDED.app_id,
			bot_token = EXCLUDED.bot_token,
			bot_user_id = EXCLUDED.bot_user_id,
			user_token = EXCLUDED.user_token,
			user_id = EXCLUDED.user_id,
			bot_scopes = EXCLUDED.bot_scopes,
			user_scopes = EXCLUDED.user_scopes,
			installed_at = EXCLUDED.installed_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`, r.schema, installationsTable, columnsStr)

	db := tx.GetTransactional(ctx, r.db)
	_, err := db.ExecContext(ctx, query,
		installation.TeamID,
		installation.TeamName,
		key.EnterpriseID,
		installation.AppID,
		installation.BotToken,
		installation.BotUserID,
		installation.UserToken,
		installation.UserID,
		installation.BotScopes,
		installation.UserScopes,
		installation.InstalledAt,
		installation.ExpiresAt,
	)
	if err != nil {
		return core.NewStorageError("save installation", err)
	}
	return nil
}

func (r *PostgresInstallationsRepository) FindByTeam(
	ctx context.Context,
	teamID string,
	enterpriseID *string,
) (mo.Option[*models.Installation], error) {
	if teamID == "" {
		return mo.None[*models.Installation](), fmt.Errorf("team ID cannot be empty")
	}

	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE team_id = $1 AND enterprise_id IS NOT DISTINCT FROM $2`, columnsStr, r.schema, installationsTable)

	db := tx.GetTransactional(ctx, r.db)
	var installation models.Installation
	err := db.GetContext(ctx, &installation, query, teamID, enterpriseParam(enterpriseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.Installation](), nil
		}
		return mo.None[*models.Installation](), core.NewStorageError("find installation", err)
	}
	return mo.Some(&installation), nil
}

func (r *PostgresInstallationsRepository) Delete(ctx context.Context, teamID string, enterpriseID *string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE team_id = $1 AND enterprise_id IS NOT DISTINCT FROM $2`, r.schema, installationsTable)

	db := tx.GetTransactional(ctx, r.db)
	if _, err := db.ExecContext(ctx, query, teamID, enterpriseParam(enterpriseID)); err != nil {
		return core.NewStorageError("delete installation", err)
	}
	return nil
}

// enterpriseParam maps an empty enterprise id to NULL, matching Installation.Key
func enterpriseParam(enterpriseID *string) *string {
	if enterpriseID == nil || *enterpriseID == "" {
		return nil
	}
	return enterpriseID
}
