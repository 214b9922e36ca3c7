package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"slackhooks/core"
	"slackhooks/db/tx"
	"slackhooks/models"
)

type PostgresOAuthStatesRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for slack_oauth_states table
var oauthStatesColumns = []string{
	"token",
	"redirect_uri",
	"created_at",
	"expires_at",
}

func NewPostgresOAuthStatesRepository(db *sqlx.DB, schema string) *PostgresOAuthStatesRepository {
	return &PostgresOAuthStatesRepository{db: db, schema: schema}
}

func (r *PostgresOAuthStatesRepository) Save(ctx context.Context, state *models.OAuthState) error {
	columnsStr := strings.Join(oauthStatesColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.%s (%s)
		VALUES ($1, $2, $3, $4)`, r.schema, oauthStatesTable, columnsStr)

	db := tx.GetTransactional(ctx, r.db)
	if _, err := db.ExecContext(ctx, query, state.Token, state.RedirectURI, state.CreatedAt, state.ExpiresAt); err != nil {
		return core.NewStorageError("save oauth state", err)
	}
	return nil
}

func (r *PostgresOAuthStatesRepository) Find(ctx context.Context, token string) (mo.Option[*models.OAuthState], error) {
	columnsStr := strings.Join(oauthStatesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.%s
		WHERE token = $1`, columnsStr, r.schema, oauthStatesTable)

	db := tx.GetTransactional(ctx, r.db)
	var state models.OAuthState
	if err := db.GetContext(ctx, &state, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.OAuthState](), nil
		}
		return mo.None[*models.OAuthState](), core.NewStorageError("find oauth state", err)
	}
	return mo.Some(&state), nil
}

func (r *PostgresOAuthStatesRepository) Delete(ctx context.Context, token string) error {
	query := fmt.Sprintf(`DELETE FROM %s.%s WHERE token = $1`, r.schema, oauthStatesTable)

	db := tx.GetTransactional(ctx, r.db)
	if _, err := db.ExecContext(ctx, query, token); err != nil {
		return core.NewStorageError("delete oauth state", err)
	}
	return nil
}

// VerifyAndConsume deletes the row and returns it in one statement, so only one
// concurrent caller can ever observe a given token.
func (r *PostgresOAuthStatesRepository) VerifyAndConsume(
	ctx context.Context,
	token string,
	now time.Time,
) (mo.Option[*models.OAuthState], error) {
	returningStr := strings.Join(oauthStatesColumns, ", ")
	query := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE token = $1
		RETURNING %s`, r.schema, oauthStatesTable, returningStr)

	db := tx.GetTransactional(ctx, r.db)
	var state models.OAuthState
	if err := db.QueryRowxContext(ctx, query, token).StructScan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.OAuthState](), nil
		}
		return mo.None[*models.OAuthState](), core.NewStorageError("consume oauth state", err)
	}

	if !state.IsValid(token, now) {
		return mo.None[*models.OAuthState](), nil
	}
	return mo.Some(&state), nil
}

func (r *PostgresOAuthStatesRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s.%s WHERE expires_at <= $1`, r.schema, oauthStatesTable)

	db := tx.GetTransactional(ctx, r.db)
	result, err := db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, core.NewStorageError("cleanup oauth states", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rowsAffected, nil
}
