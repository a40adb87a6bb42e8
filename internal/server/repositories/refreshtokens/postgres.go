package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/dbx"
	"github.com/dmanankin/authvault/internal/server/models"
)

// PostgresStore implements Store over PostgreSQL. Unlike the read-side
// repositories it holds *sql.DB directly: Rotate opens its own transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store bound to the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new unrevoked token for userID expiring now+validity.
func (s *PostgresStore) Create(ctx context.Context, userID string, validity time.Duration) (*models.RefreshToken, error) {
	return createIn(ctx, s.db, userID, validity)
}

// createIn runs the insert on any DBTX so Rotate can reuse it inside a
// transaction.
func createIn(ctx context.Context, db dbx.DBTX, userID string, validity time.Duration) (*models.RefreshToken, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING issued_at
	`
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: time.Now().Add(validity),
	}
	err = db.QueryRowContext(ctx, query, token.ID, userID, hashToken(value), token.ExpiresAt).
		Scan(&token.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return token, nil
}

// Find returns the token row for the given raw value.
// If not found, it returns common.ErrorNotFound.
func (s *PostgresStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, issued_at, expires_at, is_revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	rt := &models.RefreshToken{}
	err := s.db.QueryRowContext(ctx, query, hashToken(token)).
		Scan(&rt.ID, &rt.UserID, &rt.IssuedAt, &rt.ExpiresAt, &rt.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// Revoke flips is_revoked for the record with the given id. A second revoke
// (or a missing id) affects zero rows and is not an error.
func (s *PostgresStore) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate revokes the active record for token and inserts its replacement in
// a single transaction. The conditional UPDATE with an affected-row check is
// what serializes concurrent rotations: the row flips false→true exactly
// once, so at most one caller proceeds to the insert.
func (s *PostgresStore) Rotate(ctx context.Context, token string, userID string, validity time.Duration) (*models.RefreshToken, error) {
	revokeQuery := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE token_hash = $1 AND is_revoked = FALSE
	`

	var created *models.RefreshToken
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, revokeQuery, hashToken(token))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if affected == 0 {
			return common.ErrTokenReused
		}

		created, err = createIn(ctx, tx, userID, validity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
