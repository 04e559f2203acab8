package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/model"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			api_key_enc BYTEA,
			api_key_nonce BYTEA,
			trial_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx ON refresh_tokens(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, email string) (*model.User, error) {
	query := `
		INSERT INTO users (email, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, email, api_key_enc, api_key_nonce, trial_count, created_at, updated_at
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.APIKeyEnc,
		&user.APIKeyNonce,
		&user.TrialCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, api_key_enc, api_key_nonce, trial_count, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.APIKeyEnc,
		&user.APIKeyNonce,
		&user.TrialCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT id, email, api_key_enc, api_key_nonce, trial_count, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.APIKeyEnc,
		&user.APIKeyNonce,
		&user.TrialCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) SetUserAPIKey(ctx context.Context, userID int64, keyEnc, keyNonce []byte) error {
	query := `
		UPDATE users
		SET api_key_enc = $2, api_key_nonce = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, keyEnc, keyNonce)
	return err
}

func (db *Postgres) IncrementTrialCount(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET trial_count = trial_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

func (db *Postgres) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

// FindRefreshToken looks up a currently valid token by hash. Expired rows are
// invisible here, which is where the absolute refresh lifetime is enforced.
func (db *Postgres) FindRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > NOW()
	`
	var token model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ReplaceRefreshToken swaps oldHash for newHash in one conditional UPDATE.
// When two requests race on the same token, the row predicate lets exactly
// one of them win; the loser sees ErrNoRows.
func (db *Postgres) ReplaceRefreshToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET token_hash = $2, expires_at = $3, created_at = NOW()
		WHERE token_hash = $1
	`
	tag, err := db.Pool.Exec(ctx, query, oldHash, newHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
	`
	_, err := db.Pool.Exec(ctx, query, tokenHash)
	return err
}

func (db *Postgres) DeleteRefreshTokensByUser(ctx context.Context, userID int64) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
