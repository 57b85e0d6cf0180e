package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopworks/erp-api/internal/auth"
)

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at)
		values ($1, $2, $3, $4, false, $5)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

// Consume is a single conditional update: the `revoked = false` guard
// serializes concurrent callers presenting the same identifier, so
// exactly one observes the row and the rest get ErrNotFound.
func (s *refreshTokenStore) Consume(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		update refresh_tokens
		set revoked = true
		where id = $1 and revoked = false and expires_at > now()
		returning id, user_id, token_hash, expires_at, revoked, created_at
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.Revoked, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where id = $1`, id)
	return err
}

func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where user_id = $1 and revoked = false`, userID)
	return err
}

func (s *refreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
