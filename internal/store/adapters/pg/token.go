package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentdock/authcore/internal/domain/repository"
)

type tokenRepo struct{ pool *pgxpool.Pool }

const tokenCols = `id, account_id, token_hash, issued_at, expires_at, revoked_at, replaced_by_hash`

func scanToken(row pgx.Row) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.RevokedAt, &t.ReplacedByHash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	if input.AccountID == "" || input.TokenHash == "" || input.TTL <= 0 {
		return nil, repository.ErrInvalidInput
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO refresh_token (account_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+tokenCols,
		input.AccountID, input.TokenHash, time.Now().UTC().Add(input.TTL),
	)
	return scanToken(row)
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tokenCols+` FROM refresh_token WHERE token_hash = $1`, tokenHash)
	return scanToken(row)
}

func (r *tokenRepo) RevokeIfActive(ctx context.Context, tokenID string, replacedByHash *string) (bool, error) {
	// Update condicional: bajo dos rotaciones concurrentes del mismo
	// token, exactamente una ve RowsAffected=1.
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_token
		SET revoked_at = now(), replaced_by_hash = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		tokenID, replacedByHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *tokenRepo) RevokeAllByAccount(ctx context.Context, accountID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_token
		SET revoked_at = now()
		WHERE account_id = $1 AND revoked_at IS NULL AND expires_at > now()`,
		accountID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_token WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
