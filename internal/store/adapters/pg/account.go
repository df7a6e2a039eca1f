package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentdock/authcore/internal/domain/repository"
)

type accountRepo struct{ pool *pgxpool.Pool }

const accountCols = `
	id, email, role, display_name,
	password_hash, password_changed_at, password_expires_at, password_history,
	two_factor_enabled, totp_secret, email_verified,
	code_purpose, code_hash, code_expires_at,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*repository.Account, error) {
	var (
		a           repository.Account
		role        string
		historyJSON []byte
		codePurpose *string
		codeHash    *string
		codeExpires *time.Time
	)
	err := row.Scan(
		&a.ID, &a.Email, &role, &a.DisplayName,
		&a.PasswordHash, &a.PasswordChangedAt, &a.PasswordExpiresAt, &historyJSON,
		&a.TwoFactorEnabled, &a.TOTPSecret, &a.EmailVerified,
		&codePurpose, &codeHash, &codeExpires,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	a.Role = repository.Role(role)
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &a.PasswordHistory); err != nil {
			return nil, fmt.Errorf("pg: decode password history: %w", err)
		}
	}
	if codePurpose != nil && codeHash != nil && codeExpires != nil {
		a.OneTimeCode = &repository.OneTimeCode{
			Purpose:   repository.CodePurpose(*codePurpose),
			Hash:      *codeHash,
			ExpiresAt: *codeExpires,
		}
	}
	return &a, nil
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanAccount(row)
}

func (r *accountRepo) GetByID(ctx context.Context, accountID string) (*repository.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1`, accountID)
	return scanAccount(row)
}

func (r *accountRepo) Create(ctx context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}

	var expiresAt *time.Time
	if input.PasswordTTL > 0 {
		t := time.Now().UTC().Add(input.PasswordTTL)
		expiresAt = &t
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO account (email, role, display_name, password_hash, password_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountCols,
		email, string(input.Role), input.DisplayName, input.PasswordHash, expiresAt,
	)
	a, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return a, nil
}

func (r *accountRepo) UpdatePassword(ctx context.Context, accountID string, input repository.UpdatePasswordInput) error {
	historyJSON, err := json.Marshal(input.History)
	if err != nil {
		return fmt.Errorf("pg: encode password history: %w", err)
	}
	// Hash vivo + historial + timestamps en una sola escritura: ante una
	// falla parcial no puede quedar el hash nuevo sin su historial.
	tag, err := r.pool.Exec(ctx, `
		UPDATE account
		SET password_hash = $2, password_history = $3,
		    password_changed_at = $4, password_expires_at = $5,
		    updated_at = now()
		WHERE id = $1`,
		accountID, input.NewHash, historyJSON, input.ChangedAt, input.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepo) SetEmailVerified(ctx context.Context, accountID string, verified bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE account SET email_verified = $2, updated_at = now() WHERE id = $1`,
		accountID, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepo) SetOneTimeCode(ctx context.Context, accountID string, code *repository.OneTimeCode) error {
	var (
		purpose *string
		hash    *string
		expires *time.Time
	)
	if code != nil {
		p := string(code.Purpose)
		purpose, hash, expires = &p, &code.Hash, &code.ExpiresAt
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE account
		SET code_purpose = $2, code_hash = $3, code_expires_at = $4, updated_at = now()
		WHERE id = $1`,
		accountID, purpose, hash, expires)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepo) SetTwoFactor(ctx context.Context, accountID string, enabled bool, totpSecret string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE account SET two_factor_enabled = $2, totp_secret = $3, updated_at = now() WHERE id = $1`,
		accountID, enabled, totpSecret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepo) DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account
		SET code_purpose = NULL, code_hash = NULL, code_expires_at = NULL
		WHERE code_expires_at IS NOT NULL AND code_expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
