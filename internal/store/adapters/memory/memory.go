// Package memory implementa store.Store en memoria.
// Para desarrollo y tests; las semánticas (updates condicionales,
// conflictos de email) replican las del adapter de PostgreSQL.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/store"
)

func init() {
	store.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "memory" }

func (driver) Open(_ context.Context, _ store.Config) (store.Store, error) {
	return New(), nil
}

// Memory es el store en memoria. Seguro para uso concurrente.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*repository.Account // por ID
	byEmail  map[string]string              // email → ID
	tokens   map[string]*repository.RefreshToken
	byHash   map[string]string // hash → token ID
	now      func() time.Time
}

// New crea un store vacío.
func New() *Memory {
	return &Memory{
		accounts: map[string]*repository.Account{},
		byEmail:  map[string]string{},
		tokens:   map[string]*repository.RefreshToken{},
		byHash:   map[string]string{},
		now:      time.Now,
	}
}

// WithClock reemplaza el reloj. Solo para tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Accounts() repository.AccountRepository           { return (*accountRepo)(m) }
func (m *Memory) RefreshTokens() repository.RefreshTokenRepository { return (*tokenRepo)(m) }
func (m *Memory) Ping(context.Context) error                       { return nil }
func (m *Memory) Close() error                                     { return nil }

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// copia defensiva: los callers mutan su copia y persisten vía métodos.
func cloneAccount(a *repository.Account) *repository.Account {
	cp := *a
	cp.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	if a.PasswordExpiresAt != nil {
		t := *a.PasswordExpiresAt
		cp.PasswordExpiresAt = &t
	}
	if a.OneTimeCode != nil {
		c := *a.OneTimeCode
		cp.OneTimeCode = &c
	}
	return &cp
}

func cloneToken(t *repository.RefreshToken) *repository.RefreshToken {
	cp := *t
	if t.RevokedAt != nil {
		x := *t.RevokedAt
		cp.RevokedAt = &x
	}
	if t.ReplacedByHash != nil {
		x := *t.ReplacedByHash
		cp.ReplacedByHash = &x
	}
	return &cp
}

// ─── AccountRepository ───

type accountRepo Memory

func (r *accountRepo) GetByEmail(_ context.Context, email string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAccount(r.accounts[id]), nil
}

func (r *accountRepo) GetByID(_ context.Context, accountID string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *accountRepo) Create(_ context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	email := normEmail(input.Email)
	if email == "" || input.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byEmail[email]; dup {
		return nil, repository.ErrConflict
	}

	now := r.now().UTC()
	a := &repository.Account{
		ID:                uuid.NewString(),
		Email:             email,
		Role:              input.Role,
		DisplayName:       input.DisplayName,
		PasswordHash:      input.PasswordHash,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.PasswordTTL > 0 {
		exp := now.Add(input.PasswordTTL)
		a.PasswordExpiresAt = &exp
	}
	r.accounts[a.ID] = a
	r.byEmail[email] = a.ID
	return cloneAccount(a), nil
}

func (r *accountRepo) UpdatePassword(_ context.Context, accountID string, input repository.UpdatePasswordInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = input.NewHash
	a.PasswordHistory = append([]string(nil), input.History...)
	a.PasswordChangedAt = input.ChangedAt
	a.PasswordExpiresAt = input.ExpiresAt
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *accountRepo) SetEmailVerified(_ context.Context, accountID string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.EmailVerified = verified
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *accountRepo) SetOneTimeCode(_ context.Context, accountID string, code *repository.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	if code != nil {
		c := *code
		a.OneTimeCode = &c
	} else {
		a.OneTimeCode = nil
	}
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *accountRepo) SetTwoFactor(_ context.Context, accountID string, enabled bool, totpSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.TwoFactorEnabled = enabled
	a.TOTPSecret = totpSecret
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *accountRepo) DeleteExpiredCodes(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.accounts {
		if a.OneTimeCode != nil && now.After(a.OneTimeCode.ExpiresAt) {
			a.OneTimeCode = nil
			n++
		}
	}
	return n, nil
}

// ─── RefreshTokenRepository ───

type tokenRepo Memory

func (r *tokenRepo) Create(_ context.Context, input repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	if input.AccountID == "" || input.TokenHash == "" || input.TTL <= 0 {
		return nil, repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	t := &repository.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: input.AccountID,
		TokenHash: input.TokenHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(input.TTL),
	}
	r.tokens[t.ID] = t
	r.byHash[t.TokenHash] = t.ID
	return cloneToken(t), nil
}

func (r *tokenRepo) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneToken(r.tokens[id]), nil
}

func (r *tokenRepo) RevokeIfActive(_ context.Context, tokenID string, replacedByHash *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.RevokedAt != nil {
		return false, nil
	}
	now := r.now().UTC()
	t.RevokedAt = &now
	if replacedByHash != nil {
		h := *replacedByHash
		t.ReplacedByHash = &h
	}
	return true, nil
}

func (r *tokenRepo) RevokeAllByAccount(_ context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	n := 0
	for _, t := range r.tokens {
		if t.AccountID == accountID && t.RevokedAt == nil && now.Before(t.ExpiresAt) {
			ts := now
			t.RevokedAt = &ts
			n++
		}
	}
	return n, nil
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, t := range r.tokens {
		if !now.Before(t.ExpiresAt) {
			delete(r.byHash, t.TokenHash)
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}
