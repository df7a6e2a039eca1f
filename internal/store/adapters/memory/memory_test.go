package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talentdock/authcore/internal/domain/repository"
)

func TestAccounts_CreateYLookup(t *testing.T) {
	ctx := context.Background()
	m := New()

	acc, err := m.Accounts().Create(ctx, repository.CreateAccountInput{
		Email:        "  Ana@Example.COM ",
		Role:         repository.RoleCandidate,
		DisplayName:  "Ana",
		PasswordHash: "phc",
	})
	if err != nil {
		t.Fatal(err)
	}
	if acc.Email != "ana@example.com" {
		t.Fatalf("el email se normaliza: %q", acc.Email)
	}
	if acc.ID == "" || acc.CreatedAt.IsZero() {
		t.Fatalf("registro incompleto: %+v", acc)
	}

	byEmail, err := m.Accounts().GetByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail.ID != acc.ID {
		t.Fatal("lookup por email no encuentra la cuenta")
	}
	if _, err := m.Accounts().GetByID(ctx, acc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Accounts().GetByEmail(ctx, "nadie@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound, got %v", err)
	}
}

func TestAccounts_ConflictoDeEmail(t *testing.T) {
	ctx := context.Background()
	m := New()

	in := repository.CreateAccountInput{Email: "ana@example.com", Role: repository.RoleCandidate, PasswordHash: "phc"}
	if _, err := m.Accounts().Create(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Accounts().Create(ctx, in); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("esperaba ErrConflict, got %v", err)
	}
}

func TestAccounts_CopiaDefensiva(t *testing.T) {
	ctx := context.Background()
	m := New()

	acc, err := m.Accounts().Create(ctx, repository.CreateAccountInput{
		Email: "ana@example.com", Role: repository.RoleCandidate, PasswordHash: "phc",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Mutar la copia del caller no toca el registro persistido
	acc.PasswordHash = "pisado"
	acc.PasswordHistory = append(acc.PasswordHistory, "x")

	again, err := m.Accounts().GetByID(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.PasswordHash != "phc" || len(again.PasswordHistory) != 0 {
		t.Fatalf("el store devolvió memoria compartida: %+v", again)
	}
}

func TestAccounts_UpdatePasswordAtomico(t *testing.T) {
	ctx := context.Background()
	m := New()

	acc, _ := m.Accounts().Create(ctx, repository.CreateAccountInput{
		Email: "ana@example.com", Role: repository.RoleCandidate, PasswordHash: "viejo",
	})

	changed := time.Now().UTC()
	exp := changed.Add(time.Hour)
	err := m.Accounts().UpdatePassword(ctx, acc.ID, repository.UpdatePasswordInput{
		NewHash:   "nuevo",
		History:   []string{"viejo"},
		ChangedAt: changed,
		ExpiresAt: &exp,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := m.Accounts().GetByID(ctx, acc.ID)
	if got.PasswordHash != "nuevo" || len(got.PasswordHistory) != 1 || got.PasswordHistory[0] != "viejo" {
		t.Fatalf("rotación incompleta: %+v", got)
	}
	if got.PasswordExpiresAt == nil || !got.PasswordExpiresAt.Equal(exp) {
		t.Fatal("falta ExpiresAt")
	}
}

func TestAccounts_OneTimeCode(t *testing.T) {
	ctx := context.Background()
	m := New()

	acc, _ := m.Accounts().Create(ctx, repository.CreateAccountInput{
		Email: "ana@example.com", Role: repository.RoleCandidate, PasswordHash: "phc",
	})

	code := &repository.OneTimeCode{
		Purpose:   repository.CodePasswordReset,
		Hash:      "h",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := m.Accounts().SetOneTimeCode(ctx, acc.ID, code); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Accounts().GetByID(ctx, acc.ID)
	if got.OneTimeCode == nil || got.OneTimeCode.Hash != "h" {
		t.Fatal("código no persistido")
	}
	// nil limpia
	if err := m.Accounts().SetOneTimeCode(ctx, acc.ID, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Accounts().GetByID(ctx, acc.ID)
	if got.OneTimeCode != nil {
		t.Fatal("código no limpiado")
	}
}

func TestAccounts_DeleteExpiredCodes(t *testing.T) {
	ctx := context.Background()
	m := New()

	now := time.Now().UTC()
	a1, _ := m.Accounts().Create(ctx, repository.CreateAccountInput{Email: "a@x.com", Role: repository.RoleCandidate, PasswordHash: "p"})
	a2, _ := m.Accounts().Create(ctx, repository.CreateAccountInput{Email: "b@x.com", Role: repository.RoleCandidate, PasswordHash: "p"})

	_ = m.Accounts().SetOneTimeCode(ctx, a1.ID, &repository.OneTimeCode{Purpose: repository.CodePasswordReset, Hash: "h", ExpiresAt: now.Add(-time.Minute)})
	_ = m.Accounts().SetOneTimeCode(ctx, a2.ID, &repository.OneTimeCode{Purpose: repository.CodePasswordReset, Hash: "h", ExpiresAt: now.Add(time.Minute)})

	n, err := m.Accounts().DeleteExpiredCodes(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("limpió %d, esperaba 1", n)
	}
	got, _ := m.Accounts().GetByID(ctx, a2.ID)
	if got.OneTimeCode == nil {
		t.Fatal("el código vigente no debía tocarse")
	}
}

func TestTokens_RevokeIfActiveCondicional(t *testing.T) {
	ctx := context.Background()
	m := New()

	tok, err := m.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		AccountID: "acc-1", TokenHash: "h1", TTL: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}

	repl := "h2"
	won, err := m.RefreshTokens().RevokeIfActive(ctx, tok.ID, &repl)
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("la primera revocación debe ganar")
	}

	// La segunda pierde sin error: ya estaba revocado
	won, err = m.RefreshTokens().RevokeIfActive(ctx, tok.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("la segunda revocación no puede ganar")
	}

	got, _ := m.RefreshTokens().GetByHash(ctx, "h1")
	if got.RevokedAt == nil || got.ReplacedByHash == nil || *got.ReplacedByHash != "h2" {
		t.Fatalf("registro final: %+v", got)
	}
}

func TestTokens_RevokeAllByAccount(t *testing.T) {
	ctx := context.Background()
	m := New()

	for i, h := range []string{"h1", "h2", "h3"} {
		acc := "acc-1"
		if i == 2 {
			acc = "acc-2"
		}
		if _, err := m.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{AccountID: acc, TokenHash: h, TTL: time.Hour}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := m.RefreshTokens().RevokeAllByAccount(ctx, "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("revocó %d, esperaba 2", n)
	}
	other, _ := m.RefreshTokens().GetByHash(ctx, "h3")
	if other.RevokedAt != nil {
		t.Fatal("la otra cuenta no se toca")
	}
}

func TestTokens_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	m := New()

	if _, err := m.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{AccountID: "acc-1", TokenHash: "h1", TTL: time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{AccountID: "acc-1", TokenHash: "h2", TTL: time.Hour}); err != nil {
		t.Fatal(err)
	}

	n, err := m.RefreshTokens().DeleteExpired(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("borró %d, esperaba 1", n)
	}
	if _, err := m.RefreshTokens().GetByHash(ctx, "h1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatal("el vencido debía desaparecer")
	}
	if _, err := m.RefreshTokens().GetByHash(ctx, "h2"); err != nil {
		t.Fatal("el vigente debía quedar")
	}
}
