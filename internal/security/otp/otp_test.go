package otp

import (
	"testing"
	"time"

	"github.com/talentdock/authcore/internal/domain/repository"
)

func TestGenerate_SeisDigitos(t *testing.T) {
	now := time.Now().UTC()
	for i := 0; i < 50; i++ {
		plain, code, err := Generate(repository.CodePasswordReset, now)
		if err != nil {
			t.Fatal(err)
		}
		if len(plain) != 6 {
			t.Fatalf("código de %d chars: %q", len(plain), plain)
		}
		for _, r := range plain {
			if r < '0' || r > '9' {
				t.Fatalf("código no numérico: %q", plain)
			}
		}
		if code.Hash == plain {
			t.Fatal("el registro debe guardar el hash, no el código plano")
		}
	}
}

func TestGenerate_TTLPorProposito(t *testing.T) {
	now := time.Now().UTC()
	_, login, _ := Generate(repository.CodeLoginSecondFactor, now)
	_, verif, _ := Generate(repository.CodeEmailVerification, now)
	if got := login.ExpiresAt.Sub(now); got != LoginTTL {
		t.Fatalf("TTL de login %v, esperaba %v", got, LoginTTL)
	}
	if got := verif.ExpiresAt.Sub(now); got != VerificationTTL {
		t.Fatalf("TTL de verificación %v, esperaba %v", got, VerificationTTL)
	}
}

func TestMatches(t *testing.T) {
	now := time.Now().UTC()
	plain, code, err := Generate(repository.CodePasswordReset, now)
	if err != nil {
		t.Fatal(err)
	}

	if !Matches(code, repository.CodePasswordReset, plain, now) {
		t.Fatal("el código correcto no matchea")
	}
	if Matches(code, repository.CodePasswordReset, "000000", now) {
		t.Fatal("un código incorrecto matchea")
	}
	// propósito cruzado: un código de reset no sirve para 2FA
	if Matches(code, repository.CodeLoginSecondFactor, plain, now) {
		t.Fatal("matcheó con propósito distinto")
	}
	// vencido
	if Matches(code, repository.CodePasswordReset, plain, now.Add(ResetTTL+time.Second)) {
		t.Fatal("matcheó vencido")
	}
	// sin código armado
	if Matches(nil, repository.CodePasswordReset, plain, now) {
		t.Fatal("matcheó contra nil")
	}
}
