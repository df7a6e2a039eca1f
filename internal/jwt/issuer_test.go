package jwt

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	key, err := LoadOrCreateKey("")
	if err != nil {
		t.Fatal(err)
	}
	return NewIssuer("authcore-test", key, time.Minute)
}

func TestSignAccess_ParseRoundTrip(t *testing.T) {
	i := newTestIssuer(t)
	now := time.Now()

	raw, exp, err := i.SignAccess(AccessClaims{
		AccountID:   "acc-1",
		Email:       "ana@example.com",
		Role:        "candidate",
		DisplayName: "Ana",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if got := exp.Sub(now); got != time.Minute {
		t.Fatalf("exp a %v, esperaba 1m", got)
	}

	claims, err := i.ParseAccess(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.AccountID != "acc-1" || claims.Email != "ana@example.com" || claims.Role != "candidate" || claims.DisplayName != "Ana" {
		t.Fatalf("claims: %+v", claims)
	}
}

func TestParseAccess_RechazaRefresh(t *testing.T) {
	i := newTestIssuer(t)
	raw, err := i.SignRefresh("acc-1", "jti-1", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := i.ParseAccess(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("un refresh no sirve como access: %v", err)
	}
}

func TestParseRefresh_RechazaAccess(t *testing.T) {
	i := newTestIssuer(t)
	raw, _, err := i.SignAccess(AccessClaims{AccountID: "acc-1"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := i.ParseRefresh(raw); !errors.Is(err, ErrNotRefresh) {
		t.Fatalf("un access no sirve como refresh: %v", err)
	}
}

func TestParse_RechazaOtraClave(t *testing.T) {
	a := newTestIssuer(t)
	b := newTestIssuer(t)

	raw, _, err := a.SignAccess(AccessClaims{AccountID: "acc-1"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ParseAccess(raw); err == nil {
		t.Fatal("una firma ajena no puede verificar")
	}
}

func TestParse_RechazaVencido(t *testing.T) {
	i := newTestIssuer(t)
	raw, _, err := i.SignAccess(AccessClaims{AccountID: "acc-1"}, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := i.ParseAccess(raw); err == nil {
		t.Fatal("token vencido aceptado")
	}
}

func TestLoadOrCreateKey_Persistencia(t *testing.T) {
	path := t.TempDir() + "/signing.pem"

	k1, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if !k1.Equal(k2) {
		t.Fatal("la segunda carga debe devolver la misma clave")
	}
}
