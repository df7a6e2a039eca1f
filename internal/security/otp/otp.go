// Package otp genera los one-time codes numéricos entregados out-of-band.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/security/token"
)

// TTLs por propósito. Verificación de email tolera más demora que un 2FA.
const (
	LoginTTL        = 5 * time.Minute
	ResetTTL        = 5 * time.Minute
	VerificationTTL = 10 * time.Minute
)

// TTLFor retorna el TTL del propósito dado.
func TTLFor(purpose repository.CodePurpose) time.Duration {
	if purpose == repository.CodeEmailVerification {
		return VerificationTTL
	}
	return LoginTTL
}

// Generate produce un código de 6 dígitos decimales (con ceros a la
// izquierda) y el OneTimeCode listo para persistir. El código plano solo
// viaja por email; el registro guarda su sha256.
func Generate(purpose repository.CodePurpose, now time.Time) (plain string, code *repository.OneTimeCode, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", nil, err
	}
	plain = fmt.Sprintf("%06d", n.Int64())
	code = &repository.OneTimeCode{
		Purpose:   purpose,
		Hash:      token.SHA256Base64URL(plain),
		ExpiresAt: now.Add(TTLFor(purpose)),
	}
	return plain, code, nil
}

// Matches verifica un código presentado contra el registro: propósito
// correcto, no vencido, hash igual en tiempo constante.
func Matches(code *repository.OneTimeCode, purpose repository.CodePurpose, submitted string, now time.Time) bool {
	if code == nil || code.Purpose != purpose || code.Expired(now) {
		return false
	}
	return token.Equal(code.Hash, token.SHA256Base64URL(submitted))
}
