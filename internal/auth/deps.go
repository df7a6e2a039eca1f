package auth

import (
	"time"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/email"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/ledger"
	"github.com/talentdock/authcore/internal/lockout"
	"github.com/talentdock/authcore/internal/security/password"
)

// Deps contiene las dependencias compartidas por los services de auth.
// Audit puede ser nil (se degrada a no-op); Now nil usa time.Now.
type Deps struct {
	Accounts repository.AccountRepository
	Ledger   *ledger.Ledger
	Tracker  lockout.Tracker
	Issuer   *jwtx.Issuer
	Email    email.Sender
	Audit    audit.Logger

	Policy password.Policy
	Hash   password.Params

	// PasswordTTL fija password_expires_at en altas y rotaciones.
	// Cero = DefaultValidity.
	PasswordTTL time.Duration

	// TOTPIssuer es la etiqueta del emisor en el otpauth URL.
	TOTPIssuer string

	Now func() time.Time
}

func (d *Deps) normalize() {
	if d.Hash.Memory == 0 {
		d.Hash = password.Default
	}
	if d.Policy.MinLength == 0 {
		d.Policy = password.DefaultPolicy()
	}
	if d.PasswordTTL <= 0 {
		d.PasswordTTL = password.DefaultValidity
	}
	if d.TOTPIssuer == "" {
		d.TOTPIssuer = "TalentDock"
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}
