package password

import (
	"strings"
	"time"
	"unicode"
)

// Violation identifica una regla de policy incumplida.
type Violation string

const (
	TooShort         Violation = "too_short"
	MissingUpper     Violation = "missing_upper"
	MissingLower     Violation = "missing_lower"
	MissingDigit     Violation = "missing_digit"
	MissingSymbol    Violation = "missing_symbol"
	CommonPassword   Violation = "common_password"
	ContainsEmail    Violation = "contains_email"
	ContainsName     Violation = "contains_name"
	RecentlyUsed     Violation = "recently_used"
)

// Context aporta los datos de la cuenta que el password no debe contener.
type Context struct {
	DisplayName string
	Email       string
}

// Policy valida fuerza de passwords. Puro y determinístico: sin side effects.
type Policy struct {
	MinLength int
	Deny      *Blacklist // nil = sin deny-list
}

// DefaultPolicy es la policy de producción: 8+ caracteres, las cuatro
// clases, deny-list embebida.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, Deny: DefaultBlacklist()}
}

// Validate evalúa todas las reglas de forma independiente y retorna la
// lista completa de violaciones, para que el caller pueda mostrar todas
// las reglas pendientes de una sola vez. Lista vacía = password válido.
func (p Policy) Validate(s string, ctx Context) []Violation {
	var out []Violation

	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if len([]rune(s)) < minLen {
		out = append(out, TooShort)
	}

	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if !hasU {
		out = append(out, MissingUpper)
	}
	if !hasL {
		out = append(out, MissingLower)
	}
	if !hasD {
		out = append(out, MissingDigit)
	}
	if !hasS {
		out = append(out, MissingSymbol)
	}

	if p.Deny.MatchesSubstring(s) {
		out = append(out, CommonPassword)
	}

	lower := strings.ToLower(s)

	// El password no puede contener la parte local del email (si tiene 3+ chars).
	if local := emailLocalPart(ctx.Email); len(local) >= 3 && strings.Contains(lower, local) {
		out = append(out, ContainsEmail)
	}

	// Ni ningún token de 3+ chars del display name.
	for _, tok := range nameTokens(ctx.DisplayName) {
		if strings.Contains(lower, tok) {
			out = append(out, ContainsName)
			break
		}
	}

	return out
}

// DefaultValidity es la ventana de validez de un password sin
// PasswordExpiresAt explícito.
const DefaultValidity = 90 * 24 * time.Hour

// Expired indica si la credencial venció. Cuentas legacy sin timestamps
// no se bloquean retroactivamente.
func Expired(changedAt time.Time, expiresAt *time.Time, now time.Time) bool {
	if expiresAt != nil {
		return now.After(*expiresAt)
	}
	if changedAt.IsZero() {
		return false
	}
	return now.After(changedAt.Add(DefaultValidity))
}

func emailLocalPart(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return ""
}

// nameTokens corta el display name por espacios y guiones y descarta
// tokens de menos de 3 caracteres.
func nameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
