// Package jwt firma y verifica los tokens del servicio con EdDSA.
//
// Dos clases de token salen de acá:
//   - access tokens de vida corta con claims de identidad (sub, email,
//     role, name)
//   - refresh tokens: también firmados (embeben el account id), pero lo
//     que autoriza un refresh es el registro del ledger, no la firma.
//     La firma solo corta temprano tokens forjados.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const refreshUse = "refresh"

var (
	ErrInvalidToken = errors.New("jwt: invalid token")
	ErrNotRefresh   = errors.New("jwt: not a refresh token")
)

// Issuer firma tokens con la clave activa.
type Issuer struct {
	Iss       string
	AccessTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer crea un issuer con la clave dada.
func NewIssuer(iss string, priv ed25519.PrivateKey, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		kid:       keyID(pub),
		priv:      priv,
		pub:       pub,
	}
}

// AccessClaims son los claims de identidad del access token.
type AccessClaims struct {
	AccountID   string
	Email       string
	Role        string
	DisplayName string
}

// SignAccess emite un access token. Retorna el token y su expiración.
func (i *Issuer) SignAccess(c AccessClaims, now time.Time) (string, time.Time, error) {
	exp := now.Add(i.AccessTTL)
	claims := jwtv5.MapClaims{
		"iss":   i.Iss,
		"sub":   c.AccountID,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   exp.Unix(),
		"email": c.Email,
		"role":  c.Role,
		"name":  c.DisplayName,
	}
	signed, err := i.sign(claims)
	return signed, exp, err
}

// SignRefresh emite el refresh token crudo. jti único por registro.
func (i *Issuer) SignRefresh(accountID, jti string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       accountID,
		"jti":       jti,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"token_use": refreshUse,
	}
	return i.sign(claims)
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.priv)
}

// Keyfunc elige la pubkey para verificación.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("%w: unexpected alg %v", ErrInvalidToken, t.Header["alg"])
		}
		return i.pub, nil
	}
}

// ParseRefresh verifica firma e integridad de un refresh token crudo y
// retorna el account id embebido. No consulta el ledger: un token que
// pasa esta verificación todavía puede estar revocado.
func (i *Issuer) ParseRefresh(raw string) (accountID string, err error) {
	tk, err := jwtv5.Parse(raw, i.Keyfunc())
	if err != nil || !tk.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if use, _ := claims["token_use"].(string); use != refreshUse {
		return "", ErrNotRefresh
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// ParseAccess verifica un access token y retorna sus claims de identidad.
func (i *Issuer) ParseAccess(raw string) (*AccessClaims, error) {
	tk, err := jwtv5.Parse(raw, i.Keyfunc())
	if err != nil || !tk.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if use, _ := claims["token_use"].(string); use == refreshUse {
		return nil, ErrInvalidToken
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, ErrInvalidToken
	}
	out := &AccessClaims{AccountID: sub}
	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["role"].(string)
	out.DisplayName, _ = claims["name"].(string)
	return out, nil
}
