// Package auth contiene los controllers HTTP de autenticación. Acá vive
// todo lo de transporte (cookies, headers, status codes); la decisión de
// autenticación es de los services.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	svc "github.com/talentdock/authcore/internal/auth"
	"github.com/talentdock/authcore/internal/http/middlewares"
)

const contentTypeJSON = "application/json; charset=utf-8"

// CookieConfig gobierna la cookie httpOnly del refresh token.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
	Secure bool
	TTL    time.Duration
}

// DefaultCookieConfig limita la cookie a los endpoints que la consumen.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name: "refresh_token",
		Path: "/v1/auth",
		TTL:  7 * 24 * time.Hour,
	}
}

func (c CookieConfig) set(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    raw,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshFromRequest saca el refresh token de la cookie o, si no está,
// del body ya parseado (clientes no-browser).
func (c CookieConfig) refreshFromRequest(r *http.Request, bodyToken string) string {
	if ck, err := r.Cookie(c.Name); err == nil && ck.Value != "" {
		return ck.Value
	}
	return bodyToken
}

// readOptionalJSON parsea el body solo si vino JSON. Los endpoints de
// sesión aceptan requests sin body cuando el token viaja en la cookie.
func readOptionalJSON(r *http.Request, v any) {
	ct := r.Header.Get("Content-Type")
	if r.Body == nil || !strings.Contains(strings.ToLower(ct), "application/json") {
		return
	}
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	defer r.Body.Close()
	_ = json.NewDecoder(r.Body).Decode(v)
}

// authContext arma el AuthContext inmutable que consumen los services.
func authContext(r *http.Request) svc.AuthContext {
	return svc.AuthContext{
		IP:            middlewares.ClientIP(r),
		UserAgent:     r.UserAgent(),
		CorrelationID: middlewares.GetRequestID(r.Context()),
	}
}
