package middlewares

import (
	"encoding/json"
	"net/http"
	"strings"

	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// RequireAuth valida el Bearer access token y deja las claims en el
// contexto. Sin token válido corta con 401.
func RequireAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "falta el access token")
				return
			}
			claims, err := issuer.ParseAccess(raw)
			if err != nil {
				logger.From(r.Context()).Debug("access token rejected", logger.Err(err))
				unauthorized(w, "access token inválido o vencido")
				return
			}
			ctx := withClaims(r.Context(), claims)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.AccountID(claims.AccountID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             "unauthorized",
		"error_description": desc,
	})
}
