package middlewares

import (
	"context"

	jwtx "github.com/talentdock/authcore/internal/jwt"
)

type ctxKey string

const (
	// ctxClaimsKey guarda las claims del access token validado
	ctxClaimsKey ctxKey = "claims"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// withClaims inyecta las claims en el contexto (interno, RequireAuth).
func withClaims(ctx context.Context, claims *jwtx.AccessClaims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetClaims obtiene las claims del contexto.
// Retorna nil si el token no fue validado (middleware no aplicado).
func GetClaims(ctx context.Context) *jwtx.AccessClaims {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if c, ok := v.(*jwtx.AccessClaims); ok {
			return c
		}
	}
	return nil
}

// GetAccountID obtiene el account ID del token validado.
// Retorna cadena vacía si no hay claims.
func GetAccountID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.AccountID
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
