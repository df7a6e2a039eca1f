package auth

// AuthContext es el contexto inmutable de la request de autenticación.
// El caller lo arma en el borde HTTP; los services solo lo leen y lo
// propagan al audit log. Nunca toca headers de transporte.
type AuthContext struct {
	IP            string
	UserAgent     string
	CorrelationID string
}
