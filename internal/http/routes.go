package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	svc "github.com/talentdock/authcore/internal/auth"
	authctl "github.com/talentdock/authcore/internal/http/controllers/auth"
	healthctl "github.com/talentdock/authcore/internal/http/controllers/health"
	"github.com/talentdock/authcore/internal/http/middlewares"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/rate"
)

// RouterDeps junta todo lo que el router necesita cablear.
type RouterDeps struct {
	Login     svc.LoginService
	Accounts  svc.AccountService
	Passwords svc.PasswordService
	Sessions  svc.SessionService
	TwoFactor svc.TwoFactorService

	Issuer  *jwtx.Issuer
	Store   healthctl.Pinger
	Cookies authctl.CookieConfig

	// Limiters por endpoint sensible. nil = sin límite (dev).
	LoginLimiter  rate.Limiter
	ForgotLimiter rate.Limiter
	VerifyLimiter rate.Limiter

	// Orígenes permitidos para CORS. Vacío = sin CORS.
	CORSAllowedOrigins []string
}

// NewRouter arma el router chi con la cadena de middlewares estándar.
func NewRouter(d RouterDeps) http.Handler {
	if d.Cookies.Name == "" {
		d.Cookies = authctl.DefaultCookieConfig()
	}

	login := authctl.NewLoginController(d.Login, d.Cookies)
	register := authctl.NewRegisterController(d.Accounts)
	passwords := authctl.NewPasswordController(d.Passwords)
	sessions := authctl.NewSessionController(d.Sessions, d.Cookies)
	twofactor := authctl.NewTwoFactorController(d.TwoFactor)
	health := healthctl.New(d.Store)

	requireAuth := middlewares.RequireAuth(d.Issuer)

	r := chi.NewRouter()
	r.Use(
		middlewares.WithRequestID(),
		middlewares.WithRecover(),
		middlewares.WithSecurityHeaders(),
		middlewares.WithLogging(),
	)
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.WithCORS(d.CORSAllowedOrigins))
	}

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		// Todo lo que devuelve tokens o códigos es no-cacheable.
		r.Use(middlewares.WithNoStore())

		r.Group(func(r chi.Router) {
			r.Use(middlewares.WithRateLimit(d.LoginLimiter, "login"))
			r.Post("/login", login.Login)
			r.Post("/register", register.Register)
			r.Post("/refresh", sessions.Refresh)
			r.Post("/logout", sessions.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middlewares.WithRateLimit(d.VerifyLimiter, "verify"))
			r.Post("/verify-code", login.VerifyCode)
			r.Post("/verify-email", register.VerifyEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(middlewares.WithRateLimit(d.ForgotLimiter, "forgot"))
			r.Post("/forgot-password", passwords.Forgot)
			r.Post("/reset-password", passwords.Reset)
		})

		// Endpoints autenticados
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout-all", sessions.LogoutAll)
			r.Post("/change-password", passwords.Change)
			r.Post("/2fa/totp/enroll", twofactor.EnrollTOTP)
			r.Post("/2fa/totp/confirm", twofactor.ConfirmTOTP)
			r.Post("/2fa/totp/disable", twofactor.DisableTOTP)
			r.Post("/2fa/email", twofactor.SetEmail)
		})
	})

	return r
}
