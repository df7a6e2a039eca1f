package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del core de autenticación. Paquete standalone para
// evitar ciclos de import entre services y HTTP.

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Intentos de login por resultado",
	}, []string{"outcome"}) // success | invalid_credentials | locked | needs_2fa | rejected

	Lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Bloqueos por fuerza bruta disparados",
	})

	TokenRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Rotaciones de refresh token exitosas",
	})

	TokenReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detected_total",
		Help: "Presentaciones de un refresh token ya revocado (chain kill)",
	})

	CodesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_codes_sent_total",
		Help: "One-time codes enviados por propósito",
	}, []string{"purpose"})

	SweptRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_swept_records_total",
		Help: "Registros vencidos eliminados por el sweep",
	}, []string{"kind"}) // refresh_token | one_time_code
)

// Register registra las métricas en el registry dado (default si es nil).
// Tolera doble registro para que los tests puedan re-inicializar.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		LoginAttempts, Lockouts, TokenRotations, TokenReuseDetected, CodesSent, SweptRecords,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
