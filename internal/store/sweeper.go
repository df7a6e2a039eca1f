package store

import (
	"context"
	"time"

	"github.com/talentdock/authcore/internal/metrics"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// Sweeper borra registros vencidos en background: refresh tokens pasados
// de expiración y one-time codes vencidos. Los contadores de intentos
// expiran solos por TTL en su backend.
type Sweeper struct {
	Store    Store
	Interval time.Duration
}

// NewSweeper crea un sweeper (default: cada hora).
func NewSweeper(s Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{Store: s, Interval: interval}
}

// Run barre periódicamente hasta que el contexto se cancele.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	log := logger.From(ctx).With(logger.Component("store.sweeper"))
	now := time.Now().UTC()

	if n, err := s.Store.RefreshTokens().DeleteExpired(ctx, now); err != nil {
		log.Warn("token sweep failed", logger.Err(err))
	} else if n > 0 {
		metrics.SweptRecords.WithLabelValues("refresh_token").Add(float64(n))
		log.Info("swept expired refresh tokens", logger.Count(n))
	}

	if n, err := s.Store.Accounts().DeleteExpiredCodes(ctx, now); err != nil {
		log.Warn("code sweep failed", logger.Err(err))
	} else if n > 0 {
		metrics.SweptRecords.WithLabelValues("one_time_code").Add(float64(n))
		log.Info("swept expired one-time codes", logger.Count(n))
	}
}
