// Package store define el contrato de persistencia y el factory de
// adapters. Las implementaciones viven en internal/store/adapters/.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talentdock/authcore/internal/domain/repository"
)

// Store agrupa los repositorios de dominio sobre un mismo backend.
type Store interface {
	Accounts() repository.AccountRepository
	RefreshTokens() repository.RefreshTokenRepository

	Ping(ctx context.Context) error
	Close() error
}

// Config configura la conexión al backend.
type Config struct {
	Driver          string // "postgres" | "memory"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Driver abre Stores de un backend concreto. Los adapters se registran
// vía init(), el main los importa con blank import.
type Driver interface {
	Name() string
	Open(ctx context.Context, cfg Config) (Store, error)
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register registra un driver. Panic en doble registro: es un bug de wiring.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[d.Name()]; dup {
		panic(fmt.Sprintf("store: driver %q registrado dos veces", d.Name()))
	}
	drivers[d.Name()] = d
}

// Open abre un Store con el driver configurado.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driversMu.RLock()
	d, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: driver %q desconocido (disponibles: %v)", cfg.Driver, names())
	}
	return d.Open(ctx, cfg)
}

func names() []string {
	out := make([]string, 0, len(drivers))
	for n := range drivers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
