package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
		// debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		KeyFile    string `yaml:"key_file"` // PEM ed25519; vacío => clave efímera (sólo dev)
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Lockout struct {
		Threshold  int    `yaml:"threshold"`
		LockWindow string `yaml:"lock_window"`
		IdleTTL    string `yaml:"idle_ttl"`
	} `yaml:"lockout"`

	Rate struct {
		Enabled bool `yaml:"enabled"`

		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`

		Forgot struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"forgot"`

		Verify struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"verify"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Security struct {
		PasswordPolicy struct {
			MinLength        int    `yaml:"min_length"`
			PasswordValidity string `yaml:"password_validity"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	Sweep struct {
		Interval string `yaml:"interval"`
	} `yaml:"sweep"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = 5
	}
	if c.Lockout.LockWindow == "" {
		c.Lockout.LockWindow = "10m"
	}
	if c.Lockout.IdleTTL == "" {
		c.Lockout.IdleTTL = "1h"
	}
	// Endpoint-specific rate limit defaults
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == "" {
		c.Rate.Forgot.Window = "10m"
	}
	if c.Rate.Verify.Limit == 0 {
		c.Rate.Verify.Limit = 10
	}
	if c.Rate.Verify.Window == "" {
		c.Rate.Verify.Window = "1m"
	}
	// Password policy defaults
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.Security.PasswordPolicy.PasswordValidity == "" {
		c.Security.PasswordPolicy.PasswordValidity = "2160h" // 90d
	}
	// SMTP defaults
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "1h"
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}

	// Normalizar ruta de blacklist (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" {
		if !filepath.IsAbs(p) {
			base := filepath.Dir(path)
			c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(base, p))
		}
	}

	return &c, nil
}

func (c *Config) validate() error {
	for name, s := range map[string]string{
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"jwt.refresh_ttl":                    c.JWT.RefreshTTL,
		"lockout.lock_window":                c.Lockout.LockWindow,
		"lockout.idle_ttl":                   c.Lockout.IdleTTL,
		"rate.login.window":                  c.Rate.Login.Window,
		"rate.forgot.window":                 c.Rate.Forgot.Window,
		"rate.verify.window":                 c.Rate.Verify.Window,
		"security.password_policy.password_validity": c.Security.PasswordPolicy.PasswordValidity,
		"sweep.interval":                     c.Sweep.Interval,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: storage.driver desconocido: %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind desconocido: %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.kind=redis requiere cache.redis.addr")
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.driver=postgres requiere storage.dsn")
	}
	return nil
}

// Duration devuelve la duración ya validada por Load. El fallback cubre
// el caso de un Config construido a mano en tests.
func Duration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_KEY_FILE"); ok {
		c.JWT.KeyFile = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// LOCKOUT
	if v, ok := getEnvInt("LOCKOUT_THRESHOLD"); ok {
		c.Lockout.Threshold = v
	}
	if v, ok := getEnvStr("LOCKOUT_LOCK_WINDOW"); ok {
		c.Lockout.LockWindow = v
	}
	if v, ok := getEnvStr("LOCKOUT_IDLE_TTL"); ok {
		c.Lockout.IdleTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = v
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// SECURITY
	if v, ok := getEnvInt("PASSWORD_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvStr("PASSWORD_VALIDITY"); ok {
		c.Security.PasswordPolicy.PasswordValidity = v
	}
	if v, ok := getEnvStr("PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}

	// SWEEP
	if v, ok := getEnvStr("SWEEP_INTERVAL"); ok {
		c.Sweep.Interval = v
	}
}
