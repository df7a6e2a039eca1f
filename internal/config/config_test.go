package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  app_env: dev\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" || cfg.Cache.Kind != "memory" {
		t.Fatalf("drivers: %q %q", cfg.Storage.Driver, cfg.Cache.Kind)
	}
	if cfg.JWT.AccessTTL != "15m" || cfg.JWT.RefreshTTL != "168h" {
		t.Fatalf("jwt ttls: %q %q", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if cfg.Lockout.Threshold != 5 || cfg.Lockout.LockWindow != "10m" {
		t.Fatalf("lockout: %+v", cfg.Lockout)
	}
	if cfg.Security.PasswordPolicy.MinLength != 8 {
		t.Fatalf("min_length %d", cfg.Security.PasswordPolicy.MinLength)
	}
	if cfg.App.LogLevel != "info" {
		t.Fatalf("log_level %q", cfg.App.LogLevel)
	}
}

func TestLoad_EnvPisaYAML(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("APP_ENV", "PROD")
	cfg, err := Load(writeConfig(t, "server:\n  addr: \":8080\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr %q, la env var debe pisar el YAML", cfg.Server.Addr)
	}
	if cfg.App.Env != "prod" {
		t.Fatalf("env %q, se normaliza a minúsculas", cfg.App.Env)
	}
}

func TestLoad_DuracionInvalida(t *testing.T) {
	_, err := Load(writeConfig(t, "jwt:\n  access_ttl: \"quince minutos\"\n"))
	if err == nil {
		t.Fatal("una duración inválida debe fallar en Load")
	}
}

func TestLoad_DriverDesconocido(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: oracle\n"))
	if err == nil {
		t.Fatal("driver desconocido debe fallar")
	}
}

func TestLoad_PostgresExigeDSN(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("postgres sin dsn debe fallar")
	}
}

func TestLoad_RedisExigeAddr(t *testing.T) {
	_, err := Load(writeConfig(t, "cache:\n  kind: redis\n"))
	if err == nil {
		t.Fatal("redis sin addr debe fallar")
	}
}

func TestLoad_BlacklistPathRelativo(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deny.txt"), []byte("hola\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("security:\n  password_blacklist_path: deny.txt\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Security.PasswordBlacklistPath != filepath.Join(dir, "deny.txt") {
		t.Fatalf("path %q, debe resolverse relativo al YAML", cfg.Security.PasswordBlacklistPath)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("90m", time.Minute); got != 90*time.Minute {
		t.Fatalf("got %v", got)
	}
	if got := Duration("basura", time.Minute); got != time.Minute {
		t.Fatalf("fallback: got %v", got)
	}
	if got := Duration("", time.Hour); got != time.Hour {
		t.Fatalf("vacío: got %v", got)
	}
}
