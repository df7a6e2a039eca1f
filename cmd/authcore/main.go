package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/auth"
	"github.com/talentdock/authcore/internal/config"
	"github.com/talentdock/authcore/internal/email"
	httpx "github.com/talentdock/authcore/internal/http"
	authctl "github.com/talentdock/authcore/internal/http/controllers/auth"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/ledger"
	"github.com/talentdock/authcore/internal/lockout"
	"github.com/talentdock/authcore/internal/metrics"
	"github.com/talentdock/authcore/internal/observability/logger"
	"github.com/talentdock/authcore/internal/rate"
	"github.com/talentdock/authcore/internal/security/password"
	"github.com/talentdock/authcore/internal/store"
	"github.com/talentdock/authcore/migrations"

	// Adapters de storage: se registran vía init().
	_ "github.com/talentdock/authcore/internal/store/adapters/memory"
	_ "github.com/talentdock/authcore/internal/store/adapters/pg"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Servicio de autenticación y sesiones de TalentDock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "ruta del config YAML")

	root.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		keygenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// ─── serve ───────────────────────────────────────────────────────────────

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; las env vars pisan el YAML en config.Load.
			_ = godotenv.Load()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "authcore",
			})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	st, err := store.Open(ctx, store.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 0),
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	log.Info("store abierto", logger.String("driver", cfg.Storage.Driver))

	// Tracker de lockout y limiters comparten backend: redis cuando hay
	// más de una réplica, memoria para dev / single-node.
	limits := lockout.Limits{
		Threshold:  cfg.Lockout.Threshold,
		LockWindow: config.Duration(cfg.Lockout.LockWindow, lockout.LockWindow),
		IdleTTL:    config.Duration(cfg.Lockout.IdleTTL, lockout.IdleTTL),
	}
	var (
		tracker       lockout.Tracker
		loginLimiter  rate.Limiter
		forgotLimiter rate.Limiter
		verifyLimiter rate.Limiter
	)
	switch cfg.Cache.Kind {
	case "redis":
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		prefix := cfg.Cache.Redis.Prefix
		tracker = lockout.NewRedisTracker(client, prefix).WithLimits(limits)
		if cfg.Rate.Enabled {
			loginLimiter = rate.NewRedisLimiter(client, prefix+"rl:login:", cfg.Rate.Login.Limit, config.Duration(cfg.Rate.Login.Window, time.Minute))
			forgotLimiter = rate.NewRedisLimiter(client, prefix+"rl:forgot:", cfg.Rate.Forgot.Limit, config.Duration(cfg.Rate.Forgot.Window, 10*time.Minute))
			verifyLimiter = rate.NewRedisLimiter(client, prefix+"rl:verify:", cfg.Rate.Verify.Limit, config.Duration(cfg.Rate.Verify.Window, time.Minute))
		}
	default:
		tracker = lockout.NewMemoryTracker().WithLimits(limits)
		if cfg.Rate.Enabled {
			loginLimiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, config.Duration(cfg.Rate.Login.Window, time.Minute))
			forgotLimiter = rate.NewMemoryLimiter(cfg.Rate.Forgot.Limit, config.Duration(cfg.Rate.Forgot.Window, 10*time.Minute))
			verifyLimiter = rate.NewMemoryLimiter(cfg.Rate.Verify.Limit, config.Duration(cfg.Rate.Verify.Window, time.Minute))
		}
	}

	key, err := jwtx.LoadOrCreateKey(cfg.JWT.KeyFile)
	if err != nil {
		return fmt.Errorf("jwt key: %w", err)
	}
	if cfg.JWT.KeyFile == "" {
		log.Warn("jwt.key_file vacío: clave efímera, los tokens mueren con el proceso")
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, key, config.Duration(cfg.JWT.AccessTTL, 15*time.Minute))

	sink := audit.NewZapSink()
	refreshTTL := config.Duration(cfg.JWT.RefreshTTL, ledger.DefaultTTL)
	led := ledger.New(ledger.Deps{
		Tokens: st.RefreshTokens(),
		Issuer: issuer,
		TTL:    refreshTTL,
		Audit:  sink,
	})

	var sender email.Sender
	if cfg.SMTP.Host == "" {
		log.Warn("smtp.host vacío: los códigos se escriben al log")
		sender = email.NewLogSender()
	} else {
		s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		s.TLSMode = cfg.SMTP.TLS
		s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = s
	}

	policy := password.DefaultPolicy()
	if n := cfg.Security.PasswordPolicy.MinLength; n > 0 {
		policy.MinLength = n
	}
	if p := cfg.Security.PasswordBlacklistPath; p != "" {
		bl, err := password.LoadBlacklist(p)
		if err != nil {
			return fmt.Errorf("password blacklist: %w", err)
		}
		policy.Deny = bl
	}

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	deps := auth.Deps{
		Accounts:    st.Accounts(),
		Ledger:      led,
		Tracker:     tracker,
		Issuer:      issuer,
		Email:       sender,
		Audit:       sink,
		Policy:      policy,
		PasswordTTL: config.Duration(cfg.Security.PasswordPolicy.PasswordValidity, password.DefaultValidity),
	}

	cookies := authctl.DefaultCookieConfig()
	cookies.Secure = cfg.App.Env == "prod"
	cookies.TTL = refreshTTL

	router := httpx.NewRouter(httpx.RouterDeps{
		Login:         auth.NewLoginService(deps),
		Accounts:      auth.NewAccountService(deps),
		Passwords:     auth.NewPasswordService(deps),
		Sessions:      auth.NewSessionService(deps),
		TwoFactor:     auth.NewTwoFactorService(deps),
		Issuer:        issuer,
		Store:         st,
		Cookies:       cookies,
		LoginLimiter:  loginLimiter,
		ForgotLimiter: forgotLimiter,
		VerifyLimiter: verifyLimiter,

		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := httpx.NewServer(cfg.Server.Addr, router)
	sweeper := store.NewSweeper(st, config.Duration(cfg.Sweep.Interval, time.Hour))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("escuchando", logger.String("addr", cfg.Server.Addr))
		return srv.Start()
	})
	g.Go(func() error {
		if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("apagando")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ─── migrate ─────────────────────────────────────────────────────────────

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica las migraciones embebidas de postgres",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			action := "up"
			if len(args) >= 1 && args[0] != "" {
				action = strings.ToLower(args[0])
			}
			steps := 0
			if len(args) >= 2 {
				if _, err := fmt.Sscanf(args[1], "%d", &steps); err != nil {
					return fmt.Errorf("steps inválido: %q", args[1])
				}
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Storage.DSN == "" {
				return errors.New("migrate requiere storage.dsn")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			var suffix string
			switch action {
			case "up":
				suffix = "_up.sql"
			case "down":
				suffix = "_down.sql"
			default:
				return fmt.Errorf("acción desconocida %q (up | down [steps])", action)
			}

			files, err := listEmbeddedSQL(suffix)
			if err != nil {
				return err
			}
			if action == "down" {
				// Las down corren en orden inverso.
				for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
					files[i], files[j] = files[j], files[i]
				}
			}
			if steps > 0 && steps < len(files) {
				files = files[:steps]
			}
			if len(files) == 0 {
				fmt.Println("nada para aplicar")
				return nil
			}

			for _, f := range files {
				b, err := fs.ReadFile(migrations.PostgresFS, f)
				if err != nil {
					return fmt.Errorf("read %s: %w", f, err)
				}
				start := time.Now()
				if _, err := pool.Exec(ctx, string(b)); err != nil {
					return fmt.Errorf("exec %s: %w", f, err)
				}
				fmt.Printf("OK %s (%s)\n", f, time.Since(start).Truncate(time.Millisecond))
			}
			return nil
		},
	}
}

func listEmbeddedSQL(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrations.PostgresFS, migrations.PostgresDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, migrations.PostgresDir+"/"+e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ─── keygen ──────────────────────────────────────────────────────────────

func keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera una clave ed25519 PEM para firmar tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("falta --out")
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s ya existe", out)
			}
			if _, err := jwtx.LoadOrCreateKey(out); err != nil {
				return err
			}
			fmt.Println("clave escrita en", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "ruta del archivo PEM a crear")
	return cmd
}
