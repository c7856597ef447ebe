package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chaostheorist/chaos/internal/api"
	"github.com/chaostheorist/chaos/internal/app/catalog"
	"github.com/chaostheorist/chaos/internal/app/console"
	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/health"
	"github.com/chaostheorist/chaos/internal/infra/analysis"
	"github.com/chaostheorist/chaos/internal/infra/httpgateway"
	"github.com/chaostheorist/chaos/internal/infra/llm"
	_ "github.com/chaostheorist/chaos/internal/infra/metrics" // Register Prometheus metrics
	"github.com/chaostheorist/chaos/internal/infra/reporting"
	"github.com/chaostheorist/chaos/internal/infra/seed"
	"github.com/chaostheorist/chaos/internal/infra/sqlite"
	"github.com/chaostheorist/chaos/internal/store"
)

// Version is reported by /api/version. The CLI sets it at startup.
var Version = "dev"

// Daemon is the core chaos runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Logger  *slog.Logger
	DB      *sqlite.DB
	Catalog *catalog.Service // nil in remote mode
	Gateway domain.ResourceGateway
	Runs    api.RunController
	Chat    *llm.Guard
	Store   *store.Store
	Console *console.Console
	Health  *health.Checker
	Server  *api.Server
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, os.Stderr)

	// SQLite holds preferences and proposals in both modes
	db, err := sqlite.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{Config: cfg, Logger: logger, DB: db}

	switch cfg.Backend.Mode {
	case "remote":
		client := httpgateway.New(cfg.Backend.URL)
		d.Gateway = client
		d.Runs = client
		logger.Info("using remote backend", "url", cfg.Backend.URL)
	default:
		if err := d.installSeed(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		analyzer := analysis.New(db, logger.With("component", "analysis"))
		d.Catalog = catalog.NewService(db, analyzer, logger.With("component", "catalog"))
		d.Gateway = d.Catalog
		d.Runs = d.Catalog
	}

	d.Chat = llm.NewGuard(newProvider(cfg.Chat, logger), llm.GuardConfig{
		RequestsPerMinute: cfg.Chat.RequestsPerMinute,
		FailureThreshold:  cfg.Chat.FailureThreshold,
		OpenTimeout:       parseDuration(cfg.Chat.OpenTimeout, 30*time.Second),
	}, logger.With("component", "llm"))

	consoleLogger := logger.With("component", "console")
	d.Store = store.New(store.WithLogger(logger.With("component", "store")))
	d.Console = console.New(d.Store, d.Gateway, d.Chat, console.Config{
		Access:      domain.AccessPolicy(cfg.Console.AllowedSystems),
		CurrentUser: cfg.Console.CurrentUser,
		Instruction: cfg.Chat.Instruction,
	},
		console.WithLogger(consoleLogger),
		console.WithErrorReporter(reporting.NewErrorLog(consoleLogger)),
		console.WithInterventionReporter(reporting.NewInterventionLog(db, cfg.Console.CurrentUser, consoleLogger)),
		console.WithPreferenceStore(db),
	)

	d.Health = health.NewChecker(db, d.Gateway, d.Chat, logger.With("component", "health"))
	d.Health.SetInterval(parseDuration(cfg.Telemetry.HealthInterval, 60*time.Second))

	srv := api.NewServer(d.Gateway, d.Console, logger.With("component", "api"))
	srv.SetVersion(Version)
	srv.SetHealth(d.Health)
	if d.Runs != nil {
		srv.SetRunController(d.Runs)
	}
	if cfg.Telemetry.Metrics {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

func (d *Daemon) installSeed(ctx context.Context) error {
	data := seed.Builtin()
	if d.Config.Backend.SeedFile != "" {
		b, err := os.ReadFile(d.Config.Backend.SeedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		data = b
	} else if !d.Config.Backend.Seed {
		return nil
	}
	installed, err := seed.Install(ctx, d.DB, data, d.Logger.With("component", "seed"))
	if err != nil {
		return fmt.Errorf("install seed: %w", err)
	}
	if installed {
		d.Logger.Info("seed catalog installed")
	}
	return nil
}

// newProvider picks the chat provider. An openai provider without an API
// key falls back to the demo provider.
func newProvider(cfg ChatConfig, logger *slog.Logger) llm.Provider {
	if cfg.Provider == "openai" {
		key := ""
		if cfg.APIKeyEnv != "" {
			key = os.Getenv(cfg.APIKeyEnv)
		}
		if key != "" {
			return llm.NewOpenAI(llm.OpenAIConfig{
				APIKey:  key,
				BaseURL: cfg.BaseURL,
				Model:   cfg.Model,
			}, logger)
		}
		logger.Warn("no chat API key configured, using demo provider", "env", cfg.APIKeyEnv)
	}
	return llm.DemoProvider{Delay: 300 * time.Millisecond}
}

// Boot restores preferences and performs the initial catalog load. A failed
// load is recorded in the store's global error, not returned.
func (d *Daemon) Boot(ctx context.Context) {
	if err := d.Console.RestorePreferences(ctx); err != nil {
		d.Logger.Warn("preferences not restored", "error", err)
	}
	if err := d.Console.LoadSystems(ctx, d.Config.Console.PreferredSystem); err != nil {
		d.Logger.Warn("initial system load failed", "error", err)
	}
}

// Serve boots the console, then runs the HTTP server, the health checker
// and the refresh loop until ctx is done or one of them fails.
func (d *Daemon) Serve(ctx context.Context) error {
	d.Boot(ctx)

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Logger.Info("serving", "addr", "http://"+addr, "metrics", d.Config.Telemetry.Metrics)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return d.Health.Run(gctx) })
	g.Go(func() error { return d.Console.RunRefreshLoop(gctx) })

	return g.Wait()
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
