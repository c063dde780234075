package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/infra/buildinfo"
	"github.com/yndnr/stockgate/internal/infra/confloader"
	"github.com/yndnr/stockgate/internal/infra/shutdown"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
	"github.com/yndnr/stockgate/internal/storage"
	"github.com/yndnr/stockgate/internal/storage/memory"
	"github.com/yndnr/stockgate/internal/storage/postgres"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
	"github.com/yndnr/stockgate/internal/telemetry/metric"
	"github.com/yndnr/stockgate/internal/telemetry/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", "", "Path to a .env file applied before the environment")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	info := buildinfo.Get()
	if *showVersion {
		fmt.Printf("stockgate-server %s (commit: %s, built: %s, %s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return nil
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(config.ToLoggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting stockgate-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	ctx := context.Background()
	sh := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	tp, err := tracer.New(ctx, config.ToTracerConfig(cfg, info.Version))
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	sh.OnShutdown("tracer", tp.Shutdown)

	storageCfg, err := config.ToStorageConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	engine, err := storage.Open(ctx, storageCfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	sh.OnShutdown("storage", func(context.Context) error { return engine.Close() })

	var (
		registry *metric.Registry
		recorder service.Recorder
	)
	if cfg.Telemetry.Metrics.Enabled {
		registry = metric.NewRegistry()
		registry.MustRegister(metric.NewStatusCollector(engine, string(engine.Backend()), metric.BuildInfo{
			Version:   info.Version,
			Commit:    info.Commit,
			GoVersion: info.GoVersion,
		}))
		recorder = registry
	}

	var accounts service.UserDirectory
	if pgCfg, ok := config.ToPostgresConfig(cfg); ok {
		pg, err := postgres.Open(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("open user directory: %w", err)
		}
		sh.OnShutdown("user directory", func(context.Context) error { return pg.Close() })
		accounts = pg
	}

	svc, err := initServices(cfg, engine, accounts, recorder, log)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	h, err := handler.New(handler.Config{
		Auth:    svc.auth,
		Keys:    svc.directory,
		Store:   engine,
		Backend: string(engine.Backend()),
		Policy:  cfg.RateLimit,
		Build:   info,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Handler:   h,
		Auth:      svc.auth,
		Limiter:   svc.limiter,
		Metrics:   registry,
		Server:    cfg.Server,
		RateLimit: cfg.RateLimit,
		Logger:    log,
	})

	srv, err := httpserver.New(cfg.Server.HTTP, router, log)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	if cfg.Log.Watch && *configFile != "" {
		w, err := watchLogLevel(*configFile, *envFile, log)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			sh.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
		}
	}

	// Registered last so the listener drains before storage and tracing close.
	sh.OnShutdown("http server", srv.Shutdown)

	go func() {
		if err := srv.Serve(); err != nil {
			log.Error("http server error", "error", err)
			sh.Trigger("http server failed")
		}
	}()

	log.Info("server started",
		"addr", srv.Addr(),
		"storage", string(engine.Backend()),
		"rate_limit", cfg.RateLimit.Enabled,
		"postgres_users", accounts != nil,
		"tracing", tp.Exporting())

	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// services holds the initialized service instances.
type services struct {
	directory *memory.Directory
	auth      *service.AuthService
	limiter   *service.RateLimiter
}

// initServices builds the services. Configured users are looked up before
// accounts, which may be nil.
func initServices(cfg *config.ServerConfig, engine *storage.Engine, accounts service.UserDirectory, rec service.Recorder, log logger.Logger) (*services, error) {
	tokens, err := service.NewTokenService(config.ToTokenConfig(cfg), service.WithTokenRecorder(rec))
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	dir, err := memory.NewDirectory(config.ToDirectory(cfg))
	if err != nil {
		return nil, fmt.Errorf("credential directory: %w", err)
	}

	var users service.UserDirectory = dir
	if accounts != nil {
		users = service.UserDirectories{dir, accounts}
	}

	authCfg := config.ToAuthServiceConfig(cfg)
	authCfg.Recorder = rec
	auth, err := service.NewAuthService(tokens, users, dir, authCfg)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	limiter, err := service.NewRateLimiter(engine.Counters(), config.ToRateLimiterConfig(cfg),
		service.WithRateLimiterLogger(log),
		service.WithRateLimiterRecorder(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	return &services{directory: dir, auth: auth, limiter: limiter}, nil
}

// watchLogLevel reloads the configuration when the file changes and applies
// its log level. Other settings take effect on restart.
func watchLogLevel(path, envFile string, log logger.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.Slog(log)))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := config.Load(path, envFile)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}
