// Package main provides the entry point for filevault-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/infra/buildinfo"
	"github.com/yndnr/filevault-go/internal/infra/confloader"
	"github.com/yndnr/filevault-go/internal/infra/shutdown"
	"github.com/yndnr/filevault-go/internal/server/config"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
	"github.com/yndnr/filevault-go/internal/server/httpserver"
	"github.com/yndnr/filevault-go/internal/server/localserver"
	"github.com/yndnr/filevault-go/internal/storage"
	"github.com/yndnr/filevault-go/internal/telemetry/logger"
	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		checkOnly   = flag.Bool("check", false, "Validate the configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("filevault-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Println("configuration OK")
		return nil
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting filevault-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := metric.NewRegistry()

	store, err := initStorage(cfg, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	registry, files, err := initServices(ctx, cfg, store, slogLogger)
	if err != nil {
		store.Close()
		return fmt.Errorf("init services: %w", err)
	}
	metrics.Registerer().MustRegister(metric.NewCollector(registry.Count))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("closing account registry store")
		return store.Close()
	})

	// File protocol server
	fileSrv := fileserver.New(fileServerConfig(cfg),
		fileserver.NewDispatcher(registry, files, metrics, slogLogger),
		metrics, slogLogger)
	if err := fileSrv.Start(ctx); err != nil {
		shutdownHandler.Shutdown()
		return err
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down file server")
		return fileSrv.Shutdown(ctx)
	})

	// Ops HTTP server
	if cfg.Server.HTTP.Enabled {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics:      metrics,
			MetricsToken: cfg.Server.HTTP.MetricsToken,
			Ready:        fileSrv.Ready,
			Logger:       slogLogger,
		})
		httpSrv := httpserver.New(cfg.Server.HTTP.Addr, router, slogLogger)
		if err := httpSrv.Start(); err != nil {
			shutdownHandler.Shutdown()
			return err
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down HTTP server")
			return httpSrv.Shutdown(ctx)
		})
	}

	reloader := &reloader{path: *configFile, logger: slogLogger}
	shutdownHandler.OnReload(func() {
		if err := reloader.reload(); err != nil {
			log.Error("configuration reload failed", "error", err)
		}
	})

	// Local admin socket
	if cfg.Server.Local.Enabled {
		admin := localserver.New(cfg.Server.Local.Path, localserver.NewHandler(localserver.HandlerConfig{
			Conns:    fileSrv,
			Accounts: registry.Count,
			Reload:   reloader.reload,
			Shutdown: func() { shutdownHandler.Shutdown() },
		}), slogLogger)
		if err := admin.Start(); err != nil {
			shutdownHandler.Shutdown()
			return err
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down local admin socket")
			return admin.Shutdown(ctx)
		})
	}

	// Config file watcher
	if *configFile != "" {
		watcher, err := startWatcher(*configFile, reloader, slogLogger)
		if err != nil {
			log.Warn("configuration watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started",
		"addr", fileSrv.Addr().String(),
		"accounts", registry.Count(),
		"storage_root", registry.StorageRoot())
	if err := shutdownHandler.WaitContext(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, log.Slog(), nil
}

// initStorage opens the account registry store.
func initStorage(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (storage.AccountStore, error) {
	storeCfg := storage.Config{
		Backend: cfg.Storage.RegistryBackend,
		Path:    cfg.Storage.ResolvedRegistryPath(),
		Badger: storage.BadgerConfig{
			GCInterval:  cfg.Storage.Badger.GCInterval,
			GCThreshold: cfg.Storage.Badger.GCThreshold,
			SyncWrites:  cfg.Storage.Badger.SyncWrites,
		},
	}
	if dir := filepath.Dir(storeCfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(storeCfg, log)
	if err != nil {
		return nil, err
	}
	if bs, ok := store.(*storage.BadgerStore); ok {
		bs.RegisterMetrics(metrics.Registerer())
	}
	log.Info("account store opened", "backend", storeCfg.Backend, "path", storeCfg.Path)
	return store, nil
}

// initServices loads the account registry and creates the file service.
func initServices(ctx context.Context, cfg *config.ServerConfig, store storage.AccountStore, log *slog.Logger) (*service.AccountRegistry, *service.FileService, error) {
	hasher, err := service.NewPasswordHasher(service.PasswordScheme(cfg.Security.PasswordScheme))
	if err != nil {
		return nil, nil, err
	}
	registry, err := service.NewAccountRegistry(store, &service.AccountRegistryConfig{
		StorageRoot: cfg.Storage.Root,
		Hasher:      hasher,
		Logger:      log,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := registry.Load(ctx); err != nil {
		return nil, nil, err
	}

	files := service.NewFileService(&service.FileServiceConfig{
		MaxFileBytes: cfg.Storage.MaxFileBytes,
		Logger:       log,
	})
	return registry, files, nil
}

func fileServerConfig(cfg *config.ServerConfig) *fileserver.Config {
	tcp := cfg.Server.TCP
	framing, _ := fileserver.ParseFraming(tcp.Framing)
	return &fileserver.Config{
		Addr:              tcp.Addr,
		Framing:           framing,
		ReadTimeout:       tcp.ReadTimeout,
		WriteTimeout:      tcp.WriteTimeout,
		IdleTimeout:       tcp.IdleTimeout,
		MaxConnections:    tcp.MaxConnections,
		MaxFrameBytes:     tcp.MaxFrameBytes,
		CommandsPerSecond: tcp.CommandsPerSecond,
	}
}

// reloader re-reads the configuration file. Only the log level is applied
// to the running server; other changes need a restart.
type reloader struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

func (r *reloader) reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := loadConfig(r.path)
	if err != nil {
		return err
	}
	old := logger.GetLevel()
	logger.SetLevel(cfg.Log.Level)
	r.logger.Info("configuration reloaded", "log_level_old", old, "log_level", logger.GetLevel())
	return nil
}

func startWatcher(path string, r *reloader, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		if err := r.reload(); err != nil {
			log.Error("configuration reload failed", "error", err)
		}
	})
	w.StartAsync()
	return w, nil
}
