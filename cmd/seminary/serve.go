// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nguyendan07/seminary-management-system/internal/auth"
	authmemory "github.com/nguyendan07/seminary-management-system/internal/auth/memory"
	authpostgres "github.com/nguyendan07/seminary-management-system/internal/auth/postgres"
	authredis "github.com/nguyendan07/seminary-management-system/internal/auth/redis"
	"github.com/nguyendan07/seminary-management-system/internal/config"
	"github.com/nguyendan07/seminary-management-system/internal/control"
	"github.com/nguyendan07/seminary-management-system/internal/logging"
	"github.com/nguyendan07/seminary-management-system/internal/observability"
	"github.com/nguyendan07/seminary-management-system/internal/roster"
	rostermemory "github.com/nguyendan07/seminary-management-system/internal/roster/memory"
	rosterpostgres "github.com/nguyendan07/seminary-management-system/internal/roster/postgres"
	"github.com/nguyendan07/seminary-management-system/internal/seed"
	"github.com/nguyendan07/seminary-management-system/internal/store"
	"github.com/nguyendan07/seminary-management-system/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the seminary server",
		Long: `Start the API server, the metrics listener, and the owner-only
control socket. Storage backends are selected by configuration:
postgres for durable deployments, memory for demo mode.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, autoMigrate)
		},
	}

	registerServeFlags(cmd.Flags())
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run pending migrations before serving")

	return cmd
}

// registerServeFlags declares the flags that override config file
// values. Flag names mirror the config keys so the koanf posflag layer
// maps them directly.
func registerServeFlags(flags *pflag.FlagSet) {
	flags.String("server.listen_addr", "", "API listen address")
	flags.String("storage.backend", "", "storage backend (postgres or memory)")
	flags.String("storage.sessions", "", "session store (postgres, redis, or memory)")
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("redis.url", "", "Redis connection URL")
	flags.String("log.level", "", "log level (debug, info, warn, error)")
	flags.String("log.format", "", "log format (json or text)")
	flags.String("observability.listen_addr", "", "metrics/health listen address")
	flags.String("control.socket_path", "", "control socket path override")
}

// app holds the assembled server processes and their dependencies.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	auth     *auth.Service
	resets   *auth.ResetService
	roster   *roster.Service
	web      *web.Server
	obs      *observability.Server
	store    *store.Store
	ready    func() bool
	seedDemo func(ctx context.Context) error
}

func runServe(cmd *cobra.Command, autoMigrate bool) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.SetDefault("seminary", version, cfg.Log.Format, level)
	logger := slog.Default()

	logger.Info("starting server",
		"backend", cfg.Storage.Backend,
		"sessions", cfg.Storage.Sessions,
		"listen_addr", cfg.Server.ListenAddr,
	)

	a, err := newApp(cmd.Context(), cfg, logger, autoMigrate)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(cmd.Context())
}

// newApp builds the repositories, services, and servers for the
// configured backends.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, autoMigrate bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var (
		accounts auth.AccountRepository
		sessions auth.SessionRepository
		resets   auth.ResetRepository
		students roster.StudentRepository
	)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		accounts = authmemory.NewAccountRepository()
		sessions = authmemory.NewSessionRepository()
		resets = authmemory.NewResetRepository()
		students = rostermemory.NewStudentRepository()
		a.ready = func() bool { return true }

		// Demo mode starts from the default manifest so the server is
		// usable out of the box.
		a.seedDemo = func(ctx context.Context) error {
			seeder, err := seed.NewSeeder(accounts, students, auth.NewArgon2idHasher(), nil, logger)
			if err != nil {
				return err
			}
			manifest, err := seed.DefaultManifest()
			if err != nil {
				return err
			}
			result, err := seeder.Apply(ctx, manifest)
			if err != nil {
				return err
			}
			logger.Info("demo data seeded",
				"accounts", result.AccountsCreated,
				"students", result.StudentsCreated,
			)
			return nil
		}

	case config.BackendPostgres:
		st, err := store.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.store = st

		if autoMigrate {
			logger.Info("running migrations")
			if err := st.Migrate(); err != nil {
				st.Close()
				return nil, err
			}
		}

		pool := st.Pool()
		accounts = authpostgres.NewAccountRepository(pool)
		resets = authpostgres.NewResetRepository(pool)
		students = rosterpostgres.NewStudentRepository(pool)

		switch cfg.Storage.Sessions {
		case config.BackendRedis:
			client, err := authredis.NewClient(cfg.Redis.URL)
			if err != nil {
				st.Close()
				return nil, err
			}
			sessions = authredis.NewSessionRepository(client)
		case config.BackendMemory:
			sessions = authmemory.NewSessionRepository()
		default:
			sessions = authpostgres.NewSessionRepository(pool)
		}

		a.ready = func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return st.Ping(pingCtx) == nil
		}

	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", cfg.Storage.Backend).
			Errorf("unsupported storage backend")
	}

	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewServiceWithLogger(accounts, sessions, hasher, cfg.AuthServiceConfig(), logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.auth = authSvc

	resetSvc, err := auth.NewResetServiceWithLogger(accounts, resets, sessions, hasher, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.resets = resetSvc

	rosterSvc, err := roster.NewServiceWithLogger(students, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.roster = rosterSvc

	a.web = web.NewServer(cfg.Server.ListenAddr, authSvc, resetSvc, rosterSvc, logger)

	if cfg.Observability.Enabled {
		a.obs = observability.NewServer(cfg.Observability.ListenAddr, a.ready,
			auth.RegisterMetrics, roster.RegisterMetrics)
	}

	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// run starts every listener and blocks until a shutdown signal, a
// control-socket shutdown request, or a server failure.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.seedDemo != nil {
		if err := a.seedDemo(ctx); err != nil {
			return err
		}
	}

	webErrCh, err := a.web.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, webErrCh, "api")

	if a.obs != nil {
		obsErrCh, err := a.obs.Start()
		if err != nil {
			a.stopServers()
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	socketPath, err := control.SocketPath(a.cfg.Control.SocketPath)
	if err != nil {
		a.stopServers()
		return err
	}
	ctl := control.NewServer(version, a.cfg.Storage.Backend, func() { cancel() }, a.auth.Unlock)
	if err := ctl.Start(socketPath); err != nil {
		a.stopServers()
		return err
	}

	go a.sweepSessions(ctx)

	a.logger.Info("server ready",
		"api_addr", a.web.Addr(),
		"control_socket", socketPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	}

	a.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := ctl.Stop(shutdownCtx); err != nil {
		a.logger.Warn("error stopping control socket", "error", err)
	}
	a.stopServersCtx(shutdownCtx)

	a.logger.Info("shutdown complete")
	return nil
}

func (a *app) stopServers() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.stopServersCtx(shutdownCtx)
}

func (a *app) stopServersCtx(ctx context.Context) {
	if err := a.web.Stop(ctx); err != nil {
		a.logger.Warn("error stopping api server", "error", err)
	}
	if a.obs != nil {
		if err := a.obs.Stop(ctx); err != nil {
			a.logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// sweepSessions periodically removes expired sessions.
func (a *app) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Storage.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.auth.SweepExpired(ctx)
			if err != nil {
				a.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				a.logger.Info("expired sessions swept", "count", removed)
			}
		}
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// run context on failure so one dead listener takes the process down
// cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
