package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"reportcli/internal/config"
	"reportcli/internal/infrastructure"
	"reportcli/internal/pipeline"
	"reportcli/internal/scheduler"
	"reportcli/internal/services"
	httptransport "reportcli/internal/transport/http"
)

// Application holds the server's long-lived components.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Service       *services.RunService
	Scheduler     *scheduler.Scheduler
	Server        *http.Server
}

// New loads configuration from configPath and assembles the
// application. Nothing is started until Run is called.
func New(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var instruments *infrastructure.PipelineMetrics
	if providers.Meter != nil {
		instruments, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create instruments: %w", err)
		}
	}

	orchestrator := pipeline.New(pipeline.Config{
		Logger:      logger,
		Tracer:      providers.Tracer,
		Instruments: instruments,
	})
	service := services.NewRunService(cfg, orchestrator, logger)

	router := httptransport.NewRouter(cfg, service, logger, providers.PrometheusHTTP)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	return &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Service:       service,
		Scheduler:     scheduler.New(cfg, service, logger),
		Server:        server,
	}, nil
}

// Run starts the HTTP server and the job scheduler and blocks until
// the context is cancelled or a SIGINT/SIGTERM arrives, then shuts
// everything down within the configured shutdown timeout.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.Int("jobs", len(a.Config.Jobs)))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Scheduler.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown stops the HTTP server, flushes telemetry and closes the
// log file. Errors are collected so a failing step does not skip the
// remaining ones.
func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout.Std())
	defer cancel()

	a.Logger.Info("shutting down")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}
