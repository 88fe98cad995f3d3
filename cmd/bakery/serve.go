package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bakerycore/internal/adapters/httpapi"
	"bakerycore/internal/adapters/reports"
	"bakerycore/internal/blob"
	"bakerycore/internal/config"
	"bakerycore/internal/core"
	"bakerycore/internal/infra/archive"
	"bakerycore/internal/infra/archive/mongodb"
	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/internal/reporting"
	"bakerycore/internal/scheduler"
	"bakerycore/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bakery HTTP API with its scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}
			log, err := buildLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			zap.ReplaceGlobals(log)

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("startup failed", zap.Error(err))
				return err
			}
			defer a.close()

			lis, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}
			return a.run(cmd.Context(), lis)
		},
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return logger.NewDevelopment(cfg.Level)
	}
	return logger.New(cfg.Level)
}

// app is the wired server process.
type app struct {
	log       *zap.Logger
	service   *core.Service
	worker    *reports.Worker
	scheduler *scheduler.Scheduler
	server    *http.Server
	closers   []func(context.Context) error
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	store, storeCloser, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine(),
		memory.WithLogger(logger.Named(log, "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.onClose(closeWith(storeCloser))

	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.service = core.NewService(store, core.WithLogger(logger.Named(log, "core")), core.WithMetrics(metrics))
	rep := reporting.NewService(store, logger.Named(log, "reporting"))

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.worker = reports.NewWorker(rep, a.service.Ledger(), blobs,
		reports.WithLogger(logger.Named(log, "exports")),
		reports.WithQueueSize(cfg.Exports.QueueSize))

	arch, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	a.onClose(arch.Close)

	a.scheduler, err = scheduler.New(cfg.Scheduler, a.service.Ledger(), rep, arch, metrics, logger.Named(log, "scheduler"))
	if err != nil {
		return nil, err
	}

	engine := httpapi.New(httpapi.Deps{
		Service: a.service,
		Reports: rep,
		Exports: a.worker,
		Metrics: reg,
		Logger:  logger.Named(log, "http"),
	})
	a.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

func openArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Archive, error) {
	if cfg.Driver == "mongodb" {
		store, err := mongodb.Connect(ctx, cfg.URI, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect archive: %w", err)
		}
		return store, nil
	}
	return archive.NewMemory(), nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func closeWith(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// run serves on lis until ctx is cancelled, then drains the server, the
// export worker and the scheduler.
func (a *app) run(ctx context.Context, lis net.Listener) error {
	a.worker.Start()
	a.scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server starting", zap.String("addr", lis.Addr().String()))
		if err := a.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
		if err := a.worker.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("export worker stop: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
