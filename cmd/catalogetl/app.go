package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"catalogetl/internal/blob"
	"catalogetl/internal/config"
	"catalogetl/internal/core"
	"catalogetl/internal/jobs"
	"catalogetl/internal/report"

	"github.com/google/gops/agent"
	"github.com/google/uuid"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile  string
	logLevel    string
	logFormat   string
	metricsFile string
	traceFile   string
	gops        bool
}

// app holds the resources of one command invocation.
type app struct {
	cfg       config.Config
	runID     string
	logger    *slog.Logger
	prom      *core.PrometheusMetricsRecorder
	expvar    *core.ExpvarMetricsRecorder
	tracer    core.Tracer
	traceOut  io.Closer
	store     core.ProductStore
	artifacts blob.Store
	gops      bool
}

// openApp resolves configuration and builds the observability stack. The
// product store is opened only when withStore is set.
func (g *globalFlags) openApp(ctx context.Context, stderr io.Writer, withStore bool) (*app, error) {
	cfg, err := config.Load(config.Options{File: g.configFile})
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.metricsFile != "" {
		cfg.Metrics.TextFile = g.metricsFile
	}
	if g.traceFile != "" {
		cfg.Metrics.TraceFile = g.traceFile
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	a := &app{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With("run_id", runID),
		prom:   core.NewPrometheusMetricsRecorder(),
		expvar: core.NewExpvarMetricsRecorder(""),
		tracer: core.NoopTracer(),
	}

	if cfg.Metrics.TraceFile != "" {
		f, err := os.Create(cfg.Metrics.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		a.tracer = core.NewJSONTracer(f)
		a.traceOut = f
	}
	if g.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			a.logger.Warn("gops agent failed", "error", err)
		} else {
			a.gops = true
		}
	}

	if a.artifacts, err = blob.Open(ctx, cfg.BlobOptions()); err != nil {
		_ = a.close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	if withStore {
		if a.store, err = core.OpenProductStore(cfg.StoreOptions()); err != nil {
			_ = a.close()
			return nil, fmt.Errorf("open product store: %w", err)
		}
	}
	a.logger.Debug("configuration loaded",
		"storage", cfg.Storage.Driver,
		"blob", cfg.Blob.Driver,
		"data_dir", cfg.Inputs.DataDir,
	)
	return a, nil
}

func (a *app) observability() core.Observability {
	return core.Observability{
		Logger:  a.logger,
		Metrics: core.MultiMetricsRecorder{a.prom, a.expvar},
		Tracer:  a.tracer,
	}
}

func (a *app) env() jobs.Env {
	return jobs.Env{
		Store:   a.store,
		Reports: report.NewWriter(a.artifacts, a.runID, ""),
		Obs:     a.observability(),
	}
}

func (a *app) input(p string) string { return a.cfg.Inputs.Path(p) }

// close flushes batch metrics and releases every resource.
func (a *app) close() error {
	var errs []error
	if a.cfg.Metrics.TextFile != "" {
		errs = append(errs, a.prom.WriteTextfile(a.cfg.Metrics.TextFile))
	}
	if a.traceOut != nil {
		errs = append(errs, a.traceOut.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.gops {
		agent.Close()
	}
	return errors.Join(errs...)
}
