package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/concurrent"
	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/registry"
	jsonpool "github.com/ajitpratap0/nebula-cdk/pkg/json"
	"github.com/ajitpratap0/nebula-cdk/pkg/logger"
	"github.com/ajitpratap0/nebula-cdk/pkg/metrics"
	"github.com/ajitpratap0/nebula-cdk/pkg/observability"
)

type readFlags struct {
	configFile    string
	catalogFile   string
	logLevel      string
	maxWorkers    int
	enableMetrics bool
	metricsAddr   string
	enableTracing bool
}

func newReadCommand(stdout io.Writer) *cobra.Command {
	f := &readFlags{}
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the catalog's streams and print messages as JSON lines",
		Long: `Read syncs every stream of the configured catalog through the concurrent
source. Without --catalog every stream declared in the configuration is read,
incrementally when it has a cursor field.

Example:
  nebula-cdk read --config sync.yaml --catalog catalog.yaml --max-workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRead(ctx, f, stdout)
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to the sync configuration YAML file (required)")
	cmd.Flags().StringVar(&f.catalogFile, "catalog", "", "Path to the configured catalog YAML file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	cmd.Flags().IntVar(&f.maxWorkers, "max-workers", 0, "Maximum concurrent worker jobs; overrides the configuration when positive")
	cmd.Flags().BoolVar(&f.enableMetrics, "enable-metrics", false, "Serve Prometheus metrics")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Listen address of the metrics endpoint")
	cmd.Flags().BoolVar(&f.enableTracing, "enable-tracing", false, "Export worker job spans to stderr")

	return cmd
}

func runRead(ctx context.Context, f *readFlags, stdout io.Writer) error {
	if f.configFile == "" {
		return fmt.Errorf("a sync configuration is required: pass --config or set %s_CONFIG", envPrefix)
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	obs := cfg.Observability
	if err := logger.Init(logger.Config{Level: obs.LogLevel, Encoding: obs.LogEncoding}); err != nil {
		return err
	}
	log := logger.Get().With(zap.String("sync", cfg.Name))
	defer func() { _ = logger.Sync() }()

	if obs.EnableTracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "nebula-cdk",
			ServiceVersion: Version,
			SamplingRate:   obs.TracingSampleRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	if obs.EnableMetrics {
		srv := serveMetrics(obs.MetricsAddr, log)
		defer func() { _ = srv.Close() }()
	}

	catalog, err := loadCatalog(f.catalogFile, cfg)
	if err != nil {
		return err
	}

	source, err := registry.CreateSource(cfg.Source.Type, cfg)
	if err != nil {
		return err
	}

	cs, err := concurrent.NewConcurrentSource(source, cfg, log, concurrent.WithMetrics(metrics.NewCollector(cfg.Name)))
	if err != nil {
		return err
	}

	out := jsonpool.NewLineWriter(stdout)
	start := time.Now()
	runErr := cs.Run(ctx, catalog, func(msg core.Message) error {
		return out.Write(msg)
	})
	if err := out.Flush(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		log.Error("sync failed", zap.Error(runErr), zap.Duration("duration", time.Since(start)))
		return runErr
	}
	log.Info("sync finished", zap.Duration("duration", time.Since(start)))
	return nil
}

func loadConfig(f *readFlags) (*config.SyncConfig, error) {
	cfg, err := config.LoadSyncConfig(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Observability.LogLevel = f.logLevel
	}
	if f.maxWorkers > 0 {
		cfg.Concurrency.MaxWorkers = f.maxWorkers
	}
	if f.enableMetrics {
		cfg.Observability.EnableMetrics = true
	}
	if f.metricsAddr != "" {
		cfg.Observability.MetricsAddr = f.metricsAddr
	}
	if f.enableTracing {
		cfg.Observability.EnableTracing = true
	}
	return cfg, nil
}

// loadCatalog reads the catalog file, or derives one from the configured
// streams when no file is given
func loadCatalog(path string, cfg *config.SyncConfig) (core.ConfiguredCatalog, error) {
	var catalog core.ConfiguredCatalog
	if path != "" {
		if err := config.Load(path, &catalog); err != nil {
			return catalog, fmt.Errorf("invalid catalog %s: %w", path, err)
		}
		return catalog, nil
	}

	for _, s := range cfg.Source.Streams {
		mode := core.SyncModeFullRefresh
		if s.CursorField != "" {
			mode = core.SyncModeIncremental
		}
		catalog.Streams = append(catalog.Streams, core.ConfiguredStream{Name: s.Name, SyncMode: mode, CursorField: s.CursorField})
	}
	return catalog, nil
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
