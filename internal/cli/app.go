package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/Combine-Capital/imoto/pkg/cache"
	"github.com/Combine-Capital/imoto/pkg/config"
	"github.com/Combine-Capital/imoto/pkg/httpclient"
	"github.com/Combine-Capital/imoto/pkg/kvstore"
	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/metrics"
	"github.com/Combine-Capital/imoto/pkg/remote"
	"github.com/Combine-Capital/imoto/pkg/tracing"
	"github.com/Combine-Capital/imoto/pkg/vehicles"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// app holds everything a command needs for one invocation.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	store    kvstore.Store
	client   *httpclient.Client
	service  *remote.RESTService
	cache    *cache.Manager
	repo     *vehicles.Repository
	shutdown tracing.ShutdownFunc

	dumpMetrics bool
	stderr      io.Writer
}

// newApp loads configuration and wires the store, cache, backend client and
// repository. needRemote rejects a configuration without a backend URL.
func newApp(cmd *cobra.Command, flags *globalFlags, needRemote bool) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(flags.configPath, envPrefix)
	if err != nil {
		return nil, err
	}
	if needRemote && cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is required (set it in the config file or %s_REMOTE_BASE_URL)", envPrefix)
	}

	a := &app{
		cfg:         cfg,
		logger:      logging.New(cfg.Log),
		registry:    metrics.NewRegistry(cfg.Metrics),
		dumpMetrics: flags.dumpMetrics,
		stderr:      cmd.ErrOrStderr(),
	}

	collectors, err := metrics.New(a.registry, cfg.Metrics.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	_, a.shutdown, err = tracing.NewTracerProvider(ctx, cfg.Tracing, cfg.Service.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	a.store, err = kvstore.Open(ctx, cfg.Store)
	if err != nil {
		_ = a.shutdown(ctx)
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	a.client, err = httpclient.New(ctx, cfg.Remote)
	if err != nil {
		_ = a.store.Close()
		_ = a.shutdown(ctx)
		return nil, err
	}

	a.cache = cache.New(a.store, cfg.Cache,
		cache.WithLogger(a.logger),
		cache.WithMetrics(collectors),
	)

	a.service = remote.NewRESTService(a.client, cfg.Remote,
		remote.WithLogger(a.logger),
		remote.WithMetrics(collectors),
		remote.WithSelect(vehicles.TableVehicles, vehicles.Columns),
		remote.WithSelect(vehicles.TableSaved, vehicles.SavedColumns),
	)

	a.repo = vehicles.New(a.service, a.cache,
		vehicles.WithLogger(a.logger),
		vehicles.WithMetrics(collectors),
	)

	a.logger.Debug().
		Str("backend", cfg.Store.Backend).
		Str("prefix", a.cache.Prefix()).
		Msg("client initialized")

	return a, nil
}

// Close waits for background refreshes, optionally prints the metrics,
// flushes pending spans, and releases the client and the store.
func (a *app) Close() error {
	a.repo.Scheduler().Wait()

	if a.dumpMetrics {
		if err := a.writeMetrics(a.stderr); err != nil {
			a.logger.Warn().Err(err).Msg("failed to write metrics")
		}
	}

	if err := a.shutdown(context.Background()); err != nil {
		a.logger.Warn().Err(err).Msg("failed to flush traces")
	}
	if err := a.client.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close http client")
	}
	return a.store.Close()
}

// writeMetrics prints every gathered family in the Prometheus text format.
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
