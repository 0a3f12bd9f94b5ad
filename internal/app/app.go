// Package app initializes and holds long-lived crawl services, acting as a
// dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/api"
	"github.com/JakeFAU/localbiz-crawler/internal/checkpoint"
	"github.com/JakeFAU/localbiz-crawler/internal/config"
	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/localbiz-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/localbiz-crawler/internal/geocode"
	"github.com/JakeFAU/localbiz-crawler/internal/policy/quota"
	"github.com/JakeFAU/localbiz-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/localbiz-crawler/internal/progress"
	"github.com/JakeFAU/localbiz-crawler/internal/progress/sinks"
	"github.com/JakeFAU/localbiz-crawler/internal/server"
	"github.com/JakeFAU/localbiz-crawler/internal/storage/local"
	"github.com/JakeFAU/localbiz-crawler/internal/storage/postgres"
)

// App holds the services shared by every crawl in the process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	hub       *progress.Hub
	usage     *sinks.UsageSink
	reporter  *progress.Reporter
	retrier   *crawler.Retrier
	geocoder  crawler.Geocoder
	quota     *quota.Gate
	snapshots *local.SnapshotStore
	records   *postgres.RecordStore
	pauser    crawler.Pauser
}

// Option customizes New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	pauser     crawler.Pauser
	records    *postgres.RecordStore
}

// WithRegisterer registers the usage collectors on reg instead of the
// default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPauser replaces the timer used for every politeness delay.
func WithPauser(p crawler.Pauser) Option {
	return func(o *options) { o.pauser = p }
}

// WithRecordStore injects a Postgres store instead of dialing output.postgres_dsn.
func WithRecordStore(s *postgres.RecordStore) Option {
	return func(o *options) { o.records = s }
}

// New wires the crawl graph from cfg. It fails fast when any service cannot
// be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{pauser: crawler.TimerPauser{}}
	for _, opt := range opts {
		opt(&o)
	}
	logger.Info("initializing crawl services")

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	usage := sinks.NewUsageSink()
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		promSink, usage, sinks.NewLogSink(logger.Named("usage")))
	reporter := &progress.Reporter{RunID: progress.NewRunID(), Emitter: hub}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		hub:      hub,
		usage:    usage,
		reporter: reporter,
		pauser:   o.pauser,
		records:  o.records,
	}
	if err := a.init(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	logger.Info("crawl services initialized",
		zap.Bool("proxied", cfg.Proxy.Enabled),
		zap.Bool("geocode", a.geocoder != nil),
		zap.Bool("postgres", a.records != nil),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		Timeout:  a.cfg.HTTP.Timeout,
		ProxyURL: a.cfg.ProxyURL(),
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	a.retrier = crawler.NewRetrier(fetcher, crawler.RetrierOptions{
		Policy:         a.cfg.FetchPolicy(),
		Identities:     crawler.NewIdentityPool(a.cfg.HTTP.UserAgents),
		Pauser:         a.pauser,
		Reporter:       a.reporter,
		Logger:         a.logger,
		DirectFallback: a.cfg.UseDirectFallback(),
	})

	if a.cfg.Geocode.Enabled {
		cache, err := geocode.OpenCache(a.cfg.Geocode.CachePath)
		if err != nil {
			return fmt.Errorf("init geocode cache: %w", err)
		}
		a.quota = quota.New(a.cfg.Geocode.Quota)
		a.geocoder = geocode.NewResolver(cache,
			geocode.NewGoogleClient(a.cfg.Geocode.APIKey, geocode.WithEndpoint(a.cfg.Geocode.Endpoint)),
			geocode.Options{
				Limiter:  ratelimit.New(ratelimit.Config{Name: "geocode", MinInterval: a.cfg.Geocode.MinInterval}),
				Quota:    a.quota,
				Policy:   a.cfg.GeocodePolicy(),
				Pauser:   a.pauser,
				Reporter: a.reporter,
				Logger:   a.logger,
			})
		a.logger.Info("geocode cache loaded", zap.Int("addresses", cache.Len()))
	}

	a.snapshots, err = local.New(local.Config{BaseDir: a.cfg.Output.Dir})
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}

	if a.records == nil && a.cfg.Output.PostgresDSN != "" {
		a.records, err = postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:   a.cfg.Output.PostgresDSN,
			Table: a.cfg.Output.Table,
		})
		if err != nil {
			return fmt.Errorf("init record store: %w", err)
		}
	}
	if a.records != nil {
		if err := a.records.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("init record store: %w", err)
		}
	}
	return nil
}

// Usage returns the running usage totals.
func (a *App) Usage() sinks.Usage {
	return a.usage.Snapshot()
}

// Result summarizes one finished crawl.
type Result struct {
	Records      []crawler.BusinessRecord
	SnapshotPath string
}

// Crawl runs every unit through the orchestrator. All units must share one
// query and state; name picks the snapshot file. Records from an earlier
// interrupted run are carried into the snapshot when resuming.
func (a *App) Crawl(ctx context.Context, units []crawler.WorkUnit, name string) (Result, error) {
	if len(units) == 0 {
		return Result{}, errors.New("no work units")
	}
	query, state := units[0].Query, units[0].StateCode
	for _, u := range units[1:] {
		if u.Query != query || u.StateCode != state {
			return Result{}, fmt.Errorf("unit %s does not match query %q in %s", u.Key(), query, state)
		}
	}
	if name == "" {
		name = query
	}
	snapshotName := local.FileName(name, state)

	ledger, err := checkpoint.Open(checkpoint.PathFor(a.cfg.Checkpoint.Dir, query, state))
	if err != nil {
		return Result{}, fmt.Errorf("open checkpoint: %w", err)
	}
	opts := a.cfg.RunOptions()

	var carried []crawler.BusinessRecord
	if opts.Resume {
		carried, err = a.snapshots.Load(snapshotName)
		if err != nil {
			return Result{}, fmt.Errorf("load previous snapshot: %w", err)
		}
		if len(carried) > 0 || ledger.Len() > 0 {
			a.logger.Info("resuming crawl",
				zap.Int("completed_units", ledger.Len()),
				zap.Int("carried_records", len(carried)),
			)
		}
	}

	var snapshotPath string
	opts.Persist = func(ctx context.Context, records []crawler.BusinessRecord) error {
		all := make([]crawler.BusinessRecord, 0, len(carried)+len(records))
		all = append(append(all, carried...), records...)
		path, err := a.snapshots.Save(ctx, snapshotName, all)
		if err != nil {
			return err
		}
		snapshotPath = path
		if a.records != nil {
			inserted, err := a.records.Upsert(ctx, records)
			if err != nil {
				return err
			}
			a.logger.Debug("records upserted", zap.Int64("inserted", inserted))
		}
		a.logger.Info("records saved", zap.String("path", path), zap.Int("records", len(all)))
		return nil
	}

	pool := crawler.NewPool(a.retrier, a.geocoder, a.cfg.PoolConfig(), a.pauser, a.logger)
	walker := crawler.NewWalker(a.retrier, pool, a.cfg.WalkerConfig(), a.pauser, a.logger)
	orch := crawler.NewOrchestrator(walker, ledger, a.reporter, a.logger)

	if a.cfg.Metrics.Addr != "" {
		srv, err := server.Start(a.cfg.Metrics.Addr,
			api.NewServer(orch, a.usage, api.Options{APIKey: a.cfg.Metrics.APIKey, Logger: a.logger}).Handler(),
			a.logger)
		if err != nil {
			return Result{}, fmt.Errorf("start status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	records, runErr := orch.Run(ctx, units, opts)
	a.logger.Info("crawl finished", zap.Int("records", len(records)), zap.Int("carried", len(carried)))
	return Result{
		Records:      append(carried, records...),
		SnapshotPath: snapshotPath,
	}, runErr
}

// Close flushes usage events, logs the usage summary and releases
// connections. Usage is final only after Close.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down crawl services")
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close", zap.Error(err))
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("usage events dropped", zap.Int64("dropped", dropped))
		}
		usage := a.usage.Snapshot()
		a.logger.Info("usage summary",
			zap.Int64("requests", usage.Requests),
			zap.Float64("proxied_mb", usage.ProxiedMB()),
			zap.Int64("direct_bytes", usage.DirectBytes),
			zap.Int64("geocode_calls", usage.GeocodeCalls),
			zap.Int64("geocode_quota_remaining", a.quota.Remaining()),
		)
	}
	if a.records != nil {
		a.records.Close()
	}
}
