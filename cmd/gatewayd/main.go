// Command gatewayd runs the upstream credential pool and usage-governance
// service: the billing webhook endpoint, usage/quota introspection, the
// governed relay (when an upstream is configured), and health/metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grump-ai/gateway/pkg/api"
	"github.com/grump-ai/gateway/pkg/auth"
	"github.com/grump-ai/gateway/pkg/billing"
	"github.com/grump-ai/gateway/pkg/config"
	"github.com/grump-ai/gateway/pkg/credentials"
	"github.com/grump-ai/gateway/pkg/governor"
	"github.com/grump-ai/gateway/pkg/middleware"
	"github.com/grump-ai/gateway/pkg/observability"
	"github.com/grump-ai/gateway/pkg/quota"
	"github.com/grump-ai/gateway/pkg/tiers"
	"github.com/grump-ai/gateway/pkg/usage"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	catalog, err := tiers.ParseCatalog(cfg.TierTableJSON, logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to parse tier table")
	}

	// Credential source is selected once here; nothing downstream branches
	// on the concrete type.
	var source credentials.Source
	switch cfg.Credentials.Source {
	case "file":
		source = credentials.FileSource{Path: cfg.Credentials.FilePath}
	default:
		source = credentials.EnvSource{Var: cfg.Credentials.EnvVar}
	}

	pool := credentials.NewPool(source, cfg.Credentials.RefreshInterval, logger, metrics)
	if !pool.HasCredentials() {
		// Degraded, not fatal: requests fail with provider_unavailable
		// until the source is populated.
		log.Warn("No upstream credentials configured at startup")
	}

	ledger := quota.NewLedger()
	recorder := usage.NewRecorder(cfg.Usage.BufferCapacity, metrics)
	subs := billing.NewSubscriptionStore(catalog.Fallback().ID)
	sync := billing.NewSync(billing.SyncConfig{
		Secret:     cfg.Billing.WebhookSecret,
		DedupeSize: cfg.Billing.DedupeSize,
		DedupeTTL:  cfg.Billing.DedupeTTL,
	}, subs, catalog, logger, metrics)
	gov := governor.New(ledger, pool, recorder, metrics)

	validator, err := auth.NewHashedSetValidator(cfg.Auth.TokenEntries)
	if err != nil {
		log.WithError(err).Fatal("Failed to load API tokens")
	}

	server := api.NewServer(sync, subs, catalog, gov, recorder, logger, metrics)

	if cfg.Upstream.BaseURL != "" {
		relay, err := api.NewUpstreamRelay(cfg.Upstream.BaseURL, logger)
		if err != nil {
			log.WithError(err).Fatal("Failed to build upstream relay")
		}
		authMW := middleware.NewAuthMiddleware(validator, subs, catalog)
		governMW := middleware.NewGovernMiddleware(gov)
		server.Router().PathPrefix("/v1/generate").Handler(
			authMW.Handler(governMW.Handler(relay)),
		)
		log.WithField("upstream", cfg.Upstream.BaseURL).Info("Governed relay mounted at /v1/generate")
	}

	// Scheduled pool refreshes, plus watch-triggered ones for file sources.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Credentials.RefreshSchedule, pool.Refresh); err != nil {
		log.WithError(err).Fatal("Invalid credential refresh schedule")
	}
	scheduler.Start()

	var stopWatch func()
	if fs, ok := source.(credentials.FileSource); ok {
		stopWatch, err = fs.Watch(logger, pool.ForceRefresh)
		if err != nil {
			log.WithError(err).Warn("Credential file watch unavailable, relying on scheduled refresh")
		}
	}

	apiSrv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthSrv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: api.NewHealthRouter(metrics),
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiSrv, healthSrv)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		scheduler.Stop()
		if stopWatch != nil {
			stopWatch()
		}
		return nil
	})

	var g errgroup.Group
	g.Go(func() error {
		log.WithField("addr", apiSrv.Addr).Info("Starting gateway API server")
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", healthSrv.Addr).Info("Starting health/metrics server")
		if err := healthSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("Gateway exited with error")
	}
}
