package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subnetgov/config"
	"subnetgov/core/events/outbox"
	"subnetgov/core/identity"
	"subnetgov/core/sched"
	"subnetgov/native/critical"
	"subnetgov/native/dao"
	"subnetgov/native/policy"
	"subnetgov/native/registry"
	"subnetgov/native/resources"
	"subnetgov/native/slashing"
	"subnetgov/native/threshold"
	"subnetgov/observability/logging"
	"subnetgov/observability/otel"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "govd.toml", "path to govd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("govd", cfg.Environment, logging.Rotation{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var shutdownTelemetry func(context.Context) error
	if cfg.Telemetry.Endpoint != "" {
		shutdownTelemetry, err = otel.Init(rootCtx, otel.Config{
			ServiceName: "govd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	journal, err := outbox.Open(filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		log.Fatalf("open event outbox: %v", err)
	}
	emitter := outbox.NewEmitter(journal, logger)

	resolver := identity.NewStaticResolver()

	reg := registry.New(resolver)
	reg.SetEmitter(emitter)
	reg.SetRotationPolicy(registry.RotationPolicy{
		Interval:      24 * time.Hour,
		MaxAge:        30 * 24 * time.Hour,
		MinValidators: cfg.MinValidators,
		MaxValidators: cfg.MaxValidators,
	})

	ledger := slashing.NewLedger(reg)
	ledger.SetEmitter(emitter)
	ledger.SetPenalties(penaltyOverrides(cfg.Penalties))

	coordinator := threshold.NewCoordinator(reg, ledger)
	coordinator.SetEmitter(emitter)

	criticalOps := critical.NewManager(reg, coordinator)
	criticalOps.SetEmitter(emitter)

	policies := policy.NewEngine()
	for _, bundle := range cfg.PolicyBundles {
		if err := policy.RegisterBundle(policies, bundle); err != nil {
			log.Fatalf("load policy bundle %s: %v", bundle, err)
		}
		logger.Info("policy bundle loaded", "path", bundle)
	}

	allocator := resources.NewAllocator(reg.Locks())
	allocator.SetEmitter(emitter)

	governor := dao.NewGovernor(reg, policies, allocator)
	governor.SetEmitter(emitter)
	if err := governor.SetDefaults(cfg.DefaultQuorumBps, cfg.DefaultMajorityBps); err != nil {
		log.Fatalf("configure governor: %v", err)
	}
	governor.SetVotingPeriod(time.Duration(cfg.VotingPeriodHours) * time.Hour)

	scheduler := sched.New(logger)
	scheduler.SetIntervals(
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.MaintenanceIntervalSeconds)*time.Second,
	)
	scheduler.AddExpirer("threshold", coordinator)
	scheduler.AddExpirer("dao", governor)
	scheduler.AddDailyJob("reputation", reg.Maintain)
	scheduler.AddDailyJob("resources", func(time.Time) { allocator.ResetDailyCounters() })
	go scheduler.Run(rootCtx)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("govd listening", "address", cfg.ListenAddress)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("force closing server", "error", err)
			_ = srv.Close()
		}
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", "error", err)
			}
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func penaltyOverrides(p config.Penalties) map[slashing.Severity]int {
	overrides := make(map[slashing.Severity]int)
	if p.Warning > 0 {
		overrides[slashing.SeverityWarning] = p.Warning
	}
	if p.Minor > 0 {
		overrides[slashing.SeverityMinor] = p.Minor
	}
	if p.Major > 0 {
		overrides[slashing.SeverityMajor] = p.Major
	}
	if p.Critical > 0 {
		overrides[slashing.SeverityCritical] = p.Critical
	}
	return overrides
}
