package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-risk-service/internal/adapter/advisor"
	httpadapter "github.com/couchcryptid/hazard-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-risk-service/internal/assess"
	"github.com/couchcryptid/hazard-risk-service/internal/config"
	"github.com/couchcryptid/hazard-risk-service/internal/impact"
	"github.com/couchcryptid/hazard-risk-service/internal/observability"
	"github.com/couchcryptid/hazard-risk-service/internal/pipeline"
	"github.com/couchcryptid/hazard-risk-service/internal/recommend"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
	"github.com/couchcryptid/hazard-risk-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	rulesStore, err := rules.NewStore(cfg.RulesPath, cfg.ParametersPath, clockwork.NewRealClock(), logger, metrics)
	if err != nil {
		logger.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	estimator := impact.NewCachedEstimator(impact.Calculator{}, cfg.ImpactCacheSize, metrics)
	rulesStore.Subscribe(estimator.Invalidate)

	// Action ranking is feature-flagged via ADVISOR_ENABLED / ADVISOR_URL.
	var source recommend.Source = recommend.RuleBasedSource{}
	if cfg.AdvisorEnabled {
		client := advisor.NewClient(cfg.AdvisorURL, cfg.AdvisorTimeout, metrics, logger)
		source = recommend.NewAdvisoryModelSource(client)
		logger.Info("advisory model ranking enabled", "url", cfg.AdvisorURL, "timeout", cfg.AdvisorTimeout)
	} else {
		logger.Info("rule-based action ranking enabled")
	}

	assessor := assess.New(source, estimator, cfg.AssessWorkers)
	latest := store.NewLatest(metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(rulesStore, assessor, logger)

	p := pipeline.New(reader, transformer, pipeline.FanOutLoader{writer, latest}, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, rulesStore, latest, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	// Reload rules on SIGHUP and when the files change.
	go rulesStore.Watch(ctx, cfg.RulesReloadInterval, hup)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start assessment pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
