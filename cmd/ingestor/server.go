// Package main is the flowgate ingestion server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flowgate/flowgate/config"
	"github.com/flowgate/flowgate/crm"
	"github.com/flowgate/flowgate/enrichment"
	"github.com/flowgate/flowgate/eventstore"
	"github.com/flowgate/flowgate/handlers"
	"github.com/flowgate/flowgate/idempotency"
	"github.com/flowgate/flowgate/ingress"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/server"
	"github.com/flowgate/flowgate/internal/telemetry"
	"github.com/flowgate/flowgate/kv"
	"github.com/flowgate/flowgate/llmclient"
	"github.com/flowgate/flowgate/notifier"
	"github.com/flowgate/flowgate/queue"
	"github.com/flowgate/flowgate/runner"
	"github.com/flowgate/flowgate/staging"
	"github.com/flowgate/flowgate/types"
	"github.com/flowgate/flowgate/verify"
)

// Server wires every spec.md module into one running process: the ingress
// HTTP server, the metrics server, and the Job Runner's worker pool.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store *kv.Store

	httpManager    *server.Manager
	metricsManager *server.Manager

	metricsCollector *metrics.Collector
	otel             *telemetry.Providers

	runnerCancel context.CancelFunc
	wg           sync.WaitGroup
}

// NewServer returns a Server ready to Start against cfg.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start brings up every dependency in order: telemetry, metrics, K/V
// store, pipeline, Job Runner, then the two HTTP listeners.
func (s *Server) Start() error {
	otelProviders, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	s.otel = otelProviders

	s.metricsCollector = metrics.NewCollector("flowgate", s.logger)

	store, err := kv.NewStore(kv.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		MaxRetries:   s.cfg.Redis.MaxRetries,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	s.store = store

	events := eventstore.New(store, s.cfg.Pipeline.EventTTL)
	guard := idempotency.New(store, s.cfg.Pipeline.IdempotencyTTL)
	retryPolicy := types.RetryPolicy{MaxRetries: s.cfg.Pipeline.MaxRetries, RetryIntervals: s.cfg.Pipeline.RetryIntervals}
	q := queue.New(store, retryPolicy)
	pipeline := staging.New(events, guard, q, s.logger)

	var notify runner.Notifier = notifier.Noop{}
	if s.cfg.Notifier.WebhookURL != "" {
		notify = notifier.NewSlack(s.cfg.Notifier.WebhookURL, s.cfg.Notifier.Channel, s.cfg.Pipeline.CallTimeout, s.logger)
	}

	clients, crmClient := s.buildClients(store, notify)
	dispatcher := handlers.New(clients)

	jobRunner := runner.New(events, guard, q, dispatcher, notify, s.metricsCollector, runner.Config{
		Workers:         s.cfg.Pipeline.WorkerCount,
		ReserveTimeout:  5 * time.Second,
		PromoteInterval: time.Second,
		PromoteBatch:    100,
	}, s.logger)

	runnerCtx, cancel := context.WithCancel(context.Background())
	s.runnerCancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := jobRunner.Run(runnerCtx); err != nil {
			s.logger.Error("job runner stopped", zap.Error(err))
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollBreakerState(runnerCtx, crmClient)
	}()

	router := ingress.New(pipeline, q, ingress.Config{
		CalendarVerifier:    verify.ForSource("calendar", s.cfg.Sources.CalendarSecret, s.cfg.Sources.SignatureSkew, true, s.logger),
		MeetingsVerifier:    verify.ForSource("meetings", s.cfg.Sources.MeetingsSecret, s.cfg.Sources.SignatureSkew, true, s.logger),
		SupportVerifier:     verify.ForSource("support", s.cfg.Sources.SupportSecret, s.cfg.Sources.SignatureSkew, true, s.logger),
		EnrichSecret:        s.cfg.Sources.EnrichAPIKey,
		MinDurationMinutes:  s.cfg.Pipeline.MinDurationMinutes,
		QualifyingTags:      s.cfg.Pipeline.QualifyingTags,
		AllowDebugEndpoints: s.cfg.Server.AllowDebugEndpoints,
	}, newDebugSource(events, guard, s.metricsCollector), s.logger)

	if err := s.startHTTPServer(router); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("flowgate started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("workers", s.cfg.Pipeline.WorkerCount),
	)
	return nil
}

// pollBreakerState reports the CRM client's circuit breaker state into the
// metrics registry every 5 seconds.
func (s *Server) pollBreakerState(ctx context.Context, crmClient *crm.Client) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metricsCollector.SetCircuitBreakerState("crm", int(crmClient.BreakerState()))
		}
	}
}

// buildClients constructs the outbound CRM/LLM/enrichment/Notifier clients
// a Handler may call, falling back to the CRM datacenter table for
// BaseURL. It also returns the concrete CRM client for breaker-state
// polling.
func (s *Server) buildClients(store *kv.Store, notify runner.Notifier) (*handlers.Clients, *crm.Client) {
	baseURL, _ := config.CRMBaseURL(s.cfg.CRM.Datacenter)
	crmClient := crm.New(store, crm.Config{
		Datacenter:   s.cfg.CRM.Datacenter,
		BaseURL:      baseURL,
		ClientID:     s.cfg.CRM.ClientID,
		ClientSecret: s.cfg.CRM.ClientSecret,
		RefreshToken: s.cfg.CRM.RefreshToken,
		BookedStatus: s.cfg.CRM.BookedStatus,
		Timeout:      s.cfg.CRM.Timeout,
		RateLimitRPS: s.cfg.CRM.RateLimitRPS,
		DryRun:       s.cfg.Pipeline.DryRun,
	}, s.logger)

	llmClient := llmclient.New(llmclient.Config{
		BaseURL:        s.cfg.LLM.BaseURL,
		APIKey:         s.cfg.LLM.APIKey,
		Model:          s.cfg.LLM.Model,
		Timeout:        s.cfg.LLM.Timeout,
		TruncateBudget: s.cfg.LLM.TruncateBudget,
		RateLimitRPS:   s.cfg.LLM.RateLimitRPS,
	}, s.logger)

	enrichClient := enrichment.New(enrichment.Config{
		ContactAPIURL: s.cfg.Enrichment.ContactAPIURL,
		ContactAPIKey: s.cfg.Enrichment.ContactAPIKey,
		ScraperURL:    s.cfg.Enrichment.ScraperURL,
		LogoURL:       s.cfg.Enrichment.LogoURL,
		Timeout:       s.cfg.Enrichment.Timeout,
	}, s.logger)

	return &handlers.Clients{
		CRM:             crmClient,
		LLM:             llmClient,
		Enrichment:      enrichClient,
		Notifier:        notify,
		CustomerDomains: s.cfg.Pipeline.CustomerDomains,
	}, crmClient
}

func (s *Server) startHTTPServer(router *ingress.Router) error {
	mux := http.NewServeMux()
	router.RegisterRoutes(mux)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddlewareAuto(s.metricsCollector),
		OTelTracing(),
	)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.metricsManager.Start()
}

// WaitForShutdown blocks until a shutdown signal or server error arrives,
// then runs Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears everything down in reverse start order.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down flowgate")
	ctx := context.Background()

	if s.runnerCancel != nil {
		s.runnerCancel()
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("redis close error", zap.Error(err))
		}
	}

	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("flowgate stopped")
}
