// Command server runs the task orchestration HTTP API: it wires the
// Sensitivity Gate, Knowledge & Workgroup Resolver, Analysis Pipeline,
// Todo Graph Engine, Deliverable Quality Machine, and Conversation
// Orchestrator behind pkg/orchestrator, then serves them over chi.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/taskforge/orchestrator/internal/clock"
	"github.com/taskforge/orchestrator/internal/config"
	"github.com/taskforge/orchestrator/internal/httpapi"
	"github.com/taskforge/orchestrator/internal/logadapter"
	"github.com/taskforge/orchestrator/pkg/analysis"
	"github.com/taskforge/orchestrator/pkg/audit"
	rediscache "github.com/taskforge/orchestrator/pkg/cache/redis"
	"github.com/taskforge/orchestrator/pkg/conversation"
	"github.com/taskforge/orchestrator/pkg/deliverable"
	"github.com/taskforge/orchestrator/pkg/kms"
	"github.com/taskforge/orchestrator/pkg/knowledge"
	"github.com/taskforge/orchestrator/pkg/llm"
	"github.com/taskforge/orchestrator/pkg/metrics"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/notify"
	"github.com/taskforge/orchestrator/pkg/notify/delivery"
	"github.com/taskforge/orchestrator/pkg/objectstore"
	"github.com/taskforge/orchestrator/pkg/orchestrator"
	"github.com/taskforge/orchestrator/pkg/rules"
	"github.com/taskforge/orchestrator/pkg/sensitivity"
	"github.com/taskforge/orchestrator/pkg/store"
	"github.com/taskforge/orchestrator/pkg/todograph"
	"github.com/taskforge/orchestrator/pkg/tracing"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		return err
	}

	tracing.SetGlobal(tracing.NewNoop())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clk := clock.NewReal()
	logrLogger := logadapter.FromLogrus(logger)

	tasks, sessions, closeStore, err := buildStores(cfg, logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	progressCache, notifyDedup := buildCaches(cfg, logrLogger)

	var llmBackend llm.Backend
	switch cfg.LLM.Provider {
	case "bedrock":
		backend, err := llm.NewBedrockBackend(context.Background(), cfg.LLM)
		if err != nil {
			logger.WithError(err).Warn("bedrock backend unavailable, NLP-dependent stages will degrade")
		} else {
			llmBackend = backend
		}
	default:
		backend, err := llm.NewAnthropicBackend(cfg.LLM)
		if err != nil {
			logger.WithError(err).Warn("anthropic backend unavailable, NLP-dependent stages will degrade")
		} else {
			llmBackend = backend
		}
	}

	var gate *sensitivity.Gate
	if llmBackend != nil {
		gate = sensitivity.New(llmBackend, sensitivity.DefaultRules(), logger)
	} else {
		gate = sensitivity.New(nil, sensitivity.DefaultRules(), logger)
	}

	// No concrete search backend or workgroup directory ships with this
	// service yet; the resolver degrades to baseline fit/success scoring
	// (see pkg/knowledge.Resolver.Resolve) until one is wired.
	resolver := knowledge.New(nil, nil, cfg.Policy.TopKWorkgroups, logger)

	contentPolicy, err := rules.CompileDefaultContentPolicy(context.Background())
	if err != nil {
		return err
	}

	auditClient := audit.New(nil, logrLogger, clk)

	todoEngine := todograph.New(clk, logger, m, auditClient)

	var nlp analysis.NLPBackend
	if llmBackend != nil {
		nlp = llmBackend
	}
	analysisPipeline := analysis.New(analysis.DefaultConfig(), gate, nlp, resolver, tasks, todoEngine, auditClient, m, logger)

	var scorer deliverable.QualityScorer
	if llmBackend != nil {
		scorer = deliverable.LLMScorer{Backend: llmBackend}
	} else {
		scorer = deliverable.HeuristicScorer{}
	}
	deliverablePipeline := deliverable.New(deliverable.DefaultPipelineConfig(), gate, contentPolicy, scorer, clk, auditClient, logger)

	var summarizer conversation.Summarizer
	if llmBackend != nil {
		summarizer = llmBackend
	}
	conversationOrchestrator := conversation.New(conversation.DefaultConfig(), summarizer, clk, logger)

	objectStore, err := buildObjectStore(cfg)
	if err != nil {
		return err
	}

	notifier := buildNotifier(cfg, logger)

	svc := orchestrator.New(orchestrator.Deps{
		Gate:          gate,
		Resolver:      resolver,
		Analysis:      analysisPipeline,
		TodoEngine:    todoEngine,
		Deliverable:   deliverablePipeline,
		Conversation:  conversationOrchestrator,
		Tasks:         tasks,
		Sessions:      sessions,
		Notifier:      notifier,
		Audit:         auditClient,
		Metrics:       m,
		Clock:         clk,
		Logger:        logger,
		Objects:       objectStore,
		ProgressCache: progressCache,
		NotifyDedup:   notifyDedup,
	})

	api := &httpapi.Server{Orchestrator: svc, Logger: logger}
	mux := http.NewServeMux()
	mux.Handle("/", api.Routes(cfg.CORSOrigins))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopSweeper := make(chan struct{})
	go httpapi.RunSessionSweeper(stopSweeper, svc, logger, 5*time.Minute)
	defer close(stopSweeper)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStores(cfg config.ServerConfig, logger *logrus.Logger) (store.TaskStore, store.SessionStore, func(), error) {
	if cfg.Store.DSN == "" {
		logger.Info("no store DSN configured, using in-memory stores")
		return store.NewInMemoryTaskStore(), store.NewInMemorySessionStore(), nil, nil
	}

	db, err := store.ConnectPostgres(cfg.Store)
	if err != nil {
		return nil, nil, nil, err
	}
	return store.NewPostgresTaskStore(db), store.NewPostgresSessionStore(db), func() { _ = db.Close() }, nil
}

func buildCaches(cfg config.ServerConfig, logrLogger logr.Logger) (orchestrator.Cache[model.ProgressSnapshot], orchestrator.Cache[bool]) {
	if cfg.Redis.Addr == "" {
		return orchestrator.NewMemCache[model.ProgressSnapshot](time.Minute), orchestrator.NewMemCache[bool](10 * time.Minute)
	}
	client := rediscache.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logrLogger)
	return rediscache.NewCache[model.ProgressSnapshot](client, "progress", time.Minute),
		rediscache.NewCache[bool](client, "notify-dedup", 10*time.Minute)
}

func buildObjectStore(cfg config.ServerConfig) (objectstore.Store, error) {
	baseDir := cfg.Notification.FileDeliveryDir + "/objects"
	return objectstore.NewLocal(baseDir, kms.NewLocal(), "deliverables")
}

func buildNotifier(cfg config.ServerConfig, logger *logrus.Logger) *notify.Router {
	router := notify.NewRouter()

	fileSvc, err := delivery.NewFileDeliveryService(cfg.Notification.FileDeliveryDir)
	if err != nil {
		logger.WithError(err).Warn("file delivery fallback unavailable")
	} else {
		router.Register(notify.ChannelFile, delivery.NewFileTransport(fileSvc))
	}

	if cfg.Notification.SlackToken != "" {
		router.Register(notify.ChannelSlack, notify.NewSlackTransport(slack.New(cfg.Notification.SlackToken)))
	}

	return router
}
