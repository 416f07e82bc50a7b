// Command orchestrator wires every component and serves the REST surface,
// grounded on orchestrator-svc/app/main.py's dependency construction order
// and the teacher's cmd/api/main.go graceful-startup/shutdown shape.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aihub/orchestrator/internal/agentexec"
	"github.com/aihub/orchestrator/internal/config"
	"github.com/aihub/orchestrator/internal/contextstore"
	"github.com/aihub/orchestrator/internal/eventbus"
	"github.com/aihub/orchestrator/internal/hub"
	"github.com/aihub/orchestrator/internal/journey"
	"github.com/aihub/orchestrator/internal/metrics"
	"github.com/aihub/orchestrator/internal/registry"
	"github.com/aihub/orchestrator/internal/tenantctx"
	"github.com/aihub/orchestrator/internal/tools"
	"github.com/aihub/orchestrator/internal/transport"
)

func main() {
	cfg := config.Get()

	redisStore := contextstore.NewRedisStore(cfg.Hub.Namespace, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctxManager := contextstore.NewManager(redisStore, cfg.Hub.Namespace)
	defer ctxManager.Close()

	kafkaProducer := eventbus.NewKafkaProducer(cfg.Kafka.Brokers)
	defer kafkaProducer.Close()

	bus := eventbus.NewBus(kafkaProducer, ctxManager, cfg.Hub.KafkaAgentTopic, cfg.Hub.KafkaHubSuffix, cfg.Hub.ReplayStream)

	registryClient := registry.NewClient(cfg.Hub.RegistryURL, cfg.Hub.RegistryAPIKey, ctxManager)
	registryCache := registry.NewCache(registryClient, time.Duration(cfg.Hub.CacheRefreshSec)*time.Second)

	tenantService := tenantctx.NewService(ctxManager, registryClient, time.Duration(cfg.Hub.DefaultContextTTL)*time.Second)

	metricsCollector := metrics.NewCollector()
	executor := agentexec.New(registryCache, tenantService, bus, metricsCollector)
	router := hub.NewRouter(registryCache, bus, ctxManager, executor, metricsCollector)

	caseTool := tools.NewCaseManagementTool(cfg.Integrations.BackendBaseURL, cfg.Integrations.ToolTimeoutSec)
	travelTool := tools.NewTravelSearchTool(cfg.Integrations.AmadeusBaseURL, cfg.Integrations.ToolTimeoutSec)

	var storageTool *tools.StorageTool
	st, err := tools.NewStorageTool(context.Background(), cfg.Integrations.S3Endpoint, cfg.Integrations.S3Bucket, time.Hour)
	if err != nil {
		slog.Warn("orchestrator: storage tool unavailable, documents step will skip upload", "error", err)
	} else {
		storageTool = st
	}

	journeyDeps := &journey.Dependencies{
		Checkpoints: ctxManager,
		Bus:         bus,
		CaseTool:    caseTool,
		TravelTool:  travelTool,
		StorageTool: storageTool,
		Disclaimer:  cfg.Workflow.NonDiagnosticDisclaimer,
	}
	engine := journey.NewEngine(journeyDeps)

	srv := &transport.Server{
		Registry: registryCache,
		Router:   router,
		Engine:   engine,
		Executor: executor,
		Context:  ctxManager,
		Metrics:  metricsCollector,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("orchestrator: shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("orchestrator: shutdown error", "error", err)
		}
	}()

	slog.Info("orchestrator starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("orchestrator: server failed: %v", err)
	}
	slog.Info("orchestrator stopped")
}
