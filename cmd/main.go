package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asterlab/mission-gateway/internal/app"
	"github.com/asterlab/mission-gateway/internal/clients/ci"
	"github.com/asterlab/mission-gateway/internal/clients/compute"
	"github.com/asterlab/mission-gateway/internal/clients/cwl"
	"github.com/asterlab/mission-gateway/internal/data/db"
	"github.com/asterlab/mission-gateway/internal/data/repos"
	gatewayhttp "github.com/asterlab/mission-gateway/internal/http"
	"github.com/asterlab/mission-gateway/internal/http/handlers"
	"github.com/asterlab/mission-gateway/internal/http/middleware"
	"github.com/asterlab/mission-gateway/internal/observability"
	"github.com/asterlab/mission-gateway/internal/platform/envutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
	"github.com/asterlab/mission-gateway/internal/services"
)

const serviceName = "mission-gateway"

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	otelStop := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: envutil.GetEnv("ENVIRONMENT", "development", log),
		Version:     envutil.GetEnv("SERVICE_VERSION", "", log),
	})

	cfg := app.LoadConfig(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	processRepo := repos.NewProcessRepo(thePG, log)
	deploymentRepo := repos.NewDeploymentRepo(thePG, log)
	buildRepo := repos.NewBuildRepo(thePG, log)
	submissionRepo := repos.NewSubmissionRepo(thePG, log)
	queueRepo := repos.NewQueueRepo(thePG, log)

	// Upstream clients
	ciDriver, err := ci.NewDriver(log, cfg.CI)
	if err != nil {
		log.Error("Could not init CI driver", "error", err)
		os.Exit(1)
	}
	backend, err := compute.NewClient(log, cfg.Backend)
	if err != nil {
		log.Error("Could not init compute backend client", "error", err)
		os.Exit(1)
	}
	docReader := cwl.NewReader(log, cfg.CI.Timeout)

	// Services
	catalogService := services.NewCatalogService(thePG, log, processRepo)
	inputService := services.NewInputService(log)
	admissionService := services.NewAdmissionService(log, queueRepo, backend)
	deploymentService := services.NewDeploymentService(thePG, log, deploymentRepo, catalogService, docReader, ciDriver, cfg.ExecutionVenue)
	buildService := services.NewBuildService(thePG, log, buildRepo, ciDriver, cfg.ExecutionVenue)
	jobService := services.NewJobService(thePG, log, submissionRepo, catalogService, admissionService, inputService, backend)

	// Handlers
	processHandler := handlers.NewProcessHandler(log, catalogService, deploymentService, jobService)
	deploymentHandler := handlers.NewDeploymentHandler(log, deploymentService, buildService)
	buildHandler := handlers.NewBuildHandler(log, buildService)
	jobHandler := handlers.NewJobHandler(log, jobService)
	healthHandler := handlers.NewHealthHandler()

	authMiddleware := middleware.NewAuthMiddleware(log, cfg.JWTSecretKey)

	server := gatewayhttp.NewServer(gatewayhttp.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSOrigins,
		WebhookSecret:     cfg.WebhookSecret,
		AuthMiddleware:    authMiddleware,
		ProcessHandler:    processHandler,
		DeploymentHandler: deploymentHandler,
		BuildHandler:      buildHandler,
		JobHandler:        jobHandler,
		HealthHandler:     healthHandler,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "port", cfg.Port)
		errCh <- server.Run(":" + cfg.Port)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", "error", err)
		}
	case sig := <-stop:
		log.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Shutdown did not finish cleanly", "error", err)
		}
	}

	if otelStop != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelStop(flushCtx)
	}
}
