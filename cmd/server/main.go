package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"llm-engine-service/internal/adapters/primary/http/handlers"
	"llm-engine-service/internal/adapters/primary/http/middleware"
	"llm-engine-service/internal/adapters/primary/worker"
	"llm-engine-service/internal/adapters/secondary/catalog"
	"llm-engine-service/internal/adapters/secondary/dataset"
	"llm-engine-service/internal/adapters/secondary/inference"
	"llm-engine-service/internal/adapters/secondary/kubernetes"
	"llm-engine-service/internal/adapters/secondary/postgres"
	"llm-engine-service/internal/adapters/secondary/queue"
	"llm-engine-service/internal/config"
	"llm-engine-service/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/dynamic"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create database pool
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("parse db config: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalf("create db pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate db: %v", err)
		}
	}

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports - Repositories)
	fineTuneRepo := postgres.NewFineTuneRepository(pool)
	endpointRepo := postgres.NewModelEndpointRepository(pool)

	// Kubernetes Client (Optional - based on config)
	var k8sClient dynamic.Interface
	if cfg.Kubernetes.Enabled {
		client, err := kubernetes.NewDynamicClient(&cfg.Kubernetes)
		if err != nil {
			log.Warnf("Kubernetes client init failed (continuing without K8s integration): %v", err)
		} else {
			k8sClient = client
			log.Info("Kubernetes client initialized")
		}
	} else {
		log.Info("Kubernetes integration disabled")
	}

	training := kubernetes.NewTrainingOrchestrator(k8sClient, kubernetes.TrainingOptions{
		Namespace:        cfg.Kubernetes.TrainingNS,
		ServiceAccount:   cfg.Kubernetes.ServiceAccount,
		TTLAfterFinished: cfg.Kubernetes.TTLAfterFinished,
	})
	serving := kubernetes.NewServingOrchestrator(k8sClient, kubernetes.ServingOptions{
		Namespace: cfg.Kubernetes.ServingNS,
		TGIImage:  cfg.Kubernetes.TGIImage,
	})

	models, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("load base model catalog: %v", err)
	}

	jobQueue, err := queue.New(ctx, cfg)
	if err != nil {
		log.Fatalf("create %s queue: %v", cfg.Queue.Backend, err)
	}
	defer jobQueue.Close()
	log.WithField("backend", cfg.Queue.Backend).Info("fine-tune queue ready")

	datasets := dataset.NewValidator(dataset.Options{
		Timeout:  cfg.Dataset.Timeout,
		RetryMax: cfg.Dataset.RetryMax,
		MaxBytes: cfg.Dataset.MaxBytes,
	})
	inferenceClient := inference.NewClient(cfg.Inference.Timeout)

	// Core Services (Application Layer)
	endpointSvc := services.NewModelEndpointService(endpointRepo, models, serving)
	fineTuneSvc := services.NewFineTuneService(fineTuneRepo, models, datasets, jobQueue, training, endpointSvc, services.FineTuneOptions{
		MaxLaunchAttempts: cfg.Worker.MaxLaunchAttempts,
		OutputPrefix:      cfg.Worker.OutputPrefix,
	})
	completionSvc := services.NewCompletionService(endpointSvc, inferenceClient)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(fineTuneSvc, endpointSvc, completionSvc)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

	api := router.Group("/v1/llm")
	h.RegisterRoutes(api)

	// Health check with DB ping
	router.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Worker.Enabled {
		launcher := worker.NewLauncher(jobQueue, fineTuneSvc, worker.LauncherOptions{
			Concurrency:  cfg.Worker.Concurrency,
			RetryBackoff: cfg.Worker.RetryBackoff,
		})
		reconciler := worker.NewReconciler(fineTuneSvc, worker.ReconcilerOptions{
			Interval:     cfg.Worker.SyncInterval,
			RequeueAfter: cfg.Worker.RequeueAfter,
		})

		g.Go(func() error { return launcher.Run(gctx) })
		g.Go(func() error { return reconciler.Run(gctx) })
	} else {
		log.Info("launcher and reconciler disabled")
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
