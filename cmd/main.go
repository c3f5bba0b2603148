package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"knowledge-capture-platform/internal/ai"
	"knowledge-capture-platform/internal/config"
	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/queue"
	"knowledge-capture-platform/internal/telemetry"
	"knowledge-capture-platform/internal/vectorindex"
	"knowledge-capture-platform/middleware"
	"knowledge-capture-platform/routes"
	"knowledge-capture-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("knowledge-capture-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracer:", err)
		}
		defer shutdown()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Vector index backend
	var index vectorindex.Index
	switch cfg.VectorBackend {
	case "mongo":
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		db := mongoClient.Database(cfg.DBName)
		index = vectorindex.NewMongoIndex(db, cfg.VectorCollection, cfg.VectorIndexName, cfg.VectorDimensions)
	case "memory":
		index = vectorindex.NewMemoryIndex()
		logger.Warn("Using in-memory vector index, entries will not survive restarts")
	}

	// Embedding sidecar
	embedder := ai.NewEmbeddingClient(cfg)
	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if healthy, err := embedder.IsHealthy(healthCtx); err != nil || !healthy {
		logger.Warn("Embedding sidecar not healthy at startup", "url", cfg.EmbedServiceURL, "error", err)
	}
	healthCancel()

	// Completion client
	var completer services.Completer
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		defer geminiClient.Close()
		completer = geminiClient
	} else {
		logger.Warn("GEMINI_API_KEY not set, query responses disabled")
	}

	// Core services
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	keyword := services.NewKeywordIndex(index)
	images := services.NewImageStore(cfg.ImageStorageDir, time.Duration(cfg.ImageDownloadTimeout)*time.Second)
	ingestion := services.NewIngestionService(index, embedder, chunker, keyword, images, metrics)
	retrieval := services.NewRetrievalService(
		index, embedder, keyword, completer, images, chunker, metrics,
		cfg.VectorBackend, cfg.VectorDimensions,
	)

	// Warm the keyword index from existing entries
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := keyword.Rebuild(warmCtx); err != nil {
		logger.Warn("Could not warm keyword index", "error", err)
	}
	warmCancel()

	// Ingestion dispatch: asynq worker queue or in-process goroutines
	var dispatcher services.Dispatcher
	if cfg.IngestQueueEnabled {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer asynqClient.Close()
		dispatcher = &queue.QueueDispatcher{Client: asynqClient}
		logger.Info("Ingestion dispatch via worker queue", "redis", cfg.RedisURL)
	} else {
		dispatcher = &services.GoroutineDispatcher{Service: ingestion}
	}

	// Orphaned image sweep
	cleanup := services.NewCleanupScheduler(index, images)
	if err := cleanup.Start(time.Duration(cfg.CleanupIntervalMinutes) * time.Minute); err != nil {
		logger.Warn("Could not start cleanup scheduler", "error", err)
	}
	defer cleanup.Stop()

	// Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadSize
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.MetricsMiddleware(metrics))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}

	// Rate limiting needs Redis; skip it when Redis is unreachable
	if rdb, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		embedHealthy, _ := embedder.IsHealthy(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"status":            "healthy",
			"timestamp":         time.Now(),
			"embedding_service": embedHealthy,
			"vector_backend":    cfg.VectorBackend,
		})
	})

	// Setup routes
	routes.SetupCaptureRoutes(router, dispatcher, metrics)
	routes.SetupQueryRoutes(router, retrieval, cfg.VectorCollection)
	routes.SetupImageRoutes(router, images)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
