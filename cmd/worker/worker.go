package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-capture-platform/internal/ai"
	"knowledge-capture-platform/internal/config"
	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/queue"
	"knowledge-capture-platform/internal/vectorindex"
	"knowledge-capture-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.VectorBackend != "mongo" {
		log.Fatal("Worker requires VECTOR_BACKEND=mongo; the memory backend is per-process")
	}

	// Connect to MongoDB
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
	index := vectorindex.NewMongoIndex(db, cfg.VectorCollection, cfg.VectorIndexName, cfg.VectorDimensions)

	// Ingestion stack
	embedder := ai.NewEmbeddingClient(cfg)
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	keyword := services.NewKeywordIndex(index)
	images := services.NewImageStore(cfg.ImageStorageDir, time.Duration(cfg.ImageDownloadTimeout)*time.Second)
	ingestion := services.NewIngestionService(index, embedder, chunker, keyword, images, nil)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(ingestion)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.IngestDocument)

	log.Println("Starting ingest worker...")
	log.Printf("   Redis: %s", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatalf("Worker stopped: %v", err)
	}
}
