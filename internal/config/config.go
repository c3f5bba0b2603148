package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// MongoDB (vector index backend)
	MongoURI         string
	DBName           string
	VectorBackend    string // "mongo" (default) or "memory"
	VectorCollection string
	VectorIndexName  string
	VectorDimensions int

	// Redis Configuration (asynq transport + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embedding sidecar service
	EmbedServiceURL string
	EmbedTimeout    int // seconds

	// Completion (answer synthesis)
	GeminiAPIKey string
	GeminiModel  string

	// Chunking
	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	// Image handling
	ImageStorageDir      string
	ImageDownloadTimeout int // seconds
	MaxUploadSize        int64

	// Ingestion scheduling
	IngestQueueEnabled bool

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Observability
	TracingEnabled bool
	OTLPEndpoint   string

	// Maintenance
	CleanupIntervalMinutes int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_capture"),
		DBName:           getEnv("DB_NAME", "knowledge_capture"),
		VectorBackend:    getEnv("VECTOR_BACKEND", "mongo"),
		VectorCollection: getEnv("VECTOR_COLLECTION", "index_entries"),
		VectorIndexName:  getEnv("VECTOR_INDEX_NAME", "index_entries_vector"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 1152),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EmbedServiceURL: getEnv("EMBED_SERVICE_URL", "http://localhost:8001"),
		EmbedTimeout:    getEnvInt("EMBED_TIMEOUT", 120),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 150),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		ImageStorageDir:      getEnv("IMAGE_STORAGE_DIR", "./storage/images"),
		ImageDownloadTimeout: getEnvInt("IMAGE_DOWNLOAD_TIMEOUT", 30),
		MaxUploadSize:        getEnvInt64("MAX_UPLOAD_SIZE", 20971520), // 20MB multipart limit

		IngestQueueEnabled: getEnvBool("INGEST_QUEUE_ENABLED", false),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),

		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
	}

	// Validate chunking parameters early; bad values break the splitter
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}

	switch cfg.VectorBackend {
	case "mongo", "memory":
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND: %s", cfg.VectorBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
