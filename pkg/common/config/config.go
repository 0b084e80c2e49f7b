package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (queue transport)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka (job lifecycle events)
	KafkaBrokers     []string
	JobEventsTopic   string
	JobFailuresTopic string

	// File storage
	UploadDir string
	ExportDir string

	// Queue policy
	QueueAttempts      int
	QueueBackoffBase   time.Duration
	QueueJobTimeout    time.Duration
	QueueStallInterval time.Duration
	QueueMaxStalls     int
	WorkerConcurrency  int

	// Synonym catalog override
	SynonymCatalogPath string

	// Export retention
	ExportRetention time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "outreachly"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "outreachly123"),
		PostgresDB:       getEnv("POSTGRES_DB", "outreachly"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		JobEventsTopic:   getEnv("JOB_EVENTS_TOPIC", "contact-job-events"),
		JobFailuresTopic: getEnv("JOB_FAILURES_TOPIC", "contact-job-failures"),

		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		ExportDir: getEnv("EXPORT_FILE_DIR", "exports"),

		QueueAttempts:      getIntEnv("QUEUE_ATTEMPTS", 3),
		QueueBackoffBase:   getDuration("QUEUE_BACKOFF_BASE", 5*time.Second),
		QueueJobTimeout:    getDuration("QUEUE_JOB_TIMEOUT", 30*time.Minute),
		QueueStallInterval: getDuration("QUEUE_STALL_INTERVAL", 60*time.Second),
		QueueMaxStalls:     getIntEnv("QUEUE_MAX_STALLS", 2),
		WorkerConcurrency:  getIntEnv("WORKER_CONCURRENCY", 2),

		SynonymCatalogPath: getEnv("SYNONYM_CATALOG_PATH", ""),

		ExportRetention: getDuration("EXPORT_RETENTION", 7*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
