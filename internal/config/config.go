package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendAzure    = "azure"
	BackendS3       = "s3"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Thumbnail ThumbnailConfig
	Storage   StorageConfig
	Azure     AzureConfig
	S3        S3Config
	Supabase  SupabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

// ThumbnailConfig drives the single transform the service performs.
type ThumbnailConfig struct {
	Width       int
	Naming      string
	Resampler   string
	JPEGQuality int
	MaxPixels   int
}

type StorageConfig struct {
	Backend string
}

type AzureConfig struct {
	ConnectionString string
}

type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

type SupabaseConfig struct {
	URL string
	KEY string
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type RabbitMQConfig struct {
	URL     string
	Queue   string
	Workers int

	// MaxRetries bounds redeliveries of a retryable event before it is
	// dead-lettered. RetryDelay is the wait between attempts.
	MaxRetries int
	RetryDelay time.Duration
}

var ErrMissingWidth = errors.New("THUMBNAIL_WIDTH is required")

// Load reads the environment (and an optional .env file) and validates the
// result. Configuration errors are reported here, before any event is handled.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	width, err := getRequiredPositiveInt("THUMBNAIL_WIDTH")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Thumbnail: ThumbnailConfig{
			Width:       width,
			Naming:      strings.ToLower(getEnv("THUMBNAIL_NAMING", "split")),
			Resampler:   strings.ToLower(getEnv("THUMBNAIL_RESAMPLER", "lanczos")),
			JPEGQuality: getEnvAsInt("THUMBNAIL_JPEG_QUALITY", 85),
			MaxPixels:   getEnvAsInt("THUMBNAIL_MAX_PIXELS", 50_000_000),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendAzure)),
		},
		Azure: AzureConfig{
			ConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", os.Getenv("AzureWebJobsStorage")),
		},
		S3: S3Config{
			Region:       getEnv("S3_REGION", ""),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			UsePathStyle: getEnvAsBool("S3_USE_PATH_STYLE", false),
		},
		Supabase: SupabaseConfig{
			URL: getEnv("SUPABASE_URL", ""),
			KEY: getEnv("SUPABASE_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", ""),
			Queue:      getEnv("RABBITMQ_QUEUE", "thumbnail_events"),
			Workers:    getEnvAsInt("QUEUE_WORKERS", 2),
			MaxRetries: getEnvAsInt("QUEUE_MAX_RETRIES", 5),
			RetryDelay: getDuration("QUEUE_RETRY_DELAY", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the env helpers cannot.
func (c *Config) Validate() error {
	if c.Thumbnail.Width <= 0 {
		return fmt.Errorf("THUMBNAIL_WIDTH must be a positive integer, got %d", c.Thumbnail.Width)
	}

	switch c.Thumbnail.Naming {
	case "split", "prefix":
	default:
		return fmt.Errorf("THUMBNAIL_NAMING must be split or prefix, got %q", c.Thumbnail.Naming)
	}

	if c.Thumbnail.JPEGQuality < 1 || c.Thumbnail.JPEGQuality > 100 {
		return fmt.Errorf("THUMBNAIL_JPEG_QUALITY must be between 1 and 100, got %d", c.Thumbnail.JPEGQuality)
	}

	if c.Thumbnail.MaxPixels <= 0 {
		return fmt.Errorf("THUMBNAIL_MAX_PIXELS must be positive, got %d", c.Thumbnail.MaxPixels)
	}

	switch c.Storage.Backend {
	case BackendAzure:
		if c.Azure.ConnectionString == "" {
			return errors.New("azure backend requires AZURE_STORAGE_CONNECTION_STRING or AzureWebJobsStorage")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.KEY == "" {
			return errors.New("supabase backend requires SUPABASE_URL and SUPABASE_KEY")
		}
	case BackendS3, BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.RabbitMQ.URL != "" && c.RabbitMQ.Workers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1, got %d", c.RabbitMQ.Workers)
	}
	if c.RabbitMQ.MaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must not be negative, got %d", c.RabbitMQ.MaxRetries)
	}

	return nil
}

func getRequiredPositiveInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, ErrMissingWidth
	}

	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric: %w", key, err)
	}
	if intVal <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %d", key, intVal)
	}
	return intVal, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
