package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Application base URL (for download links)
	BaseURL string

	// Layout configuration
	MaxImageHeightMM float64       // Cap on rendered defect photo height, in millimetres
	ProbeTimeout     time.Duration // Per-image dimension probe timeout

	// Upload limits
	MaxUploadBytes int64 // Cap on one multipart report submission

	// Rate limiting for report generation
	GenerateRateLimit  int
	GenerateRateWindow time.Duration

	// Storage Configuration
	StorageProvider string // "local" or "s3"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// S3-compatible Storage (production)
	S3Endpoint        string // Empty for AWS S3; set for R2/MinIO
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3Region          string
	S3PublicURL       string // Optional custom domain URL

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Layout defaults
		MaxImageHeightMM: getEnvFloat("MAX_IMAGE_HEIGHT_MM", 80),
		ProbeTimeout:     getEnvDuration("IMAGE_PROBE_TIMEOUT", 5*time.Second),

		// Upload limit defaults to 64 MB (photos dominate the payload)
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),

		// Rate limit defaults: 30 generations per 10 minutes per IP
		GenerateRateLimit:  getEnvInt("GENERATE_RATE_LIMIT", 30),
		GenerateRateWindow: getEnvDuration("GENERATE_RATE_WINDOW", 10*time.Minute),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// S3 configuration (production only)
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:      getEnv("S3_BUCKET_NAME", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Validate layout configuration
	if cfg.MaxImageHeightMM <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_HEIGHT_MM must be positive, got: %v", cfg.MaxImageHeightMM)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got: %d", cfg.MaxUploadBytes)
	}

	// Validate storage configuration
	if cfg.StorageProvider == "s3" {
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
