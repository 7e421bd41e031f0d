package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the AudioLevel control plane.
type Config struct {
	Port string
	Host string

	RedisURL string

	UploadDir string
	OutputDir string

	MaxFileSize           int64
	FileRetentionMinutes  int
	MaxConcurrentJobs     int
	ProcessingTimeoutMS   int
	FinalEncodeTimeoutMS  int
	MeanProcessingSeconds int

	LogLevel    string
	CORSOrigins []string

	QualityModelBin     string
	QualityModelWeights string

	RateLimitWindowMS int
	RateLimitMax      int

	DiskHeadroomBytes int64
	DiskOverheadRatio float64
}

// Load loads configuration from environment variables and a .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		UploadDir: getEnv("UPLOAD_DIR", "data/uploads"),
		OutputDir: getEnv("OUTPUT_DIR", "data/output"),

		MaxFileSize:           getEnvAsInt64("MAX_FILE_SIZE", 100*1024*1024),
		FileRetentionMinutes:  getEnvAsInt("FILE_RETENTION_MINUTES", 15),
		MaxConcurrentJobs:     getEnvAsInt("MAX_CONCURRENT_JOBS", 0),
		ProcessingTimeoutMS:   getEnvAsInt("PROCESSING_TIMEOUT_MS", 5*60*1000),
		FinalEncodeTimeoutMS:  getEnvAsInt("FINAL_ENCODE_TIMEOUT_MS", 60*60*1000),
		MeanProcessingSeconds: getEnvAsInt("MEAN_PROCESSING_SECONDS", 60),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		QualityModelBin:     getEnv("QUALITY_MODEL_BIN", ""),
		QualityModelWeights: getEnv("QUALITY_MODEL_WEIGHTS", ""),

		RateLimitWindowMS: getEnvAsInt("RATE_LIMIT_WINDOW_MS", 15*60*1000),
		RateLimitMax:      getEnvAsInt("RATE_LIMIT_MAX", 10),

		DiskHeadroomBytes: getEnvAsInt64("DISK_HEADROOM_BYTES", 512*1024*1024),
		DiskOverheadRatio: getEnvAsFloat("DISK_OVERHEAD_RATIO", 3.0),
	}
}

// ProcessingTimeout returns the candidate-execution deadline as a duration.
func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMS) * time.Millisecond
}

// FinalEncodeTimeout returns the final-encode deadline as a duration.
func (c *Config) FinalEncodeTimeout() time.Duration {
	return time.Duration(c.FinalEncodeTimeoutMS) * time.Millisecond
}

// RetentionDuration returns the janitor retention window as a duration.
func (c *Config) RetentionDuration() time.Duration {
	return time.Duration(c.FileRetentionMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
