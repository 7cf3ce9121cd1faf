package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Screenshot ScreenshotConfig
	AI         AIConfig
	Credits    CreditsConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	JWTSecret   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects the durable object store. Backend is one of s3, minio, memory.
type StorageConfig struct {
	Backend    string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	PublicBase string
}

// ScreenshotConfig selects the capture provider. Provider is one of chrome, http, placeholder;
// an empty provider resolves to placeholder.
type ScreenshotConfig struct {
	Provider    string
	APIURL      string
	APIKey      string
	ChromePath  string
	Timeout     time.Duration
	Concurrency int
}

type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

type CreditsConfig struct {
	LowBalanceThreshold int64
	AnalysisCost        int64
	PrivilegedRoles     []string
	CacheTTL            time.Duration
}

type RateLimitConfig struct {
	SendLimit  int
	SendWindow time.Duration
}

// LoadConfig loads configuration from the environment, reading a .env file first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "designlens"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", "memory"),
			Region:     getEnv("S3_REGION", "us-east-1"),
			Bucket:     getEnv("S3_BUCKET", "designlens"),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			UseSSL:     getEnvAsBool("S3_USE_SSL", true),
			PublicBase: strings.TrimRight(getEnv("S3_PUBLIC_BASE", ""), "/"),
		},
		Screenshot: ScreenshotConfig{
			Provider:    getEnv("SCREENSHOT_PROVIDER", ""),
			APIURL:      getEnv("SCREENSHOT_API_URL", ""),
			APIKey:      getEnv("SCREENSHOT_API_KEY", ""),
			ChromePath:  getEnv("CHROME_PATH", ""),
			Timeout:     getEnvAsDuration("CAPTURE_TIMEOUT", 30*time.Second),
			Concurrency: getEnvAsInt("CAPTURE_CONCURRENCY", 4),
		},
		AI: AIConfig{
			Provider:    getEnv("AI_PROVIDER", "mock"),
			APIKey:      getEnv("AI_API_KEY", ""),
			BaseURL:     getEnv("AI_BASE_URL", ""),
			Model:       getEnv("AI_MODEL", ""),
			Temperature: getEnvAsFloat("AI_TEMPERATURE", 0.4),
			MaxTokens:   getEnvAsInt("AI_MAX_TOKENS", 4096),
		},
		Credits: CreditsConfig{
			LowBalanceThreshold: int64(getEnvAsInt("CREDITS_LOW_THRESHOLD", 5)),
			AnalysisCost:        int64(getEnvAsInt("CREDITS_ANALYSIS_COST", 1)),
			PrivilegedRoles:     getEnvAsList("CREDITS_PRIVILEGED_ROLES", []string{"admin", "superadmin"}),
			CacheTTL:            getEnvAsDuration("CREDITS_CACHE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			SendLimit:  getEnvAsInt("RATELIMIT_SEND_LIMIT", 10),
			SendWindow: getEnvAsDuration("RATELIMIT_SEND_WINDOW", time.Minute),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name +
		"?sslmode=" + d.SSLMode + "&pool_max_conns=" + strconv.Itoa(d.MaxConns)
}
