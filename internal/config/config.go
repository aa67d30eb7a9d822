package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort   string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	RedisURL     string
	JWTSecret    string
	Environment  string
	LogLevel     string
	LogPretty    bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// AllowedOrigins is used by CORS; comma separated in ALLOWED_ORIGINS.
	AllowedOrigins []string

	// Object storage (Cloudflare R2 or any S3-compatible endpoint)
	StorageEndpoint  string
	StorageRegion    string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string
	UploadURLTTL     time.Duration

	// Per-user message send limit
	SendRatePerMinute int
	SendBurst         int

	NameCacheTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars take precedence.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "partsmarket"),
		DBPassword:   getEnv("DB_PASSWORD", "partsmarket_dev_password"),
		DBName:       getEnv("DB_NAME", "partsmarket"),
		RedisURL:     getEnv("REDIS_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		Environment:  strings.ToLower(getEnv("ENV", "development")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getBool("LOG_PRETTY", false),
		ReadTimeout:  getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),

		AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		StorageEndpoint:  getEnv("R2_ENDPOINT", ""),
		StorageRegion:    getEnv("R2_REGION", "auto"),
		StorageBucket:    getEnv("R2_BUCKET_NAME", "partsmarket"),
		StorageAccessKey: getEnv("R2_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		UploadURLTTL:     getDuration("UPLOAD_URL_TTL", 5*time.Minute),

		SendRatePerMinute: getInt("SEND_RATE_PER_MINUTE", 60),
		SendBurst:         getInt("SEND_BURST", 10),

		NameCacheTTL: getDuration("NAME_CACHE_TTL", 10*time.Minute),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StorageEnabled reports whether object storage credentials are configured.
func (c *Config) StorageEnabled() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
