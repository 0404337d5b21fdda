package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/appcuatri/backend/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Firebase      FirebaseConfig
	Uploads       UploadConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds Redis settings for the distributed rate limiter
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int

	// Rate limiting for the auth endpoints
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// AuthConfig holds session token and password settings
type AuthConfig struct {
	JWTSecret     string
	TokenLifetime time.Duration
	BcryptCost    int
}

// FirebaseConfig holds federated login and push notification settings
type FirebaseConfig struct {
	// ProjectID enables Firebase ID token verification when set
	ProjectID string

	// FCMCredentialsFile is a service account JSON key used to mint
	// OAuth2 tokens for the FCM v1 API
	FCMCredentialsFile string
}

// UploadConfig holds file upload settings
type UploadConfig struct {
	Backend     string // "filesystem" or "s3"
	Directory   string
	PublicPath  string
	MaxFileSize int64
	MaxFiles    int

	// S3 backend
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Firebase:      loadFirebaseConfig(),
		Uploads:       loadUploadConfig(),
		CORS:          loadCORSConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CUATRI_HOST", "0.0.0.0"),
		Port:            getEnv("CUATRI_PORT", "3000"),
		ReadTimeout:     getEnvDuration("CUATRI_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CUATRI_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CUATRI_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CUATRI_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CUATRI_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    getEnvInt("CUATRI_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("CUATRI_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("CUATRI_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("CUATRI_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:               getEnv("CUATRI_REDIS_URL", ""),
		Password:          getEnv("CUATRI_REDIS_PASSWORD", ""),
		DB:                getEnvInt("CUATRI_REDIS_DB", 0),
		PoolSize:          getEnvInt("CUATRI_REDIS_POOL_SIZE", 10),
		RateLimitEnabled:  getEnvBool("CUATRI_RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getEnvInt("CUATRI_RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getEnvDuration("CUATRI_RATE_LIMIT_WINDOW", time.Minute),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenLifetime: getEnvDuration("CUATRI_TOKEN_LIFETIME", 7*24*time.Hour),
		BcryptCost:    getEnvInt("CUATRI_BCRYPT_COST", 10),
	}
}

func loadFirebaseConfig() FirebaseConfig {
	return FirebaseConfig{
		ProjectID:          getEnv("FIREBASE_PROJECT_ID", ""),
		FCMCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
	}
}

func loadUploadConfig() UploadConfig {
	return UploadConfig{
		Backend:        getEnv("CUATRI_UPLOAD_BACKEND", "filesystem"),
		Directory:      getEnv("CUATRI_UPLOAD_DIR", "./uploads"),
		PublicPath:     getEnv("CUATRI_UPLOAD_PUBLIC_PATH", "/uploads"),
		MaxFileSize:    getEnvInt64("CUATRI_UPLOAD_MAX_FILE_SIZE", 5*1024*1024),
		MaxFiles:       getEnvInt("CUATRI_UPLOAD_MAX_FILES", 5),
		S3Endpoint:     getEnv("CUATRI_S3_ENDPOINT", ""),
		S3Region:       getEnv("CUATRI_S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("CUATRI_S3_BUCKET", ""),
		S3AccessKey:    getEnv("CUATRI_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("CUATRI_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("CUATRI_S3_USE_PATH_STYLE", false),
	}
}

func loadCORSConfig() CORSConfig {
	origins := getEnv("CORS_ORIGIN", "*")
	parts := strings.Split(origins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return CORSConfig{AllowedOrigins: cleaned}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("CUATRI_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CUATRI_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CUATRI_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CUATRI_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CUATRI_OTEL_SERVICE_NAME", "cuatri-backend"),
		OTelServiceVersion: getEnv("CUATRI_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CUATRI_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}

	switch c.Uploads.Backend {
	case "filesystem":
		if c.Uploads.Directory == "" {
			return fmt.Errorf("upload directory is required for filesystem uploads")
		}
	case "s3":
		if c.Uploads.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 uploads")
		}
		if c.Uploads.S3Region == "" {
			return fmt.Errorf("S3 region is required for s3 uploads")
		}
	default:
		return fmt.Errorf("invalid upload backend: %s (must be filesystem or s3)", c.Uploads.Backend)
	}

	if c.Redis.RateLimitEnabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when rate limiting is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
