package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	S3     S3Config
	FBR    FBRConfig
	Batch  BatchConfig
	Email  EmailConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings. AllowedOrigins lists the browser
// origins permitted by CORS; empty disables cross-origin access.
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings for submission leases.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds bearer-token verification settings. Tokens are issued by
// an external identity service; this service only validates them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for archiving uploaded batch files.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// FBRConfig holds tax authority endpoints and submission retry policy.
type FBRConfig struct {
	SandboxURL     string        `mapstructure:"sandbox_url"`
	ProductionURL  string        `mapstructure:"production_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
}

// BatchConfig holds bulk processing settings.
type BatchConfig struct {
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	MaxRows        int           `mapstructure:"max_rows"`
}

// EmailConfig holds operator alert delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the FBRGATE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FBRGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{})

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "fbrgate")
	v.SetDefault("db.password", "fbrgate_secret")
	v.SetDefault("db.name", "fbrgate_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "fbrgate")

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.bucket", "fbrgate-batch-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 20)
	v.SetDefault("s3.presign_expiry", 3600)

	// FBR defaults
	v.SetDefault("fbr.sandbox_url", "https://gw.fbr.gov.pk/di_data/v1/di/postinvoicedata_sb")
	v.SetDefault("fbr.production_url", "https://gw.fbr.gov.pk/di_data/v1/di/postinvoicedata")
	v.SetDefault("fbr.timeout", "30s")
	v.SetDefault("fbr.max_attempts", 5)
	v.SetDefault("fbr.backoff_initial", "500ms")
	v.SetDefault("fbr.backoff_max", "30s")
	v.SetDefault("fbr.lease_ttl", "60s")

	// Batch defaults
	v.SetDefault("batch.worker_pool_size", 8)
	v.SetDefault("batch.sweep_interval", "5m")
	v.SetDefault("batch.max_rows", 10000)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "alerts@fbrgate.pk")
	v.SetDefault("email.from_name", "FBRGate")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":            "FBRGATE_SERVER_PORT",
		"server.read_timeout":    "FBRGATE_SERVER_READ_TIMEOUT",
		"server.write_timeout":   "FBRGATE_SERVER_WRITE_TIMEOUT",
		"server.environment":     "FBRGATE_SERVER_ENVIRONMENT",
		"server.allowed_origins": "FBRGATE_SERVER_ALLOWED_ORIGINS",
		"db.host":                "FBRGATE_DB_HOST",
		"db.port":                "FBRGATE_DB_PORT",
		"db.user":                "FBRGATE_DB_USER",
		"db.password":            "FBRGATE_DB_PASSWORD",
		"db.name":                "FBRGATE_DB_NAME",
		"db.sslmode":             "FBRGATE_DB_SSLMODE",
		"db.max_open":            "FBRGATE_DB_MAX_OPEN",
		"db.max_idle":            "FBRGATE_DB_MAX_IDLE",
		"redis.addr":             "FBRGATE_REDIS_ADDR",
		"redis.password":         "FBRGATE_REDIS_PASSWORD",
		"redis.db":               "FBRGATE_REDIS_DB",
		"jwt.secret":             "FBRGATE_JWT_SECRET",
		"jwt.issuer":             "FBRGATE_JWT_ISSUER",
		"s3.region":              "FBRGATE_S3_REGION",
		"s3.bucket":              "FBRGATE_S3_BUCKET",
		"s3.endpoint":            "FBRGATE_S3_ENDPOINT",
		"s3.max_file_size_mb":    "FBRGATE_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":      "FBRGATE_S3_PRESIGN_EXPIRY",
		"fbr.sandbox_url":        "FBRGATE_FBR_SANDBOX_URL",
		"fbr.production_url":     "FBRGATE_FBR_PRODUCTION_URL",
		"fbr.timeout":            "FBRGATE_FBR_TIMEOUT",
		"fbr.max_attempts":       "FBRGATE_FBR_MAX_ATTEMPTS",
		"fbr.backoff_initial":    "FBRGATE_FBR_BACKOFF_INITIAL",
		"fbr.backoff_max":        "FBRGATE_FBR_BACKOFF_MAX",
		"fbr.lease_ttl":          "FBRGATE_FBR_LEASE_TTL",
		"batch.worker_pool_size": "FBRGATE_BATCH_WORKER_POOL_SIZE",
		"batch.sweep_interval":   "FBRGATE_BATCH_SWEEP_INTERVAL",
		"batch.max_rows":         "FBRGATE_BATCH_MAX_ROWS",
		"email.provider":         "FBRGATE_EMAIL_PROVIDER",
		"email.region":           "FBRGATE_EMAIL_REGION",
		"email.from_address":     "FBRGATE_EMAIL_FROM_ADDRESS",
		"email.from_name":        "FBRGATE_EMAIL_FROM_NAME",
		"log.level":              "FBRGATE_LOG_LEVEL",
		"log.format":             "FBRGATE_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if FBRGATE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("FBRGATE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.FBR = FBRConfig{
		SandboxURL:     v.GetString("fbr.sandbox_url"),
		ProductionURL:  v.GetString("fbr.production_url"),
		Timeout:        v.GetDuration("fbr.timeout"),
		MaxAttempts:    v.GetInt("fbr.max_attempts"),
		BackoffInitial: v.GetDuration("fbr.backoff_initial"),
		BackoffMax:     v.GetDuration("fbr.backoff_max"),
		LeaseTTL:       v.GetDuration("fbr.lease_ttl"),
	}
	cfg.Batch = BatchConfig{
		WorkerPoolSize: v.GetInt("batch.worker_pool_size"),
		SweepInterval:  v.GetDuration("batch.sweep_interval"),
		MaxRows:        v.GetInt("batch.max_rows"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}
