package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"llm_compare/internal/models"
)

// Settings store backends
const (
	KeyStoreFile     = "file"
	KeyStorePostgres = "postgres"
	KeyStoreRedis    = "redis"
)

// Round history sinks
const (
	HistorySinkNone     = "none"
	HistorySinkFile     = "file"
	HistorySinkPostgres = "postgres"
	HistorySinkS3       = "s3"
)

// Queue backends for the round history pipeline
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config holds configuration for the comparison service.
type Config struct {
	HTTPPort  string
	LogLevel  string
	Local     bool
	JWTSecret []byte

	Admin       AdminConfig
	Settings    SettingsConfig
	Dispatcher  DispatcherConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	History     HistoryConfig
	RoundLogger RoundLoggerConfig
	S3          S3Config
	RateLimit   RateLimitConfig
}

// AdminConfig holds the credentials accepted by the admin login endpoint
type AdminConfig struct {
	PasswordHash     string // argon2id hash of the admin password
	ServiceTokenHash string // argon2id hash of the service token
	ServiceTokenRole string
	TokenTTL         time.Duration
}

// SettingsConfig selects where provider keys and model selections are persisted
type SettingsConfig struct {
	Backend       string
	Dir           string // directory holding .api_keys and .current_models
	EncryptionKey string // base64 AES key, required by the postgres and redis stores
}

// DispatcherConfig holds the fan-out and provider transport settings
type DispatcherConfig struct {
	MaxConcurrency int
	MaxTokens      int
	CatalogTTL     time.Duration
	RequestTimeout time.Duration
	BaseURLs       map[models.ProviderType]string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HistoryConfig holds the round history pipeline settings
type HistoryConfig struct {
	Sinks        []string
	QueueBackend string
	QueueName    string
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Capacity     int
}

type RoundLoggerConfig struct {
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

// S3Config holds configuration for archiving round history to S3
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string // S3-compatible endpoint such as MinIO
	AccessKeyID     string
	SecretAccessKey string
	Instance        string // identifies this replica in object keys
}

// RateLimitConfig holds per-client limits for the HTTP API
type RateLimitConfig struct {
	PerMinute int // 0 disables rate limiting
	Algorithm string

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For header is
	// believed. Empty keys every client on its peer address.
	TrustedProxies []string
}

// HasSink reports whether the named history sink is enabled
func (c *HistoryConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// NeedsRedis reports whether any configured component talks to Redis
func (c *Config) NeedsRedis() bool {
	return c.Settings.Backend == KeyStoreRedis ||
		c.History.QueueBackend == QueueBackendRedis ||
		c.RateLimit.PerMinute > 0
}

// NeedsDatabase reports whether any configured component talks to Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Settings.Backend == KeyStorePostgres || c.History.HasSink(HistorySinkPostgres)
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// baseURLOverrides reads <PROVIDER>_BASE_URL for every provider type
func baseURLOverrides() map[models.ProviderType]string {
	out := make(map[models.ProviderType]string)
	for _, t := range models.AllProviderTypes() {
		if url := os.Getenv(string(t) + "_BASE_URL"); url != "" {
			out[t] = url
		}
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		Local:     getEnvBool("LOCAL", false),
		JWTSecret: []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		Admin: AdminConfig{
			PasswordHash:     getEnvString("ADMIN_PASSWORD_HASH", ""),
			ServiceTokenHash: getEnvString("ADMIN_SERVICE_TOKEN_HASH", ""),
			ServiceTokenRole: getEnvString("ADMIN_SERVICE_TOKEN_ROLE", "viewer"),
			TokenTTL:         getEnvDuration("ADMIN_TOKEN_TTL", 1*time.Hour),
		},
		Settings: SettingsConfig{
			Backend:       strings.ToLower(getEnvString("KEY_STORE", KeyStoreFile)),
			Dir:           getEnvString("SETTINGS_DIR", "."),
			EncryptionKey: getEnvString("ENCRYPTION_KEY", ""),
		},
		Dispatcher: DispatcherConfig{
			MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 0),
			MaxTokens:      getEnvInt("MAX_TOKENS", 1024),
			CatalogTTL:     getEnvDuration("CATALOG_TTL", 0),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
			BaseURLs:       baseURLOverrides(),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		History: HistoryConfig{
			Sinks:        getEnvList("HISTORY_SINK", []string{HistorySinkFile}),
			QueueBackend: strings.ToLower(getEnvString("QUEUE_BACKEND", QueueBackendMemory)),
			QueueName:    getEnvString("HISTORY_QUEUE_NAME", "llm_compare:rounds"),
			BatchSize:    getEnvInt("HISTORY_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("HISTORY_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("HISTORY_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("HISTORY_RETRY_BACKOFF", 1*time.Second),
			Capacity:     getEnvInt("HISTORY_QUEUE_CAPACITY", 0),
		},
		RoundLogger: RoundLoggerConfig{
			FilePathTemplate: getEnvString("ROUND_LOG_FILE_PATH_TEMPLATE", "./logs/rounds-%s.jsonl"),
			MaxSize:          getEnvInt64("ROUND_LOG_MAX_SIZE", 10_485_760),          // default 10 MB
			MaxFiles:         getEnvInt("ROUND_LOG_MAX_FILES", 10),                   // default 10
			BufferSize:       getEnvInt("ROUND_LOG_BUFFER_SIZE", 1000),               // default 1000
			FlushInterval:    getEnvDuration("ROUND_LOG_FLUSH_INTERVAL", time.Second), // default 1 second
		},
		S3: S3Config{
			Bucket:          getEnvString("S3_BUCKET", ""),
			Region:          getEnvString("S3_REGION", "us-east-1"),
			Prefix:          getEnvString("S3_PREFIX", "rounds/"),
			Endpoint:        getEnvString("S3_ENDPOINT", ""),
			AccessKeyID:     getEnvString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnvString("S3_SECRET_ACCESS_KEY", ""),
			Instance:        getEnvString("POD_NAME", "llm-compare-0"),
		},
		RateLimit: RateLimitConfig{
			PerMinute:      getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
			Algorithm:      getEnvString("RATE_LIMIT_ALGORITHM", "sliding_window"),
			TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case KeyStoreFile:
	case KeyStorePostgres, KeyStoreRedis:
		if c.Settings.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required for the %s key store", c.Settings.Backend)
		}
	default:
		return fmt.Errorf("unknown KEY_STORE %q", c.Settings.Backend)
	}

	switch c.History.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.History.QueueBackend)
	}

	for _, sink := range c.History.Sinks {
		switch sink {
		case HistorySinkNone, HistorySinkFile, HistorySinkPostgres:
		case HistorySinkS3:
			if c.S3.Bucket == "" {
				return fmt.Errorf("S3_BUCKET is required for the s3 history sink")
			}
		default:
			return fmt.Errorf("unknown HISTORY_SINK %q", sink)
		}
	}

	if c.NeedsDatabase() && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Dispatcher.MaxConcurrency < 0 {
		return fmt.Errorf("MAX_CONCURRENCY must not be negative")
	}
	for _, entry := range c.RateLimit.TrustedProxies {
		if _, _, err := net.ParseCIDR(entry); err != nil && net.ParseIP(entry) == nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", entry)
		}
	}
	return nil
}
