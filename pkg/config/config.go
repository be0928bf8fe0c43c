package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Folio sequence backends.
const (
	SequenceBackendPostgres = "postgres"
	SequenceBackendRedis    = "redis"
	SequenceBackendCount    = "count"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Certificates CertificatesConfig
	Rendering    RenderingConfig
	Documents    DocumentsConfig
	Verification VerificationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CertificatesConfig governs folio minting and issuance side effects.
type CertificatesConfig struct {
	AppBaseURL         string
	DefaultPrefix      string
	SequenceBackend    string
	ReservationTimeout time.Duration
	ReservationRetries int
	ArchiveOnIssue     bool
}

// RenderingConfig tunes the PDF rendering engine.
type RenderingConfig struct {
	AssetsDir    string
	LogoPath     string
	AssetTimeout time.Duration
	Compress     bool
}

// DocumentsConfig controls archived certificate documents and their download links.
type DocumentsConfig struct {
	StorageDir        string
	DownloadBaseURL   string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// VerificationConfig governs caching of public verification lookups.
type VerificationConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	retries := v.GetInt("FOLIO_RESERVATION_RETRIES")
	if retries < 0 {
		retries = 0
	}
	cfg.Certificates = CertificatesConfig{
		AppBaseURL:         strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		DefaultPrefix:      strings.ToLower(strings.TrimSpace(v.GetString("FOLIO_DEFAULT_PREFIX"))),
		SequenceBackend:    normalizeBackend(v.GetString("FOLIO_SEQUENCE_BACKEND")),
		ReservationTimeout: parseDuration(v.GetString("FOLIO_RESERVATION_TIMEOUT"), 5*time.Second),
		ReservationRetries: retries,
		ArchiveOnIssue:     v.GetBool("ARCHIVE_ON_ISSUE"),
	}

	cfg.Rendering = RenderingConfig{
		AssetsDir:    v.GetString("RENDER_ASSETS_DIR"),
		LogoPath:     v.GetString("RENDER_LOGO_PATH"),
		AssetTimeout: parseDuration(v.GetString("RENDER_ASSET_TIMEOUT"), 5*time.Second),
		Compress:     v.GetBool("RENDER_COMPRESS"),
	}

	cfg.Documents = DocumentsConfig{
		StorageDir:        v.GetString("DOCUMENTS_STORAGE_DIR"),
		DownloadBaseURL:   strings.TrimRight(v.GetString("DOCUMENTS_DOWNLOAD_BASE_URL"), "/"),
		SignedURLSecret:   v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("DOCUMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("DOCUMENTS_WORKER_RETRIES"),
	}

	cfg.Verification = VerificationConfig{
		CacheEnabled: v.GetBool("VERIFY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("VERIFY_CACHE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sigce")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APP_BASE_URL", "https://sigce.app")
	v.SetDefault("FOLIO_DEFAULT_PREFIX", "sigce")
	v.SetDefault("FOLIO_SEQUENCE_BACKEND", SequenceBackendPostgres)
	v.SetDefault("FOLIO_RESERVATION_TIMEOUT", "5s")
	v.SetDefault("FOLIO_RESERVATION_RETRIES", 3)
	v.SetDefault("ARCHIVE_ON_ISSUE", false)

	v.SetDefault("RENDER_ASSETS_DIR", "./assets")
	v.SetDefault("RENDER_LOGO_PATH", "logo.jpeg")
	v.SetDefault("RENDER_ASSET_TIMEOUT", "5s")
	v.SetDefault("RENDER_COMPRESS", true)

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")
	v.SetDefault("DOCUMENTS_DOWNLOAD_BASE_URL", "http://localhost:8080/api/v1/documents")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("DOCUMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("DOCUMENTS_WORKER_RETRIES", 3)

	v.SetDefault("VERIFY_CACHE_ENABLED", false)
	v.SetDefault("VERIFY_CACHE_TTL", "10m")
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SequenceBackendRedis:
		return SequenceBackendRedis
	case SequenceBackendCount:
		return SequenceBackendCount
	default:
		return SequenceBackendPostgres
	}
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
