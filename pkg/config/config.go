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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Provider   ProviderConfig
	Extraction ExtractionConfig
	Imports    ImportsConfig
	Exports    ExportsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ProviderConfig connects the service to the external identity provider.
type ProviderConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
	CacheTTL         time.Duration
}

// ExtractionConfig points at the text-to-roster extraction collaborator.
type ExtractionConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// ImportsConfig bounds bulk import payloads.
type ImportsConfig struct {
	MaxRows          int
	SpreadsheetSheet string
}

// ExportsConfig controls background roster exports and their download
// links.
type ExportsConfig struct {
	Dir             string
	URLSecret       string
	URLTTL          time.Duration
	Workers         int
	CleanupInterval time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Provider = ProviderConfig{
		Endpoint:         v.GetString("PROVIDER_ENDPOINT"),
		ClientID:         v.GetString("PROVIDER_CLIENT_ID"),
		ClientSecret:     v.GetString("PROVIDER_CLIENT_SECRET"),
		Certificate:      v.GetString("PROVIDER_CERTIFICATE"),
		OrganizationName: v.GetString("PROVIDER_ORGANIZATION"),
		ApplicationName:  v.GetString("PROVIDER_APPLICATION"),
		CacheTTL:         parseDuration(v.GetString("PROVIDER_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Extraction = ExtractionConfig{
		Endpoint: v.GetString("EXTRACTION_ENDPOINT"),
		Timeout:  parseDuration(v.GetString("EXTRACTION_TIMEOUT"), 30*time.Second),
	}

	cfg.Imports = ImportsConfig{
		MaxRows:          v.GetInt("IMPORT_MAX_ROWS"),
		SpreadsheetSheet: v.GetString("IMPORT_SPREADSHEET_SHEET"),
	}

	cfg.Exports = ExportsConfig{
		Dir:             v.GetString("EXPORT_DIR"),
		URLSecret:       v.GetString("EXPORT_URL_SECRET"),
		URLTTL:          parseDuration(v.GetString("EXPORT_URL_TTL"), 24*time.Hour),
		Workers:         v.GetInt("EXPORT_WORKERS"),
		CleanupInterval: parseDuration(v.GetString("EXPORT_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "epixum_roster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROVIDER_ENDPOINT", "http://localhost:8000")
	v.SetDefault("PROVIDER_CLIENT_ID", "")
	v.SetDefault("PROVIDER_CLIENT_SECRET", "")
	v.SetDefault("PROVIDER_CERTIFICATE", "")
	v.SetDefault("PROVIDER_ORGANIZATION", "epixum")
	v.SetDefault("PROVIDER_APPLICATION", "roster")
	v.SetDefault("PROVIDER_CACHE_TTL", "15m")

	v.SetDefault("EXTRACTION_ENDPOINT", "")
	v.SetDefault("EXTRACTION_TIMEOUT", "30s")

	v.SetDefault("IMPORT_MAX_ROWS", 500)
	v.SetDefault("IMPORT_SPREADSHEET_SHEET", "")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_URL_SECRET", "dev_export_secret")
	v.SetDefault("EXPORT_URL_TTL", "24h")
	v.SetDefault("EXPORT_WORKERS", 2)
	v.SetDefault("EXPORT_CLEANUP_INTERVAL", "1h")
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
