package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Skotchmaster/product_catalog/pkg/config"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseName   string
	UploadDir      string
	MaxUploadBytes int64
	LogLevel       string
	ServiceName    string

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	JWTSecret      string
	JaegerEndpoint string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv_load_error", "error", err.Error())
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           pkgconfig.EnvIntDefault("PORT", 5000),
		DatabaseURL:    pkgconfig.EnvDefault("DATABASE_URL", ""),
		DatabaseName:   pkgconfig.EnvDefault("DATABASE_NAME", "catalog"),
		UploadDir:      pkgconfig.EnvDefault("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: pkgconfig.EnvInt64Default("MAX_UPLOAD_BYTES", 5<<20),
		LogLevel:       pkgconfig.EnvDefault("LOG_LEVEL", "info"),
		ServiceName:    pkgconfig.EnvDefault("SERVICE_NAME", "product-catalog"),

		KafkaBrokers: pkgconfig.CSV(pkgconfig.EnvDefault("KAFKA_BROKERS", "")),
		KafkaTopic:   pkgconfig.EnvDefault("KAFKA_TOPIC", "product_events"),

		ESURL:      pkgconfig.EnvDefault("ES_URL", ""),
		ESUser:     pkgconfig.EnvDefault("ES_USER", ""),
		ESPassword: pkgconfig.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    pkgconfig.EnvDefault("ES_INDEX", "products"),

		JWTSecret:      pkgconfig.EnvDefault("AUTH_JWT_SECRET", ""),
		JaegerEndpoint: pkgconfig.EnvDefault("JAEGER_ENDPOINT", ""),
	}

	if err := pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return cfg, nil
}
