package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dvloznov/horizon/internal/logger"
)

// Default values.
const (
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultPlaidEnv        = "sandbox"
	defaultStoreBackend    = BackendBigQuery
	defaultBQDataset       = "horizon"
	defaultMongoURI        = "mongodb://localhost:27017"
	defaultMongoDatabase   = "horizon"
	defaultSyncMaxPages    = 100
	defaultSyncPageTimeout = 30 * time.Second

	envPort            = "HORIZON_PORT"
	envLogLevel        = "LOG_LEVEL"
	envPlaidClientID   = "PLAID_CLIENT_ID"
	envPlaidSecret     = "PLAID_SECRET"
	envPlaidEnv        = "PLAID_ENV"
	envDwollaKey       = "DWOLLA_KEY"
	envDwollaSecret    = "DWOLLA_SECRET"
	envDwollaEnv       = "DWOLLA_ENV"
	envStoreBackend    = "STORE_BACKEND"
	envBQProjectID     = "BQ_PROJECT_ID"
	envBQDataset       = "BQ_DATASET"
	envMongoURI        = "MONGO_URI"
	envMongoDatabase   = "MONGO_DATABASE"
	envSyncMaxPages    = "SYNC_MAX_PAGES"
	envSyncPageTimeout = "SYNC_PAGE_TIMEOUT"
	envJWTSecret       = "JWT_SECRET"
	envExportBucket    = "EXPORT_BUCKET"
	envNotionToken     = "NOTION_TOKEN"
	envNotionDBID      = "NOTION_DB_ID"
)

// ErrInvalidConfig is returned when a setting has no usable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads the configuration from environment variables, using defaults
// for unset values. Unparseable numbers fall back to their default with a
// warning; an unknown store backend or a BigQuery backend without a project
// is an error.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, os.Getenv)
}

func load(ctx context.Context, getenv func(string) string) (*Config, error) {
	log := logger.FromContext(ctx)

	str := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		log.Debug().Str("key", key).Str("default", def).Msg("Using default value")
		return def
	}

	cfg := &Config{
		Port:          str(envPort, defaultPort),
		LogLevel:      str(envLogLevel, defaultLogLevel),
		PlaidClientID: getenv(envPlaidClientID),
		PlaidSecret:   getenv(envPlaidSecret),
		PlaidEnv:      str(envPlaidEnv, defaultPlaidEnv),
		DwollaKey:     getenv(envDwollaKey),
		DwollaSecret:  getenv(envDwollaSecret),
		DwollaEnv:     getenv(envDwollaEnv),
		StoreBackend:  str(envStoreBackend, defaultStoreBackend),
		BQProjectID:   getenv(envBQProjectID),
		BQDataset:     str(envBQDataset, defaultBQDataset),
		MongoURI:      str(envMongoURI, defaultMongoURI),
		MongoDatabase: str(envMongoDatabase, defaultMongoDatabase),
		JWTSecret:     getenv(envJWTSecret),
		ExportBucket:  getenv(envExportBucket),
		NotionToken:   getenv(envNotionToken),
		NotionDBID:    getenv(envNotionDBID),
	}

	cfg.SyncMaxPages = defaultSyncMaxPages
	if v := getenv(envSyncMaxPages); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Err(err).Str("value", v).Int("default", defaultSyncMaxPages).
				Msg("Invalid value for SYNC_MAX_PAGES, using default")
		} else {
			cfg.SyncMaxPages = n
		}
	}

	cfg.SyncPageTimeout = defaultSyncPageTimeout
	if v := getenv(envSyncPageTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Warn().Err(err).Str("value", v).Dur("default", defaultSyncPageTimeout).
				Msg("Invalid value for SYNC_PAGE_TIMEOUT, using default")
		} else {
			cfg.SyncPageTimeout = d
		}
	}

	switch cfg.StoreBackend {
	case BackendBigQuery:
		if cfg.BQProjectID == "" {
			return nil, fmt.Errorf("Load: %s is required for the bigquery backend: %w", envBQProjectID, ErrInvalidConfig)
		}
	case BackendMongo:
	default:
		return nil, fmt.Errorf("Load: %s=%q: %w", envStoreBackend, cfg.StoreBackend, ErrInvalidConfig)
	}

	return cfg, nil
}

// DwollaEnabled reports whether payment credentials are configured.
func (c *Config) DwollaEnabled() bool {
	return c.DwollaKey != "" && c.DwollaSecret != ""
}
