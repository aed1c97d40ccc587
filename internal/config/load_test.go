package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), env(map[string]string{
		"BQ_PROJECT_ID": "my-project",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.PlaidEnv != "sandbox" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.StoreBackend != BackendBigQuery || cfg.BQDataset != "horizon" {
		t.Errorf("Unexpected store defaults: %+v", cfg)
	}
	if cfg.SyncMaxPages != 100 || cfg.SyncPageTimeout != 30*time.Second {
		t.Errorf("Unexpected sync defaults: pages=%d timeout=%s", cfg.SyncMaxPages, cfg.SyncPageTimeout)
	}
	if cfg.DwollaEnabled() {
		t.Error("Expected Dwolla to be disabled without credentials")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), env(map[string]string{
		"HORIZON_PORT":      "9090",
		"PLAID_ENV":         "production",
		"STORE_BACKEND":     "mongo",
		"MONGO_URI":         "mongodb://db:27017",
		"SYNC_MAX_PAGES":    "0",
		"SYNC_PAGE_TIMEOUT": "5s",
		"DWOLLA_KEY":        "key",
		"DWOLLA_SECRET":     "secret",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "9090" || cfg.PlaidEnv != "production" {
		t.Errorf("Unexpected overrides: %+v", cfg)
	}
	if cfg.StoreBackend != BackendMongo || cfg.MongoURI != "mongodb://db:27017" {
		t.Errorf("Unexpected store settings: %+v", cfg)
	}
	if cfg.SyncMaxPages != 0 || cfg.SyncPageTimeout != 5*time.Second {
		t.Errorf("Unexpected sync settings: pages=%d timeout=%s", cfg.SyncMaxPages, cfg.SyncPageTimeout)
	}
	if !cfg.DwollaEnabled() {
		t.Error("Expected Dwolla to be enabled")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	cfg, err := load(context.Background(), env(map[string]string{
		"STORE_BACKEND":     "mongo",
		"SYNC_MAX_PAGES":    "lots",
		"SYNC_PAGE_TIMEOUT": "30",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.SyncMaxPages != 100 {
		t.Errorf("SyncMaxPages = %d, want 100", cfg.SyncMaxPages)
	}
	if cfg.SyncPageTimeout != 30*time.Second {
		t.Errorf("SyncPageTimeout = %s, want 30s", cfg.SyncPageTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bigquery without project", map[string]string{}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "postgres"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(context.Background(), env(tt.vars))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
