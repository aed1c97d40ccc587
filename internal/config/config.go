package config

import (
	"time"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendMongo    = "mongo"
)

// Config holds the application configuration. It is loaded once at startup
// and passed by value to constructors.
type Config struct {
	Port     string
	LogLevel string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	DwollaKey    string
	DwollaSecret string
	DwollaEnv    string

	StoreBackend  string
	BQProjectID   string
	BQDataset     string
	MongoURI      string
	MongoDatabase string

	SyncMaxPages    int
	SyncPageTimeout time.Duration

	JWTSecret    string
	ExportBucket string
	NotionToken  string
	NotionDBID   string
}
