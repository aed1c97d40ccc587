package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	infraBQ "github.com/dvloznov/horizon/internal/infra/bigquery"
	"github.com/dvloznov/horizon/internal/logger"
)

func main() {
	projectID := flag.String("project", os.Getenv("BQ_PROJECT_ID"), "GCP project ID (or set BQ_PROJECT_ID env)")
	datasetID := flag.String("dataset", "horizon", "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Directory of migration files (defaults to the embedded set)")
	list := flag.Bool("list", false, "List migrations without connecting")
	flag.Parse()

	log := logger.New()

	migrations, err := loadMigrations(*migrationsDir, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	if *list {
		for _, m := range migrations {
			fmt.Printf("%04d  %-40s  %s\n", m.Version, m.Name, m.Checksum[:12])
		}
		return
	}

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy).Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}

// loadMigrations reads migrations from dir, or the embedded set when dir is empty.
func loadMigrations(dir, projectID, datasetID string) ([]infraBQ.Migration, error) {
	if dir == "" {
		return infraBQ.EmbeddedMigrations(projectID, datasetID)
	}
	return infraBQ.LoadMigrations(os.DirFS(dir), projectID, datasetID)
}
