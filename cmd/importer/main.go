package main

import (
	"flag"
	"os"

	"github.com/openbusmap/frequency-backend/internal/aggregate"
	"github.com/openbusmap/frequency-backend/internal/config"
	"github.com/openbusmap/frequency-backend/internal/database"
	"github.com/openbusmap/frequency-backend/internal/ingest"
	"github.com/sirupsen/logrus"
)

func main() {
	createTables := flag.Bool("create-tables", false, "Drop and re-create all tables")
	process := flag.Bool("process", false, "Ingest timetable zip archives from the data directory")
	registry := flag.Bool("registry", false, "Load the stop-registry feed")
	refresh := flag.Bool("aggregate", false, "Rebuild the frequency links")
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *createTables {
		logger.Info("Re-creating tables")
		if err := database.CreateTables(db); err != nil {
			logger.Fatalf("Failed to create tables: %v", err)
		}
	}

	if *process {
		orchestrator := ingest.NewOrchestrator(db, cfg.Import.ReferenceMonday, logger)
		report, err := orchestrator.ProcessDir(cfg.Import.TimetableDir)
		if err != nil {
			logger.Fatalf("Failed to process timetable archives: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"run_id":    report.RunID,
			"processed": report.Processed,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		}).Info("Timetable ingestion finished")
	}

	if *registry {
		loader := ingest.NewRegistryLoader(db, logger)
		if _, err := loader.LoadZip(cfg.Import.StopRegistryZip); err != nil {
			logger.Fatalf("Failed to load stop registry: %v", err)
		}
	}

	if *refresh {
		aggregator := aggregate.NewAggregator(db, logger)
		if _, err := aggregator.Refresh(); err != nil {
			logger.Fatalf("Failed to rebuild frequency links: %v", err)
		}
	}
}
