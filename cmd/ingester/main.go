package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"wellstep/internal/config"
	"wellstep/internal/repository"
	"wellstep/internal/services"
	"wellstep/pkg/database"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

const version = "1.0.0"

func main() {
	historyPath := flag.String("history", "", "History CSV file to ingest")
	nexusPath := flag.String("nexus", "", "Nexus plot file to ingest")
	resample := flag.Bool("resample", false, "Resample every well of the ingested history dataset")
	batchSize := flag.Int("batch-size", 0, "Number of records per insert batch (default: ingest.batch_size)")
	flag.Parse()

	if *historyPath == "" && *nexusPath == "" {
		fmt.Fprintln(os.Stderr, "Nothing to ingest: pass -history and/or -nexus")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *batchSize <= 0 {
		*batchSize = cfg.Ingest.BatchSize
	}

	logger := logging.New("wellstep-ingester", version, cfg.Logging.Options())
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting well data ingestion", logging.Fields{
		"version":    version,
		"history":    *historyPath,
		"nexus":      *nexusPath,
		"batch_size": *batchSize,
		"resample":   *resample,
	})

	metricsCollector := metrics.NewCollector("wellstep_ingester")

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	wellRepo := repository.NewWellRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(wellRepo, logger, metricsCollector)

	failed := false

	if *historyPath != "" {
		result, err := ingestionService.IngestHistory(ctx, *historyPath, cfg.History.Options(), *batchSize)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] History ingestion failed", logging.Fields{
				"file_path": *historyPath,
			}, err)
			failed = true
		} else {
			printResult(result)

			if *resample {
				resampleService := services.NewResampleService(wellRepo, logger, metricsCollector, services.ResampleOptions{
					Step:    cfg.Resample.Step,
					Points:  cfg.Resample.Points,
					Workers: cfg.Resample.Workers,
				})

				series, err := resampleService.ResampleDataset(ctx, result.DatasetID, services.GridRequest{})
				if err != nil {
					logger.Error(ctx, "[RESAMPLE_ERROR] Resampling failed", logging.Fields{
						"dataset_id": result.DatasetID,
					}, err)
					failed = true
				} else {
					fmt.Printf("Resampled %d wells onto %d x %s grid\n", len(series), cfg.Resample.Points, cfg.Resample.Step)
				}
			}
		}
	}

	if *nexusPath != "" {
		result, err := ingestionService.IngestNexus(ctx, *nexusPath, *batchSize)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] Nexus ingestion failed", logging.Fields{
				"file_path": *nexusPath,
			}, err)
			failed = true
		} else {
			printResult(result)
		}
	}

	if failed {
		logger.Sync()
		os.Exit(1)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{})
}

func printResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("INGESTION COMPLETE (%s)\n", result.Kind)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Dataset:            %s\n", result.DatasetID)
	fmt.Printf("Source:             %s\n", result.Source)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Wells/Instances:    %d\n", result.Wells)
	fmt.Printf("Fields:             %s\n", strings.Join(result.Fields, ", "))
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
