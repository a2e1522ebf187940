package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/api/handlers"
	"github.com/dvloznov/card-analytics/internal/api/middleware"
	"github.com/dvloznov/card-analytics/internal/config"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/dvloznov/card-analytics/internal/gcs"
	infraBQ "github.com/dvloznov/card-analytics/internal/infra/bigquery"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Parse command-line flags
	var (
		port        = flag.String("port", cfg.Server.Port, "HTTP server port (or set PORT env)")
		datasetPath = flag.String("dataset", cfg.Dataset.Path, "dataset source: .csv/.xlsx path, gs://bucket/object or bq://project.dataset.table (or set DATASET_PATH env)")
		project     = flag.String("project", cfg.Dataset.GCPProject, "GCP project for BigQuery sources (or set GCP_PROJECT env)")
	)
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Dataset.Path = *datasetPath
	cfg.Dataset.GCPProject = *project

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("Failed to read .env file")
	}

	// Load the dataset before serving; queries never see a partial table.
	ctx := context.Background()
	engine := loadEngine(ctx, cfg.Dataset, log)

	analyticsHandler := handlers.NewAnalyticsHandler(engine, logger.Component(log, "handlers"))

	// Create router
	mux := http.NewServeMux()
	analyticsHandler.Register(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", middleware.MetricsHandler())
	}

	mws := []middleware.Middleware{
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Tracing,
	}
	if cfg.Metrics.Enabled {
		mws = append(mws, middleware.Metrics(handlers.Routes()...))
	}
	mws = append(mws,
		middleware.Logger(log),
		middleware.CORS(cfg.Server.CORSAllowedOrigin),
	)
	handler := middleware.Chain(mux, mws...)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Bool("data_loaded", engine.Loaded()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// loadEngine loads the configured dataset. A failed load is logged and the
// service starts without data; health then reports data_loaded=false.
func loadEngine(ctx context.Context, cfg config.DatasetConfig, log zerolog.Logger) *analytics.Engine {
	var warehouse dataset.WarehouseReader
	if cfg.WarehouseSource() {
		project := cfg.GCPProject
		if project == "" {
			if ref, err := infraBQ.ParseTableRef(cfg.Path, ""); err == nil {
				project = ref.ProjectID
			}
		}

		reader, err := infraBQ.NewCardTransactionRepository(ctx, project)
		if err != nil {
			log.Error().Err(err).Str("source", cfg.Path).Msg("Failed to create BigQuery reader")
			return analytics.New(nil)
		}
		defer reader.Close()
		warehouse = reader
	}

	loader := dataset.NewLoader(gcs.NewClient(), warehouse, time.Now, logger.Component(log, "dataset"))

	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	table, err := loader.Load(loadCtx, cfg.Path)
	if err != nil {
		var loadErr *dataset.LoadError
		if errors.As(err, &loadErr) {
			log.Error().Err(loadErr.Err).Str("source", loadErr.Source).Msg("Dataset not loaded; serving without data")
		} else {
			log.Error().Err(err).Msg("Dataset not loaded; serving without data")
		}
		return analytics.New(nil)
	}

	return analytics.New(table)
}
