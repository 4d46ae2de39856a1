package main

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
	"github.com/lychee-technology/pim/factory"
	"github.com/lychee-technology/pim/internal"
	"github.com/lychee-technology/pim/internal/metrics"
)

// healthCheck reports whether one dependency is usable.
type healthCheck func(ctx context.Context) error

// Server exposes health, metrics and export endpoints.
type Server struct {
	exporter pim.Exporter
	jobs     *internal.ExportJobs
	checks   map[string]healthCheck
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(exporter pim.Exporter, jobs *internal.ExportJobs, checks map[string]healthCheck, gatherer prometheus.Gatherer) *Server {
	return &Server{
		exporter: exporter,
		jobs:     jobs,
		checks:   checks,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler(s.gatherer))
	s.mux.HandleFunc("/api/v1/exports", s.handleExports)
}

// Start starts the HTTP server on the given port
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	return http.ListenAndServe(":"+port, s.mux)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg, err := pim.LoadConfig(os.Getenv("PIM_CONFIG"))
	if err != nil {
		sugar.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := factory.NewPool(ctx, cfg)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	checks := map[string]healthCheck{
		"postgres": func(ctx context.Context) error {
			return internal.PostgresHealthCheck(ctx, pool, cfg.Database.Timeout)
		},
	}
	if cfg.Storage.Bucket != "" {
		client, err := internal.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			sugar.Fatalf("failed to create storage client: %v", err)
		}
		checks["storage"] = func(ctx context.Context) error {
			return internal.StorageHealthCheck(ctx, client, cfg.Storage.Bucket, cfg.Database.Timeout)
		}
	}

	jobs := internal.NewExportJobs()
	exporter, closeExporter, err := factory.NewExporterWithConfig(ctx, cfg, pool, jobs)
	if err != nil {
		sugar.Fatalf("failed to create exporter: %v", err)
	}
	defer closeExporter()

	server := NewServer(exporter, jobs, checks, prometheus.DefaultGatherer)
	server.RegisterRoutes()

	port := getEnv("PORT", "8080")
	if err := server.Start(port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
