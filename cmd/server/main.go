// Goalmap - roadmap generation server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/goalmap/internal/api"
	"github.com/ashureev/goalmap/internal/config"
	"github.com/ashureev/goalmap/internal/generator"
	"github.com/ashureev/goalmap/internal/identity"
	"github.com/ashureev/goalmap/internal/metrics"
	"github.com/ashureev/goalmap/internal/middleware"
	"github.com/ashureev/goalmap/internal/realtime"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/ashureev/goalmap/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "generator", cfg.Generator.Provider)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	journal, err := generator.NewJournal(generator.JournalConfig{
		Enabled:   cfg.GenerationLog.Enabled,
		Dir:       cfg.GenerationLog.Dir,
		QueueSize: cfg.GenerationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize generation journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Failed to close generation journal", "error", closeErr)
		}
	}()

	gen, err := generator.FromConfig(cfg.Generator, journal, logger)
	if err != nil {
		slog.Error("Failed to initialize step generator", "error", err)
		os.Exit(1)
	}
	defer gen.Close()
	if gen.Name == config.ProviderNone {
		slog.Info("Step generation disabled (set LLM_API_KEY or GENERATOR_PROVIDER)")
	}

	// Initialize services.
	collector := metrics.NewCollector("goalmap")
	hub := realtime.NewHub(256, logger)
	defer hub.Close()

	svc := roadmap.NewService(repo, gen,
		roadmap.WithMaxDecomposeDepth(cfg.MaxDecomposeDepth),
		roadmap.WithGenerateTimeout(cfg.Generator.Timeout),
		roadmap.WithPublisher(hub),
		roadmap.WithMetrics(collector),
		roadmap.WithLogger(logger),
	)

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	// Initialize handlers.
	roadmapHandler := api.NewRoadmapHandler(svc, api.RoadmapHandlerConfig{
		GeneratorName:       gen.Name,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		Limiter:             limiter,
	})
	healthHandler := api.NewHealthHandler(repo, gen)
	wsHandler := realtime.NewHandler(hub, websocketOrigins(cfg))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(collector.Middleware)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(identity.Middleware())

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", collector.Handler())

	roadmapHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/roadmaps", wsHandler.ServeHTTP)

	// Decomposition can take a while, so the write timeout tracks the
	// generator timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Generator.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var grpcServer *grpc.Server
	if cfg.Generator.GRPCListen != "" {
		grpcServer, err = serveGenerator(cfg.Generator.GRPCListen, gen)
		if err != nil {
			slog.Error("Failed to start generator gRPC server", "error", err)
			os.Exit(1)
		}
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// serveGenerator exposes gen over gRPC so other processes can share one
// configured backend.
func serveGenerator(addr string, gen generator.Generator) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := grpc.NewServer()
	generator.RegisterServer(s, gen)
	hs := health.NewServer()
	hs.SetServingStatus(generator.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		slog.Info("Generator gRPC server listening", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			slog.Error("Generator gRPC server failed", "error", err)
		}
	}()
	return s, nil
}
