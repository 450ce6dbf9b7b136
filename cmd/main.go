package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "trade-ingestion-service/internal/api/grpc"
	"trade-ingestion-service/internal/app"
	"trade-ingestion-service/internal/config"
	httpapi "trade-ingestion-service/internal/http"
	"trade-ingestion-service/internal/observability"
	"trade-ingestion-service/internal/observability/metrics"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Observability server: /metrics, /healthz, /readyz
	obsServer := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)
	obsServer.Start()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Register application services
	grpcapi.Register(server, application.Handler)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Trade ingestion gRPC server started")
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Trade ingestion HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	// Optional background ingestion from the configured source
	ingestDone := make(chan struct{})
	src, err := application.Source()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create record source")
	}
	if src != nil {
		go func() {
			defer close(ingestDone)
			if err := application.Handler.Run(ctx, src); err != nil {
				log.Error().Err(err).Str("source", src.Name()).Msg("Background ingestion stopped")
			}
		}()
	} else {
		close(ingestDone)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	server.GracefulStop()

	select {
	case <-ingestDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Background ingestion did not finish before shutdown deadline")
	}

	application.Shutdown()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
}
