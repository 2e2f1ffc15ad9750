package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"stockwatch/internal/config"
	"stockwatch/internal/httpapi"
	"stockwatch/internal/quotes"
	"stockwatch/internal/store"
	"stockwatch/internal/util"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	var w io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		logFile, err := util.RotatingFile(cfg.Logging.File)
		if err != nil {
			log.Fatalf("opening log file: %v", err)
		}
		defer logFile.Close()
		w = io.MultiWriter(os.Stdout, logFile)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	util.SetDefault(logger)

	// Create stores and quote provider.
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	archive := store.NewParquetStore(cfg.Storage.DataDir)
	if syms, err := archive.ListSymbols(context.Background()); err != nil {
		logger.Warn("listing archived history", "error", err)
	} else {
		logger.Info("history archive", "dir", cfg.Storage.DataDir, "symbols", len(syms))
	}
	provider, err := quotes.New(cfg, archive, logger)
	if err != nil {
		log.Fatalf("creating quote provider: %v", err)
	}

	srv := httpapi.NewServer(db, provider, cfg.Quotes.Workers, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Health checks for orchestrators.
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
		if err != nil {
			log.Fatalf("listening for gRPC: %v", err)
		}
		go func() {
			logger.Info("health server listening", "addr", lis.Addr().String())
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("watch server listening", "addr", httpServer.Addr, "provider", provider.Name())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	logger.Info("shutting down watch server")
	hs.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
}
