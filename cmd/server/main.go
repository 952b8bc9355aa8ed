package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/freshness-api/internal/config"
	"github.com/Brownie44l1/freshness-api/internal/handlers"
	"github.com/Brownie44l1/freshness-api/internal/logger"
	"github.com/Brownie44l1/freshness-api/internal/model"
)

func main() {
	if err := run(config.Load()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// run returns only after every deferred cleanup has happened, so main can
// exit non-zero without skipping them.
func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	lg.Info("Loading model from: %s", cfg.ModelPath)

	// Loaded once and shared by every request.
	modelServer, err := model.NewServer(model.Options{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		InputName:   cfg.InputName,
		OutputName:  cfg.OutputName,
		Labels:      cfg.Labels,
	})
	if err != nil {
		lg.Error("Failed to initialize model server: %v", err)
		return err
	}
	defer modelServer.Close()

	handler := handlers.NewHandler(modelServer, cfg, lg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lg.Info("Server starting on %s", srv.Addr)
	lg.Info("Classes: %v", modelServer.Labels())
	lg.Info("Endpoints:")
	lg.Info("  GET  /health             - Health check")
	lg.Info("  POST /classify-freshness - Classify an uploaded image (field \"image\")")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	return serve(srv, stop, lg)
}

// serve blocks until the server fails or a signal arrives. Only a failure
// returns an error.
func serve(srv *http.Server, stop <-chan os.Signal, lg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		lg.Error("Server failed: %v", err)
		return err
	case sig := <-stop:
		lg.Info("Received %s, shutting down", sig)
		return srv.Close()
	}
}
