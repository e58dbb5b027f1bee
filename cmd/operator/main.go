package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"browser-operator/internal/di"
	"browser-operator/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	container, err := di.NewContainer(di.Config{
		OpenRouterAPIKey: envService.MustGet("OPENROUTER_API_KEY"),
		OpenRouterModel:  envService.GetDefault("OPENROUTER_MODEL_NAME", "openai/gpt-4o-mini"),
		TranscribeModel:  envService.GetDefault("TRANSCRIBE_MODEL_NAME", ""),
		PolicyPath:       envService.GetDefault("OPERATOR_POLICY_FILE", ""),
		LogLevel:         envService.GetDefault("LOG_LEVEL", "info"),
		LogDir:           envService.GetDefault("LOG_DIR", ""),
	})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer container.Close()

	addr := envService.GetDefault("LISTEN_ADDR", ":8765")
	srv := &http.Server{
		Addr:              addr,
		Handler:           container.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		container.Logger.Info("operator listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		container.Logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("shutdown incomplete", "error", err)
	}
}
