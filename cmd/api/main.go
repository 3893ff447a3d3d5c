package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adforge/internal/bootstrap"
	"adforge/internal/http/handlers"
	httpapi "adforge/internal/http/httpapi"
	"adforge/internal/infra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise")
	}
	defer stack.Close()

	app := handlers.NewApp(stack.Orchestrator, stack.Exporter, stack.Fetcher, stack.Gate, cfg, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router, logger)

	logger.Info().
		Str("env", cfg.AppEnv).
		Bool("credential_present", stack.Orchestrator.CredentialPresent()).
		Bool("database", stack.Pool != nil).
		Msg("adforge api starting")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		stack.Close()
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
