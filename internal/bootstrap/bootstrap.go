// Package bootstrap wires the generation stack shared by the API server and
// the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"adforge/internal/campaign"
	"adforge/internal/export"
	"adforge/internal/infra"
	"adforge/internal/infra/credentials"
	"adforge/internal/media"
	"adforge/internal/providers/genai"
	"adforge/internal/storage"
)

// Stack holds the wired components.
type Stack struct {
	Pool         *pgxpool.Pool
	Gate         *credentials.Gate
	Client       *genai.Client
	Orchestrator *campaign.Orchestrator
	Fetcher      *media.Fetcher
	Exporter     *export.Exporter
}

// Close releases the database pool, if any.
func (s *Stack) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// Build wires the stack from cfg. onProgress may be nil.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger, onProgress func(string)) (*Stack, error) {
	pool, err := infra.OpenOptionalDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	stack := &Stack{Pool: pool}

	var keyStore credentials.KeyStore
	if pool != nil {
		keyStore = credentials.NewStore(infra.NewSQLRunner(pool, logger))
	}
	stack.Gate = credentials.NewGate(cfg.GeminiAPIKey, keyStore, logger)

	stack.Client, err = genai.NewClient(genai.Options{
		Keys:           stack.Gate,
		TextModel:      cfg.GeminiTextModel,
		ImageModel:     cfg.GeminiImageModel,
		BaseURL:        cfg.GeminiBaseURL,
		ThinkingBudget: cfg.GeminiThinkingBudget,
		AspectRatio:    cfg.ImageAspectRatio,
		ImageSize:      cfg.ImageSize,
		TranscodeJPEG:  cfg.TranscodeReferenceJPEG,
		Logger:         &logger,
	})
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	stack.Orchestrator, err = campaign.New(campaign.Options{
		Generator:        stack.Client,
		Gate:             stack.Gate,
		ProgressInterval: cfg.ProgressInterval,
		OnProgress:       onProgress,
		Logger:           &logger,
	})
	if err != nil {
		stack.Close()
		return nil, err
	}
	if _, err := stack.Orchestrator.RefreshCredential(ctx); err != nil {
		logger.Warn().Err(err).Msg("credential check failed at startup")
	}

	stack.Fetcher = media.NewFetcher(media.FetcherOptions{
		Timeout:  cfg.ImageFetchTimeout,
		MaxBytes: cfg.MaxUploadBytes,
	})

	store, err := storage.NewFileStore(cfg.ExportPath)
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.Exporter = export.NewExporter(store, logger)
	return stack, nil
}
