package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"adforge/internal/infra"
	"adforge/internal/infra/credentials"
)

func main() {
	var (
		keyFlag    string
		deleteFlag bool
		showFlag   bool
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key to persist (falls back to GEMINI_API_KEY)")
	flag.BoolVar(&deleteFlag, "delete", false, "Remove the stored Gemini API key")
	flag.BoolVar(&showFlag, "status", false, "Report whether a Gemini API key is stored")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.HasDatabase() {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLoggerTo(os.Stderr, cfg.AppEnv).With().Str("cmd", "geminikey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	switch {
	case showFlag:
		key, err := store.GeminiAPIKey(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read api key: %v\n", err)
			os.Exit(1)
		}
		if key == "" {
			fmt.Println("no Gemini API key stored")
			return
		}
		fmt.Printf("Gemini API key stored (ending in %s)\n", lastFour(key))
	case deleteFlag:
		if err := store.DeleteGeminiAPIKey(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gemini API key removed")
	default:
		key := strings.TrimSpace(keyFlag)
		if key == "" {
			key = strings.TrimSpace(cfg.GeminiAPIKey)
		}
		if key == "" {
			fmt.Fprintln(os.Stderr, "Gemini API key is required via -key or GEMINI_API_KEY")
			os.Exit(1)
		}
		if err := store.SetGeminiAPIKey(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gemini API key stored successfully")
	}
}

func lastFour(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[len(key)-4:]
}
