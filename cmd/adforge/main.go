// Command adforge generates one campaign (copy plus staged imagery) from the
// command line and writes it to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"adforge/internal/infra"
)

var (
	apiKey  string
	verbose bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "adforge",
	Short: "Generate ad campaign copy and product imagery with Gemini",
	Long: `adforge turns a product brief and an optional reference photo into a
campaign package: structured ad copy plus three staged product images.

Configuration is read from the environment (and .env when present).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(retouchCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, applies the persistent flags and returns a
// context bounded by --timeout and interrupt signals.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *infra.Config, infra.Logger, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, nil, infra.Logger{}, fmt.Errorf("load config: %w", err)
	}
	if apiKey != "" {
		cfg.GeminiAPIKey = apiKey
	}
	env := cfg.AppEnv
	if verbose {
		env = "development"
	}
	logger := infra.NewLoggerTo(os.Stderr, env).With().Str("cmd", cmd.Name()).Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() { cancel(); stop() }, cfg, logger, nil
}
