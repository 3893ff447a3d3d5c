package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"adforge/internal/bootstrap"
	"adforge/internal/domain"
	"adforge/internal/media"
)

var (
	retouchImage       string
	retouchEnvironment string
	retouchOut         string
)

// retouchCmd replaces the background of a product photo
var retouchCmd = &cobra.Command{
	Use:   "retouch",
	Short: "Replace the background of a product photo",
	Long: `Place the product from --image into a new environment while keeping the
product itself pixel-faithful. The result is written to --out.`,
	Example: `  adforge retouch --image ./candle.jpg --environment "marble bathroom shelf at dawn" --out candle-marble.png`,
	RunE:    runRetouch,
}

func init() {
	retouchCmd.Flags().StringVarP(&retouchImage, "image", "i", "", "Product photo: path, URL or data URL (required)")
	retouchCmd.Flags().StringVarP(&retouchEnvironment, "environment", "e", "", "New environment description (required)")
	retouchCmd.Flags().StringVarP(&retouchOut, "out", "o", "", "Output file (default retouched.<ext>)")
	_ = retouchCmd.MarkFlagRequired("image")
	_ = retouchCmd.MarkFlagRequired("environment")
}

func runRetouch(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	stack, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	ref, err := media.Load(ctx, stack.Fetcher, retouchImage)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if err := stack.Orchestrator.SetReferenceImage(ref); err != nil {
		return err
	}

	edited, err := stack.Orchestrator.RunBackgroundEdit(ctx, retouchEnvironment)
	if err != nil {
		f := domain.ToFailure(err)
		msg := stack.Orchestrator.Status().LastError
		if msg == "" {
			msg = f.Message
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
		return f
	}

	out := strings.TrimSpace(retouchOut)
	if out == "" {
		out = "retouched." + edited.Extension()
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, edited.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Retouched image written to %s (%d bytes)\n", out, len(edited.Data))
	return nil
}
