package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"adforge/internal/bootstrap"
	"adforge/internal/domain"
	"adforge/internal/media"
)

var (
	genBrief   string
	genImage   string
	genGeneric bool
	genOut     string
)

// generateCmd runs one campaign generation cycle
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a campaign from a product brief",
	Long: `Generate ad copy and three staged product images for a brief.

The reference image may be a file path, an http(s) URL or a data URL.
Without a reference image the imagery is generic and cannot match the real
product; pass --generic to accept that.

Files are written to <out>/<run-id>/: copy.json plus one image per variant.`,
	Example: `  adforge generate --brief "Hand-poured lavender soy candle" --image ./candle.jpg
  adforge generate --brief "Hand-poured lavender soy candle" --generic --out ./campaigns`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genBrief, "brief", "b", "", "Product brief (required)")
	generateCmd.Flags().StringVarP(&genImage, "image", "i", "", "Reference image: path, URL or data URL")
	generateCmd.Flags().BoolVar(&genGeneric, "generic", false, "Proceed without a reference image")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Output directory (default EXPORT_PATH)")
	_ = generateCmd.MarkFlagRequired("brief")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	if genOut != "" {
		cfg.ExportPath = genOut
	}

	stack, err := bootstrap.Build(ctx, cfg, logger, func(label string) {
		logger.Info().Msg(label)
	})
	if err != nil {
		return err
	}
	defer stack.Close()

	ref, err := media.Load(ctx, stack.Fetcher, genImage)
	if err != nil {
		return fmt.Errorf("load reference image: %w", err)
	}
	if ref != nil {
		if err := stack.Orchestrator.SetReferenceImage(ref); err != nil {
			return err
		}
	}

	outcome, err := stack.Orchestrator.Run(ctx, domain.GenerationRequest{
		Brief:               genBrief,
		ReferenceImage:      ref,
		ProceedWithoutImage: genGeneric,
	})
	if err != nil {
		f := domain.ToFailure(err)
		switch f.Kind {
		case domain.KindNeedsConfirmation:
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+f.Message)
			fmt.Fprintln(cmd.ErrOrStderr(), "Re-run with --generic to continue without a reference image.")
		case domain.KindNeedsCredential, domain.KindCredentialRejected:
			fmt.Fprintln(cmd.ErrOrStderr(), f.Message)
			fmt.Fprintln(cmd.ErrOrStderr(), "Set GEMINI_API_KEY, pass --api-key, or store one with geminikey.")
		default:
			fmt.Fprintln(cmd.ErrOrStderr(), "generation failed: "+f.Message)
		}
		return f
	}

	keys, err := stack.Exporter.Save(ctx, outcome)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outcome.Generic {
		fmt.Fprintln(out, "Note: imagery is generic (no reference image).")
	}
	fmt.Fprintf(out, "Campaign %s written to %s\n", outcome.RunID, filepath.Join(cfg.ExportPath, outcome.RunID))
	for _, key := range keys {
		fmt.Fprintf(out, "  %s\n", filepath.Join(cfg.ExportPath, filepath.FromSlash(key)))
	}
	printCopySummary(out, outcome.Copy)
	return nil
}

func printCopySummary(out io.Writer, pkg *domain.CopyPackage) {
	if pkg == nil {
		return
	}
	fmt.Fprintf(out, "\nHooks (%d):\n", len(pkg.Hooks))
	for _, h := range pkg.Hooks {
		label := h.MechanismType
		if m, ok := h.Mechanism(); ok {
			label = string(m)
		}
		fmt.Fprintf(out, "  [%s] %s\n", label, h.Text)
	}
	fmt.Fprintf(out, "\nHeadlines (%d):\n", len(pkg.Headlines))
	for _, h := range pkg.Headlines {
		fmt.Fprintf(out, "  [%s] %s\n", h.Angle, h.Text)
	}
	cta := pkg.CTARecommendations
	if strings.TrimSpace(cta.Primary.Button) != "" {
		fmt.Fprintf(out, "\nPrimary CTA: %s (%s)\n", cta.Primary.Button, cta.Primary.Rationale)
	}
}
