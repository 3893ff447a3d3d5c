package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/storage"
	"adforge/pkg/zip"
)

// CopyFilename is the name of the copy package file inside an export.
const CopyFilename = "copy.json"

var errNoOutcome = errors.New("export: outcome has no content")

// Exporter writes campaign outcomes to a FileStore and packs them as zip archives.
type Exporter struct {
	store  *storage.FileStore
	logger infra.Logger
}

func NewExporter(store *storage.FileStore, logger infra.Logger) *Exporter {
	return &Exporter{
		store:  store,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// ImageFilename names the i-th (zero based) image of an outcome, e.g. "1-staging-a.png".
func ImageFilename(i int, v domain.ImageVariant) string {
	return fmt.Sprintf("%d-%s.%s", i+1, v.Kind, v.Image.Extension())
}

// Assets lists the files of an export in a stable order: the copy package
// first, then the images in variant order.
func Assets(outcome *domain.Outcome) ([]zip.Asset, error) {
	if outcome == nil || (outcome.Copy == nil && len(outcome.Images) == 0) {
		return nil, errNoOutcome
	}
	assets := make([]zip.Asset, 0, len(outcome.Images)+1)
	if outcome.Copy != nil {
		data, err := json.MarshalIndent(outcome.Copy, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: encode copy: %w", err)
		}
		assets = append(assets, zip.Asset{Filename: CopyFilename, MIME: "application/json", Data: data})
	}
	for i, v := range outcome.Images {
		assets = append(assets, zip.Asset{
			Filename: ImageFilename(i, v),
			MIME:     v.Image.MIMEType,
			Data:     v.Image.Data,
		})
	}
	return assets, nil
}

// Save writes every asset of outcome under <runID>/ and returns the storage
// keys in asset order. Writes run concurrently; the first failure cancels the rest.
func (e *Exporter) Save(ctx context.Context, outcome *domain.Outcome) ([]string, error) {
	assets, err := Assets(outcome)
	if err != nil {
		return nil, err
	}
	prefix := outcome.RunID
	if prefix == "" {
		prefix = outcome.FinishedAt.UTC().Format("20060102T150405Z")
	}

	keys := make([]string, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		g.Go(func() error {
			key, err := e.store.Write(gctx, path.Join(prefix, asset.Filename), asset.Data)
			if err != nil {
				return fmt.Errorf("export: save %s: %w", asset.Filename, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error().Err(err).Str("run_id", outcome.RunID).Msg("export failed")
		return nil, err
	}
	e.logger.Info().Str("run_id", outcome.RunID).Int("files", len(keys)).Str("dir", path.Join(e.store.BasePath(), prefix)).Msg("outcome exported")
	return keys, nil
}

// Archive packs outcome into a zip archive held in memory.
func (e *Exporter) Archive(outcome *domain.Outcome) ([]byte, error) {
	assets, err := Assets(outcome)
	if err != nil {
		return nil, err
	}
	modified := outcome.FinishedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	return zip.ArchiveAssets(assets, modified)
}

// ArchiveFilename names the download of an outcome archive.
func ArchiveFilename(outcome *domain.Outcome) string {
	if outcome == nil || outcome.RunID == "" {
		return "campaign.zip"
	}
	return "campaign-" + outcome.RunID + ".zip"
}
