package export

import (
	stdzip "archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"adforge/internal/domain"
	"adforge/internal/storage"
)

func sampleOutcome() *domain.Outcome {
	images := make([]domain.ImageVariant, 0, len(domain.Variants))
	for i, v := range domain.Variants {
		mime := "image/png"
		if i == 2 {
			mime = "image/jpeg"
		}
		images = append(images, v.Annotate(domain.Image{Data: []byte("img-" + string(v.Kind)), MIMEType: mime}))
	}
	return &domain.Outcome{
		RunID: "run-42",
		Brief: "Lavender soy candle",
		Copy: &domain.CopyPackage{
			Assumptions: []string{"Audience: home decor buyers"},
			Hooks:       []domain.Hook{{MechanismType: "Curiosity", Text: "Why does this candle smell like July?"}},
		},
		Images:     images,
		FinishedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newExporter(t *testing.T) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	return NewExporter(store, zerolog.Nop()), dir
}

func TestImageFilename(t *testing.T) {
	outcome := sampleOutcome()
	want := []string{"1-staging-a.png", "2-staging-b.png", "3-active-use.jpg"}
	for i, v := range outcome.Images {
		if got := ImageFilename(i, v); got != want[i] {
			t.Fatalf("ImageFilename(%d) = %q, want %q", i, got, want[i])
		}
	}
}

func TestSaveWritesAllFiles(t *testing.T) {
	exp, dir := newExporter(t)

	keys, err := exp.Save(context.Background(), sampleOutcome())
	require.NoError(t, err)
	require.Equal(t, []string{
		"run-42/copy.json",
		"run-42/1-staging-a.png",
		"run-42/2-staging-b.png",
		"run-42/3-active-use.jpg",
	}, keys)

	raw, err := os.ReadFile(filepath.Join(dir, "run-42", "copy.json"))
	require.NoError(t, err)
	var copyPkg domain.CopyPackage
	require.NoError(t, json.Unmarshal(raw, &copyPkg))
	require.Equal(t, "Why does this candle smell like July?", copyPkg.Hooks[0].Text)

	img, err := os.ReadFile(filepath.Join(dir, "run-42", "3-active-use.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("img-active-use"), img)
}

func TestSaveRejectsEmptyOutcome(t *testing.T) {
	exp, _ := newExporter(t)
	_, err := exp.Save(context.Background(), &domain.Outcome{RunID: "x"})
	require.Error(t, err)
	_, err = exp.Save(context.Background(), nil)
	require.Error(t, err)
}

func TestSaveCanceled(t *testing.T) {
	exp, _ := newExporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exp.Save(ctx, sampleOutcome())
	require.ErrorIs(t, err, context.Canceled)
}

func TestArchive(t *testing.T) {
	exp, _ := newExporter(t)
	data, err := exp.Archive(sampleOutcome())
	require.NoError(t, err)

	zr, err := stdzip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"copy.json", "1-staging-a.png", "2-staging-b.png", "3-active-use.jpg"}, names)
}

func TestArchiveFilename(t *testing.T) {
	require.Equal(t, "campaign-run-42.zip", ArchiveFilename(sampleOutcome()))
	require.Equal(t, "campaign.zip", ArchiveFilename(nil))
}
