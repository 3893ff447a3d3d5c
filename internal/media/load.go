package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"adforge/internal/domain"
)

// Load resolves a reference image from an http(s) URL, a data URL or a local
// file path.
func Load(ctx context.Context, fetcher *Fetcher, source string) (*domain.ReferenceImage, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if fetcher == nil {
			fetcher = NewFetcher(FetcherOptions{})
		}
		return fetcher.Fetch(ctx, source)
	case strings.HasPrefix(source, "data:"):
		return ParseDataURL(source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	mimeType := SniffMIMEType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s: %w", source, ErrNotImage)
	}
	return &domain.ReferenceImage{Data: data, MIMEType: mimeType}, nil
}
