package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"adforge/internal/domain"
)

// DefaultMaxBytes bounds downloaded reference images.
const DefaultMaxBytes int64 = 20 << 20

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client
}

// Fetcher downloads reference images over HTTP.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
}

// NewFetcher builds a Fetcher backed by resty.
func NewFetcher(opts FetcherOptions) *Fetcher {
	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	client.SetTimeout(timeout).
		SetHeader("User-Agent", "adforge/1.0").
		SetHeader("Accept", "image/*")
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads url and returns it as a reference image. Non-2xx responses,
// oversized bodies and non-image payloads are rejected.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.ReferenceImage, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch image: empty body")
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("fetch image: body exceeds %d bytes", f.maxBytes)
	}

	mimeType := strings.ToLower(strings.TrimSpace(resp.Header().Get("Content-Type")))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = SniffMIMEType(body)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrNotImage
	}
	return &domain.ReferenceImage{Data: body, MIMEType: mimeType}, nil
}
