// Package media turns caller supplied images into reference payloads: data
// URLs, local files and remote URLs, plus JPEG transcoding for outbound
// embedding.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"adforge/internal/domain"
)

// ErrNotImage is returned when a payload does not carry an image.
var ErrNotImage = errors.New("payload is not an image")

// ParseDataURL decodes a MIME-tagged base64 string such as
// "data:image/png;base64,iVBOR...". A bare base64 payload is accepted and its
// type is sniffed from the decoded bytes.
func ParseDataURL(raw string) (*domain.ReferenceImage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty image payload")
	}

	mimeType := ""
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		meta, data, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return nil, errors.New("data url missing payload separator")
		}
		params := strings.Split(meta, ";")
		if !containsFold(params[1:], "base64") {
			return nil, errors.New("data url must be base64 encoded")
		}
		mimeType = strings.ToLower(strings.TrimSpace(params[0]))
		payload = data
	}

	decoded, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if len(decoded) == 0 {
		return nil, errors.New("empty image payload")
	}

	sniffed := SniffMIMEType(decoded)
	if mimeType == "" {
		mimeType = sniffed
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrNotImage
	}
	return &domain.ReferenceImage{Data: decoded, MIMEType: mimeType}, nil
}

// EncodeDataURL renders image bytes back to a data URL.
func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = SniffMIMEType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIMEType guesses the MIME type of data, recognising WebP which older
// sniffers report as a generic RIFF container.
func SniffMIMEType(data []byte) string {
	if isWEBP(data) {
		return "image/webp"
	}
	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return mimeType
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}
