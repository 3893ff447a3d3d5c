package domain

import (
	"strings"
	"time"
)

// ReferenceImage is the user supplied product photo, already decoded from its
// transport encoding.
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// IsZero reports whether the image carries no bytes.
func (r *ReferenceImage) IsZero() bool {
	return r == nil || len(r.Data) == 0
}

// Image is a synthesized image returned by the provider.
type Image struct {
	Data     []byte
	MIMEType string
}

// Extension returns the file extension matching the image MIME type.
func (i Image) Extension() string {
	switch strings.ToLower(strings.TrimSpace(i.MIMEType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// GenerationRequest is built fresh for each campaign generation attempt.
type GenerationRequest struct {
	Brief          string
	ReferenceImage *ReferenceImage
	// ProceedWithoutImage acknowledges that without a reference image the
	// imagery is generic and cannot match the real product.
	ProceedWithoutImage bool
}

// HasReference reports whether the request carries a usable reference image.
func (r GenerationRequest) HasReference() bool {
	return !r.ReferenceImage.IsZero()
}

// ImageVariant is a generated image annotated with its presentation label.
type ImageVariant struct {
	Kind        VariantKind
	Label       string
	Description string
	Image       Image
}

// Outcome is the result bundle of a successful campaign generation.
type Outcome struct {
	RunID      string
	Brief      string
	Generic    bool
	Copy       *CopyPackage
	Images     []ImageVariant
	StartedAt  time.Time
	FinishedAt time.Time
}
