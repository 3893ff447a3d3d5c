package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"adforge/internal/domain"
	"adforge/internal/media"
)

// ImageSource names an image either inline as a data URL or by URL.
type ImageSource struct {
	Image    string `json:"image,omitempty" validate:"omitempty,excluded_with=ImageURL"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,http_url"`
}

func (s ImageSource) empty() bool {
	return strings.TrimSpace(s.Image) == "" && strings.TrimSpace(s.ImageURL) == ""
}

type referenceRequest struct {
	ImageSource
}

type retouchRequest struct {
	Environment string `json:"environment" validate:"max=2000"`
}

type imageResponse struct {
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
	DataURL  string `json:"data_url,omitempty"`
}

// resolve turns an image source into a reference image. It returns nil, nil
// when the source is empty.
func (a *App) resolve(ctx context.Context, src ImageSource) (*domain.ReferenceImage, error) {
	switch {
	case strings.TrimSpace(src.Image) != "":
		img, err := media.ParseDataURL(src.Image)
		if err != nil {
			return nil, domain.WrapFailure(domain.KindInvalidRequest, err, fmt.Sprintf("Invalid reference image: %v.", err))
		}
		return img, nil
	case strings.TrimSpace(src.ImageURL) != "":
		if a.Fetcher == nil {
			return nil, domain.NewFailure(domain.KindInvalidRequest, "Fetching images by URL is disabled.")
		}
		img, err := a.Fetcher.Fetch(ctx, src.ImageURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, domain.ToFailure(err)
			}
			return nil, domain.WrapFailure(domain.KindInvalidRequest, err, fmt.Sprintf("Could not load reference image: %v.", err))
		}
		return img, nil
	}
	return nil, nil
}

// ReferenceSet replaces the working reference image. The body is either a raw
// image (Content-Type image/*) or JSON {"image": dataURL} / {"image_url": url}.
func (a *App) ReferenceSet(w http.ResponseWriter, r *http.Request) {
	var img *domain.ReferenceImage
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody()))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
				return
			}
			a.error(w, http.StatusBadRequest, "bad_request", "failed to read image")
			return
		}
		mimeType := media.SniffMIMEType(data)
		if !strings.HasPrefix(mimeType, "image/") {
			a.error(w, http.StatusBadRequest, string(domain.KindInvalidRequest), media.ErrNotImage.Error())
			return
		}
		img = &domain.ReferenceImage{Data: data, MIMEType: mimeType}
	} else {
		var req referenceRequest
		if !a.decode(w, r, &req) {
			return
		}
		if req.empty() {
			a.error(w, http.StatusBadRequest, "bad_request", "image or image_url is required")
			return
		}
		resolved, err := a.resolve(r.Context(), req.ImageSource)
		if err != nil {
			a.failure(w, r, err)
			return
		}
		img = resolved
	}

	if err := a.Orchestrator.SetReferenceImage(img); err != nil {
		a.failure(w, r, err)
		return
	}
	a.requestLogger(r).Info().Str("mime", img.MIMEType).Int("bytes", len(img.Data)).Msg("reference image set")
	a.json(w, http.StatusOK, imageResponse{MIMEType: img.MIMEType, Bytes: len(img.Data)})
}

// ReferenceGet streams the working reference image.
func (a *App) ReferenceGet(w http.ResponseWriter, r *http.Request) {
	img := a.Orchestrator.ReferenceImage()
	if img.IsZero() {
		a.error(w, http.StatusNotFound, "not_found", "no reference image")
		return
	}
	writeBinary(w, img.MIMEType, img.Data, "")
}

func (a *App) ReferenceClear(w http.ResponseWriter, r *http.Request) {
	a.Orchestrator.ClearReferenceImage()
	w.WriteHeader(http.StatusNoContent)
}

// ReferenceRetouch replaces the background of the working image.
func (a *App) ReferenceRetouch(w http.ResponseWriter, r *http.Request) {
	var req retouchRequest
	if !a.decode(w, r, &req) {
		return
	}
	edited, err := a.Orchestrator.RunBackgroundEdit(r.Context(), req.Environment)
	if err != nil {
		a.failure(w, r, err)
		return
	}
	a.json(w, http.StatusOK, imageResponse{
		MIMEType: edited.MIMEType,
		Bytes:    len(edited.Data),
		DataURL:  media.EncodeDataURL(edited.Data, edited.MIMEType),
	})
}

func writeBinary(w http.ResponseWriter, mimeType string, data []byte, attachment string) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
