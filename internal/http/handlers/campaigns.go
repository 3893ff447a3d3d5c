package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"adforge/internal/campaign"
	"adforge/internal/domain"
	"adforge/internal/export"
	"adforge/internal/media"
)

// Brief is not required here. Blank briefs are rejected by the orchestrator
// after the credential check.
type campaignRequest struct {
	Brief               string `json:"brief" validate:"max=8000"`
	ProceedWithoutImage bool   `json:"proceed_without_image"`
	ImageSource
}

type imageVariantResponse struct {
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	Description string `json:"description"`
	MIMEType    string `json:"mime_type"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	DataURL     string `json:"data_url,omitempty"`
}

type outcomeResponse struct {
	RunID      string                 `json:"run_id"`
	Brief      string                 `json:"brief"`
	Generic    bool                   `json:"generic"`
	Copy       *domain.CopyPackage    `json:"copy"`
	Images     []imageVariantResponse `json:"images"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

type currentResponse struct {
	Status campaign.Status  `json:"status"`
	Result *outcomeResponse `json:"result,omitempty"`
}

func newOutcomeResponse(o *domain.Outcome, inline bool) *outcomeResponse {
	if o == nil {
		return nil
	}
	resp := &outcomeResponse{
		RunID:      o.RunID,
		Brief:      o.Brief,
		Generic:    o.Generic,
		Copy:       o.Copy,
		Images:     make([]imageVariantResponse, 0, len(o.Images)),
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	for i, v := range o.Images {
		item := imageVariantResponse{
			Index:       i + 1,
			Kind:        string(v.Kind),
			Label:       v.Label,
			Description: v.Description,
			MIMEType:    v.Image.MIMEType,
			Filename:    export.ImageFilename(i, v),
			DownloadURL: fmt.Sprintf("/v1/campaigns/current/images/%d", i+1),
		}
		if inline {
			item.DataURL = media.EncodeDataURL(v.Image.Data, v.Image.MIMEType)
		}
		resp.Images = append(resp.Images, item)
	}
	return resp
}

// inlineImages reports whether the caller wants images embedded as data URLs.
// It defaults to true.
func inlineImages(r *http.Request) bool {
	v := r.URL.Query().Get("inline")
	if v == "" {
		return true
	}
	ok, err := strconv.ParseBool(v)
	return err != nil || ok
}

// CampaignRun runs one generation cycle and blocks until it settles. Without
// an image in the body the working reference image is used.
func (a *App) CampaignRun(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !a.decode(w, r, &req) {
		return
	}

	ref, err := a.resolve(r.Context(), req.ImageSource)
	if err != nil {
		a.failure(w, r, err)
		return
	}
	if ref != nil {
		if err := a.Orchestrator.SetReferenceImage(ref); err != nil {
			a.failure(w, r, err)
			return
		}
	} else {
		ref = a.Orchestrator.ReferenceImage()
	}

	outcome, err := a.Orchestrator.Run(r.Context(), domain.GenerationRequest{
		Brief:               req.Brief,
		ReferenceImage:      ref,
		ProceedWithoutImage: req.ProceedWithoutImage,
	})
	if err != nil {
		a.failure(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newOutcomeResponse(outcome, inlineImages(r)))
}

// CampaignCurrent reports the orchestrator status and the last result.
func (a *App) CampaignCurrent(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, currentResponse{
		Status: a.Orchestrator.Status(),
		Result: newOutcomeResponse(a.Orchestrator.Result(), inlineImages(r)),
	})
}

func (a *App) CampaignClear(w http.ResponseWriter, r *http.Request) {
	if err := a.Orchestrator.Clear(); err != nil {
		a.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CampaignImage downloads one generated image by its 1-based index.
func (a *App) CampaignImage(w http.ResponseWriter, r *http.Request) {
	outcome := a.Orchestrator.Result()
	if outcome == nil {
		a.error(w, http.StatusNotFound, "not_found", "no campaign result")
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 1 || idx > len(outcome.Images) {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	v := outcome.Images[idx-1]
	writeBinary(w, v.Image.MIMEType, v.Image.Data, export.ImageFilename(idx-1, v))
}

// CampaignArchive downloads the copy package and all images as one zip.
func (a *App) CampaignArchive(w http.ResponseWriter, r *http.Request) {
	outcome := a.Orchestrator.Result()
	if outcome == nil {
		a.error(w, http.StatusNotFound, "not_found", "no campaign result")
		return
	}
	archive, err := a.Exporter.Archive(outcome)
	if err != nil {
		a.requestLogger(r).Error().Err(err).Str("run_id", outcome.RunID).Msg("archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	writeBinary(w, "application/zip", archive, export.ArchiveFilename(outcome))
}
