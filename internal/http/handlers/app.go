package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"adforge/internal/campaign"
	"adforge/internal/export"
	"adforge/internal/infra"
	"adforge/internal/media"
	"adforge/internal/middleware"
)

// DefaultMaxBodyBytes bounds JSON and raw image request bodies when the
// config does not set one.
const DefaultMaxBodyBytes int64 = 25 << 20

// CredentialResetter forgets the persisted API credential.
type CredentialResetter interface {
	Clear(ctx context.Context) error
}

// App holds the dependencies of the HTTP handlers.
type App struct {
	Orchestrator *campaign.Orchestrator
	Exporter     *export.Exporter
	Fetcher      *media.Fetcher
	Credentials  CredentialResetter
	Logger       infra.Logger
	MaxBodyBytes int64

	validate *validator.Validate
}

func NewApp(orch *campaign.Orchestrator, exporter *export.Exporter, fetcher *media.Fetcher, creds CredentialResetter, cfg *infra.Config, logger infra.Logger) *App {
	maxBody := DefaultMaxBodyBytes
	if cfg != nil && cfg.MaxUploadBytes > 0 {
		maxBody = cfg.MaxUploadBytes
	}
	return &App{
		Orchestrator: orch,
		Exporter:     exporter,
		Fetcher:      fetcher,
		Credentials:  creds,
		Logger:       logger.With().Str("component", "http").Logger(),
		MaxBodyBytes: maxBody,
		validate:     newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code                 string `json:"code"`
	Message              string `json:"message"`
	InvalidateCredential bool   `json:"invalidate_credential,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// decode reads a JSON body into dst and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBody())
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", validationMessage(err))
		return false
	}
	return true
}

func (a *App) maxBody() int64 {
	if a.MaxBodyBytes > 0 {
		return a.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func (a *App) requestLogger(r *http.Request) *zerolog.Logger {
	log := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &log
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			parts = append(parts, fe.Field()+" is required")
		case "url", "http_url":
			parts = append(parts, fe.Field()+" must be a valid URL")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "excluded_with":
			parts = append(parts, fe.Field()+" cannot be combined with another image source")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
