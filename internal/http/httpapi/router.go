package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adforge/internal/http/handlers"
	"adforge/internal/infra"
	"adforge/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger.With().Str("component", "access").Logger()),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/credentials", func(r chi.Router) {
		r.Get("/", app.CredentialStatus)
		r.Post("/", app.CredentialSelect)
		r.Delete("/", app.CredentialClear)
	})

	generation := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Route("/v1/reference-image", func(r chi.Router) {
		r.Get("/", app.ReferenceGet)
		r.Put("/", app.ReferenceSet)
		r.Delete("/", app.ReferenceClear)
		r.With(generation).Post("/retouch", app.ReferenceRetouch)
	})

	r.Route("/v1/campaigns", func(r chi.Router) {
		r.With(generation).Post("/", app.CampaignRun)
		r.Route("/current", func(r chi.Router) {
			r.Get("/", app.CampaignCurrent)
			r.Delete("/", app.CampaignClear)
			r.Get("/images/{index}", app.CampaignImage)
			r.Get("/archive", app.CampaignArchive)
		})
	})

	return r
}
