package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// NewRouter assembles the public HTTP surface. The session middleware runs
// on every route so even a bare health poke gets a cookie; the rate limit
// guards only the expensive submit endpoint.
func NewRouter(app *handlers.App, resolver geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.AllowedOrigins()),
		middleware.Session(app.Logger, resolver),
	)

	r.Get("/health", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute)).
			Post("/generate", app.Generate)
		r.Get("/jobs/{jobID}", app.JobStatus)
		r.Delete("/jobs/{jobID}", app.CancelJob)
		r.Get("/audio/{jobID}", app.Audio)
	})

	return r
}
