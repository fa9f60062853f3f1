package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/domain"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. An empty input means allow all.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the ops HTTP handler: probes, metrics and the
// read-only run API.
func BuildRouter(cfg config.Config, runs domain.ScrapeRunRepository, checks Checks) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer())
	r.Use(RequestID())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(AccessLog())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(api chi.Router) {
		api.Use(httprate.LimitByIP(cfg.OpsRateLimitPerMin, time.Minute))
		api.Get("/v1/runs", ListRunsHandler(runs))
		api.Get("/v1/runs/{id}", GetRunHandler(runs))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyzHandler(checks))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return SecurityHeaders(r)
}
