package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

const maxRunsPageSize = 100

// Check is one readiness probe against a backing service.
type Check func(ctx context.Context) error

// Checks names the readiness probes mounted on /readyz. Nil entries are
// skipped, so each binary registers only the services it actually uses.
type Checks struct {
	DB    Check
	Redis Check
	Queue Check
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}

// ReadyzHandler probes every configured check with a short per-check
// deadline and reports per-service status.
func ReadyzHandler(checks Checks) http.HandlerFunc {
	probes := []struct {
		name  string
		check Check
	}{
		{"db", checks.DB},
		{"redis", checks.Redis},
		{"queue", checks.Queue},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		out := map[string]string{}
		for _, p := range probes {
			if p.check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := p.check(ctx)
			cancel()
			if err != nil {
				out[p.name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				out[p.name] = "ok"
			}
		}
		writeJSON(w, status, out)
	}
}

type runResponse struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Counters   domain.RunCounters `json:"counters"`
	Errors     []domain.RunError  `json:"errors,omitempty"`
}

func toRunResponse(run domain.ScrapeRun) runResponse {
	resp := runResponse{
		ID:        run.ID,
		Status:    string(run.Status),
		StartedAt: run.StartedAt,
		Counters:  run.Counters,
		Errors:    run.Errors,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

// ListRunsHandler serves recent scrape runs, newest first.
func ListRunsHandler(runs domain.ScrapeRunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxRunsPageSize {
				writeError(w, http.StatusBadRequest, "invalid_argument", "limit must be 1..100")
				return
			}
			limit = n
		}
		list, err := runs.ListRecent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to list runs")
			return
		}
		out := make([]runResponse, 0, len(list))
		for _, run := range list {
			out = append(out, toRunResponse(run))
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": out})
	}
}

// GetRunHandler serves a single scrape run by id.
func GetRunHandler(runs domain.ScrapeRunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := runs.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		writeJSON(w, http.StatusOK, toRunResponse(run))
	}
}
