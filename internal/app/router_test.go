package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/config"
	"github.com/fairyhunter13/jobscout/internal/domain"
)

type fakeRuns struct {
	byID   map[string]domain.ScrapeRun
	recent []domain.ScrapeRun
}

func (f *fakeRuns) Create(domain.Context, domain.ScrapeRun) (string, error) { return "", nil }
func (f *fakeRuns) Finish(domain.Context, string, domain.ScrapeRunStatus, domain.RunCounters, []domain.RunError) error {
	return nil
}
func (f *fakeRuns) Get(_ domain.Context, id string) (domain.ScrapeRun, error) {
	run, ok := f.byID[id]
	if !ok {
		return domain.ScrapeRun{}, domain.ErrNotFound
	}
	return run, nil
}
func (f *fakeRuns) ListRecent(_ domain.Context, limit int) ([]domain.ScrapeRun, error) {
	if limit > len(f.recent) {
		limit = len(f.recent)
	}
	return f.recent[:limit], nil
}
func (f *fakeRuns) SweepStale(domain.Context, time.Time) (int, error) { return 0, nil }

func testRouter(runs *fakeRuns, checks Checks) http.Handler {
	cfg := config.Config{CORSAllowOrigins: "*", OpsRateLimitPerMin: 1000}
	return BuildRouter(cfg, runs, checks)
}

func TestParseOrigins(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		ParseOrigins(" https://a.example, https://b.example "))
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := testRouter(&fakeRuns{}, Checks{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestReadyz_AllOK(t *testing.T) {
	t.Parallel()
	ok := func(context.Context) error { return nil }
	h := testRouter(&fakeRuns{}, Checks{DB: ok, Redis: ok, Queue: ok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "ok", body["queue"])
}

func TestReadyz_FailingDependency(t *testing.T) {
	t.Parallel()
	h := testRouter(&fakeRuns{}, Checks{
		DB:    func(context.Context) error { return nil },
		Redis: func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["db"])
	assert.Contains(t, body["redis"], "refused")
	assert.NotContains(t, body, "queue", "unconfigured checks are skipped")
}

func TestListRuns(t *testing.T) {
	t.Parallel()
	runs := &fakeRuns{recent: []domain.ScrapeRun{
		{ID: "r2", Status: domain.RunSuccess, StartedAt: time.Now()},
		{ID: "r1", Status: domain.RunPartial, StartedAt: time.Now().Add(-time.Hour)},
	}}
	h := testRouter(runs, Checks{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []runResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "r2", body.Runs[0].ID)
	assert.Equal(t, "success", body.Runs[0].Status)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	t.Parallel()
	h := testRouter(&fakeRuns{}, Checks{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	t.Parallel()
	started := time.Now().Add(-time.Minute)
	runs := &fakeRuns{byID: map[string]domain.ScrapeRun{
		"r1": {
			ID:         "r1",
			Status:     domain.RunPartial,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Counters:   domain.RunCounters{MessagesFetched: 12, Errors: 1},
			Errors:     []domain.RunError{{Code: "flood_wait", Channel: "devjobs"}},
		},
	}}
	h := testRouter(runs, Checks{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "partial", body.Status)
	assert.Equal(t, 12, body.Counters.MessagesFetched)
	require.NotNil(t, body.FinishedAt)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
