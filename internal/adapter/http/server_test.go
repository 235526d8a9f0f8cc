package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/hazard-risk-service/internal/adapter/http"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/observability"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
	"github.com/couchcryptid/hazard-risk-service/internal/rules/rulestest"
	"github.com/couchcryptid/hazard-risk-service/internal/store"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticSnapshots struct{ snap *rules.Snapshot }

func (s staticSnapshots) Current() *rules.Snapshot { return s.snap }

var (
	assessedAt = time.Date(2024, 5, 2, 12, 5, 0, 0, time.UTC)
	today      = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	yesterday  = today.AddDate(0, 0, -1)
)

func bundle(id string, day time.Time, tier domain.Tier, score float64, scores ...domain.HazardScore) domain.RiskBundle {
	return domain.RiskBundle{
		LocationID: id,
		Scores:     scores,
		Tier: domain.RiskTier{
			LocationID: id,
			Tier:       tier,
			Dominant:   domain.HazardFlood,
			Score:      score,
			Window:     domain.ForecastWindow{Start: day, End: day.Add(72 * time.Hour)},
		},
		AssessedAt: assessedAt,
	}
}

func flood(score float64, precipitation float64) domain.HazardScore {
	return domain.HazardScore{
		Hazard:  domain.HazardFlood,
		Score:   score,
		Factors: map[string]float64{"precipitation_24h": precipitation},
	}
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	latest := store.NewLatest(observability.NewMetricsForTesting())
	latest.Put(
		bundle("canoas-centro", yesterday, domain.TierModerate, 0.3, flood(0.3, 0.1)),
		bundle("canoas-centro", today, domain.TierCritical, 0.954,
			flood(0.954, 0.5),
			domain.HazardScore{Hazard: domain.HazardHeat, Score: 0.2}),
		bundle("canoas-mathias-velho", today, domain.TierHigh, 0.61, flood(0.61, 0.2)),
		bundle("canoas-niteroi", today, domain.TierLow, 0.12,
			domain.HazardScore{Hazard: domain.HazardHeat, Score: 0.12}),
	)
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr},
		staticSnapshots{rulestest.New(t)}, latest, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type listBody struct {
	Date    string              `json:"date"`
	Count   int                 `json:"count"`
	Results []domain.RiskBundle `json:"results"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var body listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, body.Count, len(body.Results))
	ids := make([]string, len(body.Results))
	for i, b := range body.Results {
		ids[i] = b.LocationID
	}
	return ids
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(t, fmt.Errorf("not ready yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMeta(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/v1/meta")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version    string                        `json:"version"`
		Sequence   uint64                        `json:"sequence"`
		LoadedAt   time.Time                     `json:"loaded_at"`
		Thresholds map[string]float64            `json:"thresholds"`
		Weights    map[string]map[string]float64 `json:"weights"`
		Priority   []string                      `json:"priority"`
		Locations  int                           `json:"locations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Regexp(t, `^1-[0-9a-f]{12}$`, body.Version)
	assert.Equal(t, uint64(1), body.Sequence)
	assert.Equal(t, rulestest.LoadedAt, body.LoadedAt)
	assert.Equal(t, map[string]float64{"moderate": 0.25, "high": 0.5, "critical": 0.75}, body.Thresholds)
	assert.InDelta(t, 0.5, body.Weights["flood"]["precipitation_24h"], 1e-9)
	assert.Equal(t, []string{"flood", "heat", "drought"}, body.Priority)
	assert.Equal(t, 3, body.Locations)
}

func TestListLocations(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"canoas-centro", "canoas-mathias-velho", "canoas-niteroi"}},
		{"single tier", "?tier=critical", []string{"canoas-centro"}},
		{"tier list", "?tier=low,HIGH", []string{"canoas-mathias-velho", "canoas-niteroi"}},
		{"score range", "?min_score=0.5&max_score=0.7", []string{"canoas-mathias-velho"}},
		{"hazard", "?hazard=heat", []string{"canoas-centro", "canoas-niteroi"}},
		{"hazard score", "?hazard=heat&min_score=0.15", []string{"canoas-centro"}},
		{"date", "?date=2024-05-01", []string{"canoas-centro"}},
		{"date with tier", "?date=2024-05-01&tier=critical", []string{}},
		{"date without data", "?date=2023-01-01", []string{}},
		{"factor min", "?min_precipitation_24h=0.4", []string{"canoas-centro"}},
		{"factor max", "?max_precipitation_24h=0.3", []string{"canoas-mathias-velho"}},
		{"factor on date", "?date=2024-05-01&max_precipitation_24h=0.3", []string{"canoas-centro"}},
		{"factor absent", "?min_temperature_max=0", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/v1/risk/locations"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, decodeList(t, rec))
		})
	}
}

func TestListLocations_BadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, query := range []string{
		"?tier=severe",
		"?hazard=tsunami",
		"?min_score=abc",
		"?max_score=1.5",
		"?min_score=0.8&max_score=0.2",
		"?date=yesterday",
		"?date=2024-13-01",
		"?min_hail_index=0.1",
		"?min_precipitation_24h=2",
		"?min_precipitation_24h=0.5&max_precipitation_24h=0.1",
	} {
		t.Run(query, func(t *testing.T) {
			rec := get(t, srv, "/v1/risk/locations"+query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetLocation(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := get(t, srv, "/v1/risk/locations/canoas-centro")
	require.Equal(t, http.StatusOK, rec.Code)
	var b domain.RiskBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, domain.TierCritical, b.Tier.Tier)
	assert.Equal(t, assessedAt, b.AssessedAt)

	rec = get(t, srv, "/v1/risk/locations/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLocation_ByDate(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := get(t, srv, "/v1/risk/locations/canoas-centro?date=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)
	var b domain.RiskBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, domain.TierModerate, b.Tier.Tier)

	rec = get(t, srv, "/v1/risk/locations/canoas-niteroi?date=2024-05-01")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, srv, "/v1/risk/locations/canoas-centro?date=05/01/2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTop(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := get(t, srv, "/v1/risk/top?n=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"canoas-centro", "canoas-mathias-velho"}, decodeList(t, rec))

	rec = get(t, srv, "/v1/risk/top")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 3)

	rec = get(t, srv, "/v1/risk/top?n=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/v1/risk/top?n=2&date=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"canoas-centro"}, decodeList(t, rec))

	rec = get(t, srv, "/v1/risk/top?date=2024-02-30")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilters(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/v1/filters")
	require.Equal(t, http.StatusOK, rec.Code)

	type field struct {
		Type   string   `json:"type"`
		Values []string `json:"values"`
		Params []string `json:"params"`
		Hazard string   `json:"hazard"`
		Name   string   `json:"name"`
		Min    float64  `json:"min"`
		Max    float64  `json:"max"`
	}
	var body struct {
		Date    field   `json:"date"`
		Tier    field   `json:"tier"`
		Hazard  field   `json:"hazard"`
		Score   field   `json:"score"`
		Factors []field `json:"factors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, []string{"2024-05-01", "2024-05-02"}, body.Date.Values)
	assert.Equal(t, []string{"low", "moderate", "high", "critical"}, body.Tier.Values)
	assert.Equal(t, []string{"flood", "heat", "drought"}, body.Hazard.Values)
	assert.Equal(t, []string{"min_score", "max_score"}, body.Score.Params)
	assert.InDelta(t, 1.0, body.Score.Max, 1e-9)

	require.Len(t, body.Factors, 7)
	precip := body.Factors[0]
	assert.Equal(t, "precipitation_24h", precip.Name)
	assert.Equal(t, "flood", precip.Hazard)
	assert.Equal(t, "range", precip.Type)
	assert.Equal(t, []string{"min_precipitation_24h", "max_precipitation_24h"}, precip.Params)
	assert.InDelta(t, 0.5, precip.Max, 1e-9)
}
