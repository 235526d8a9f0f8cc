package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
	"github.com/couchcryptid/hazard-risk-service/internal/store"
)

const defaultTopN = 5

// SnapshotSource supplies the active rules snapshot.
type SnapshotSource interface {
	Current() *rules.Snapshot
}

// ResultStore is the read side of the latest-results store.
type ResultStore interface {
	Get(locationID string) (domain.RiskBundle, bool)
	GetOn(date, locationID string) (domain.RiskBundle, bool)
	Dates() []string
	List(f store.Filter) []domain.RiskBundle
	Top(f store.Filter, n int) []domain.RiskBundle
}

// Server exposes health, readiness, metrics and the read-only risk views.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotSource
	results    ResultStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the operational and /v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshots SnapshotSource, results ResultStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		results:   results,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/meta", s.handleMeta)
	mux.HandleFunc("GET /v1/filters", s.handleFilters)
	mux.HandleFunc("GET /v1/risk/locations", s.handleList)
	mux.HandleFunc("GET /v1/risk/locations/{id}", s.handleLocation)
	mux.HandleFunc("GET /v1/risk/top", s.handleTop)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type metaResponse struct {
	Version    string                                   `json:"version"`
	Sequence   uint64                                   `json:"sequence"`
	LoadedAt   time.Time                                `json:"loaded_at"`
	Thresholds rules.Thresholds                         `json:"thresholds"`
	Weights    map[domain.HazardType]map[string]float64 `json:"weights"`
	Priority   []domain.HazardType                      `json:"priority"`
	Locations  int                                      `json:"locations"`
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshots.Current()
	sharedobs.WriteJSON(w, http.StatusOK, metaResponse{
		Version:    snap.Version(),
		Sequence:   snap.Sequence(),
		LoadedAt:   snap.LoadedAt(),
		Thresholds: snap.Thresholds(),
		Weights:    snap.Weights(),
		Priority:   snap.HazardTypes(),
		Locations:  len(snap.LocationIDs()),
	})
}

type listResponse struct {
	Date    string              `json:"date,omitempty"`
	Count   int                 `json:"count"`
	Results []domain.RiskBundle `json:"results"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results := s.results.List(f)
	sharedobs.WriteJSON(w, http.StatusOK, listResponse{Date: f.Date, Count: len(results), Results: results})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		b  domain.RiskBundle
		ok bool
	)
	if date == "" {
		b, ok = s.results.Get(id)
	} else {
		b, ok = s.results.GetOn(date, id)
	}
	if !ok {
		err := fmt.Errorf("no assessment for location %q", id)
		if date != "" {
			err = fmt.Errorf("no assessment for location %q on %s", id, date)
		}
		writeError(w, http.StatusNotFound, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, b)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	n := defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid n %q: must be a positive integer", raw))
			return
		}
		n = v
	}
	f, err := s.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results := s.results.Top(f, n)
	sharedobs.WriteJSON(w, http.StatusOK, listResponse{Date: f.Date, Count: len(results), Results: results})
}

type enumField struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type rangeField struct {
	Type   string            `json:"type"`
	Params []string          `json:"params"`
	Hazard domain.HazardType `json:"hazard,omitempty"`
	Name   string            `json:"name,omitempty"`
	Min    float64           `json:"min"`
	Max    float64           `json:"max"`
}

type filtersResponse struct {
	Date    enumField    `json:"date"`
	Tier    enumField    `json:"tier"`
	Hazard  enumField    `json:"hazard"`
	Score   rangeField   `json:"score"`
	Factors []rangeField `json:"factors"`
}

// handleFilters describes the query parameters accepted by the list and top
// views. Factor ranges are bounded by the factor's configured weight.
func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshots.Current()

	tiers := make([]string, len(domain.Tiers))
	for i, t := range domain.Tiers {
		tiers[i] = string(t)
	}
	var hazards []string
	var factors []rangeField
	for _, h := range snap.HazardTypes() {
		hazards = append(hazards, string(h))
		rule, _ := snap.Hazard(h)
		for _, f := range rule.Factors {
			factors = append(factors, rangeField{
				Type:   "range",
				Params: []string{"min_" + f.Name, "max_" + f.Name},
				Hazard: h,
				Name:   f.Name,
				Max:    f.Weight,
			})
		}
	}

	sharedobs.WriteJSON(w, http.StatusOK, filtersResponse{
		Date:    enumField{Type: "date", Values: s.results.Dates()},
		Tier:    enumField{Type: "enum", Values: tiers},
		Hazard:  enumField{Type: "enum", Values: hazards},
		Score:   rangeField{Type: "range", Params: []string{"min_score", "max_score"}, Max: 1},
		Factors: factors,
	})
}

// parseFilter reads date, tier, hazard, min_score, max_score and
// min_<factor>/max_<factor> query parameters. Factor names must exist in the
// active snapshot.
func (s *Server) parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter

	var err error
	if f.Date, err = parseDate(q.Get("date")); err != nil {
		return store.Filter{}, err
	}
	if raw := q.Get("tier"); raw != "" {
		for part := range strings.SplitSeq(raw, ",") {
			tier, err := domain.ParseTier(part)
			if err != nil {
				return store.Filter{}, err
			}
			f.Tiers = append(f.Tiers, tier)
		}
	}
	if raw := q.Get("hazard"); raw != "" {
		h, err := domain.ParseHazardType(raw)
		if err != nil {
			return store.Filter{}, err
		}
		f.Hazard = h
	}

	if f.MinScore, f.MaxScore, err = parseRange(q.Get("min_score"), q.Get("max_score"), "score"); err != nil {
		return store.Filter{}, err
	}
	if f.Factors, err = s.parseFactorRanges(q); err != nil {
		return store.Filter{}, err
	}
	return f, nil
}

func (s *Server) parseFactorRanges(q url.Values) ([]store.FactorRange, error) {
	known := make(map[string]bool)
	for _, factors := range s.snapshots.Current().Weights() {
		for name := range factors {
			known[name] = true
		}
	}

	names := make(map[string]bool)
	for key := range q {
		name, ok := strings.CutPrefix(key, "min_")
		if !ok {
			name, ok = strings.CutPrefix(key, "max_")
		}
		if !ok || name == "score" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown factor filter %q", key)
		}
		names[name] = true
	}

	ranges := make([]store.FactorRange, 0, len(names))
	for name := range names {
		lo, hi, err := parseRange(q.Get("min_"+name), q.Get("max_"+name), name)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, store.FactorRange{Name: name, Min: lo, Max: hi})
	}
	slices.SortFunc(ranges, func(a, b store.FactorRange) int { return strings.Compare(a.Name, b.Name) })
	return ranges, nil
}

func parseRange(rawMin, rawMax, name string) (*float64, *float64, error) {
	lo, err := parseScore(rawMin, "min_"+name)
	if err != nil {
		return nil, nil, err
	}
	hi, err := parseScore(rawMax, "max_"+name)
	if err != nil {
		return nil, nil, err
	}
	if lo != nil && hi != nil && *lo > *hi {
		return nil, nil, fmt.Errorf("min_%s %g is greater than max_%s %g", name, *lo, name, *hi)
	}
	return lo, hi, nil
}

func parseDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return d.Format(time.DateOnly), nil
}

func parseScore(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return nil, fmt.Errorf("invalid %s %q: must be a number in [0,1]", name, raw)
	}
	return &v, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
