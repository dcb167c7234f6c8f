package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/export"
	"github.com/castleryder/dividend-harvest/internal/harvest"
	"github.com/castleryder/dividend-harvest/internal/history"
	"github.com/castleryder/dividend-harvest/internal/search"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// HarvestService is the cached pipeline behind the harvest endpoints
type HarvestService interface {
	GetDividendHarvest(ctx context.Context) (*harvest.Result, error)
	Refresh(ctx context.Context) (*harvest.Result, error)
	Latest(ctx context.Context) (*harvest.Result, error)
}

// Searcher matches records of the latest result set
type Searcher interface {
	Search(q string, limit int) ([]contracts.CanonicalRecord, error)
}

// RunHistory lists stored runs
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]history.RunSummary, error)
	GetRunRecords(ctx context.Context, runID string, limit int) ([]contracts.CanonicalRecord, error)
}

// Mirror reads a result set copied to a shared cache by another process
type Mirror interface {
	Latest(ctx context.Context, provider string) (*contracts.ResultSet, bool, error)
}

// HarvestHandler handles the dividend harvest endpoints
// ⭐ SSOT: harvest API handlers live in this struct only
type HarvestHandler struct {
	service  HarvestService
	searcher Searcher
	runs     RunHistory
	mirror   Mirror
	provider string
	logger   *logger.Logger
}

// NewHarvestHandler creates a harvest handler. searcher and runs may be nil.
func NewHarvestHandler(service HarvestService, searcher Searcher, runs RunHistory, log *logger.Logger) *HarvestHandler {
	return &HarvestHandler{
		service:  service,
		searcher: searcher,
		runs:     runs,
		logger:   log,
	}
}

// WithMirror serves the mirrored result set of provider when nothing is on
// disk or the upstream fails
func (h *HarvestHandler) WithMirror(mirror Mirror, provider string) *HarvestHandler {
	h.mirror = mirror
	h.provider = provider
	return h
}

// HasHistory reports whether run history endpoints are available
func (h *HarvestHandler) HasHistory() bool {
	return h.runs != nil
}

// GetHarvest returns the current result set, running the pipeline when the
// cache is stale. A cached body is served exactly as persisted.
// GET /api/harvest
func (h *HarvestHandler) GetHarvest(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetDividendHarvest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get dividend harvest")
		if rs, ok := h.fromMirror(r.Context()); ok {
			w.Header().Set("X-Harvest-Cache", "mirror")
			respondJSON(w, http.StatusOK, rs)
			return
		}
		respondError(w, http.StatusBadGateway, "Failed to compute dividend harvest")
		return
	}
	respondResult(w, http.StatusOK, res)
}

// Refresh forces a pipeline run
// POST /api/harvest/refresh
func (h *HarvestHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Refresh(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to refresh dividend harvest")
		respondError(w, http.StatusBadGateway, "Failed to refresh dividend harvest")
		return
	}
	respondResult(w, http.StatusOK, res)
}

// SummaryResponse is the dashboard headline
type SummaryResponse struct {
	RunID          string            `json:"run_id"`
	Provider       string            `json:"provider"`
	EvaluationDate contracts.Date    `json:"evaluation_date"`
	WrittenAt      time.Time         `json:"written_at"`
	Scanned        int               `json:"scanned"`
	Excluded       map[string]int    `json:"excluded"`
	Summary        contracts.Summary `json:"summary"`
}

// GetSummary returns dashboard metrics of the persisted result set
// GET /api/harvest/summary
func (h *HarvestHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.latest(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, SummaryResponse{
		RunID:          rs.RunID,
		Provider:       rs.Provider,
		EvaluationDate: rs.EvaluationDate,
		WrittenAt:      rs.WrittenAt,
		Scanned:        rs.Scanned,
		Excluded:       rs.Excluded,
		Summary:        rs.Summarize(),
	})
}

// ExportCSV streams the persisted result set as a CSV attachment
// GET /api/harvest/export.csv
func (h *HarvestHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.latest(w, r)
	if !ok {
		return
	}

	data, err := export.Encode(rs)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode CSV export")
		respondError(w, http.StatusInternalServerError, "Failed to encode export")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(rs.EvaluationDate)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetRecord returns one record of the persisted result set by code
// GET /api/harvest/records/{code}
func (h *HarvestHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"]))

	rs, ok := h.latest(w, r)
	if !ok {
		return
	}

	rec, found := rs.Find(code)
	if !found {
		respondError(w, http.StatusNotFound, "Stock "+code+" is not in the latest harvest")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Search finds records of the latest result set by code, name or sector
// GET /api/harvest/search?q=&limit=
func (h *HarvestHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		respondError(w, http.StatusServiceUnavailable, "Search is not enabled")
		return
	}

	limit := parseLimit(r, search.DefaultLimit)
	hits, err := h.searcher.Search(r.URL.Query().Get("q"), limit)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			respondError(w, http.StatusBadRequest, "Query parameter q is required")
			return
		}
		h.logger.WithError(err).Error("Search failed")
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   r.URL.Query().Get("q"),
		"count":   len(hits),
		"records": hits,
	})
}

// ListRuns returns recent runs, newest first
// GET /api/runs?limit=
func (h *HarvestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history is not configured")
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), parseLimit(r, 20))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns the records of one stored run
// GET /api/runs/{id}?limit=
func (h *HarvestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history is not configured")
		return
	}

	records, err := h.runs.GetRunRecords(r.Context(), runID, parseLimit(r, 0))
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get run records")
		respondError(w, http.StatusInternalServerError, "Failed to get run records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"count":   len(records),
		"records": records,
	})
}

func (h *HarvestHandler) latest(w http.ResponseWriter, r *http.Request) (*contracts.ResultSet, bool) {
	res, err := h.service.Latest(r.Context())
	if err != nil {
		if errors.Is(err, harvest.ErrNoSnapshot) {
			if rs, ok := h.fromMirror(r.Context()); ok {
				return rs, true
			}
			respondError(w, http.StatusNotFound, "No harvest has been run yet")
			return nil, false
		}
		h.logger.WithError(err).Error("Failed to read latest harvest")
		respondError(w, http.StatusInternalServerError, "Failed to read latest harvest")
		return nil, false
	}
	return res.ResultSet, true
}

// fromMirror is best-effort: a mirror error counts as not found
func (h *HarvestHandler) fromMirror(ctx context.Context) (*contracts.ResultSet, bool) {
	if h.mirror == nil {
		return nil, false
	}
	rs, found, err := h.mirror.Latest(ctx, h.provider)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read mirrored harvest")
		return nil, false
	}
	return rs, found
}

func parseLimit(r *http.Request, def int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

// respondResult writes the persisted bytes of a result untouched
func respondResult(w http.ResponseWriter, status int, res *harvest.Result) {
	cache := "miss"
	if res.FromCache {
		cache = "hit"
	}
	w.Header().Set("X-Harvest-Cache", cache)
	w.Header().Set("X-Harvest-Age", strconv.Itoa(int(res.Age.Seconds())))

	if len(res.Raw) == 0 {
		respondJSON(w, status, res.ResultSet)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(res.Raw)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
