// Package api exposes verse stats and activity analytics over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/versetype/internal/activity"
	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
	"github.com/verte-zerg/versetype/internal/store"
)

const maxBodyBytes = 4 << 20

// Handler serves the HTTP endpoints.
type Handler struct {
	aggregator *activity.Aggregator
	recorder   *activity.Recorder
	source     stats.Source
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler constructs a Handler. source feeds the analytics endpoint.
func NewHandler(aggregator *activity.Aggregator, recorder *activity.Recorder, source stats.Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		aggregator: aggregator,
		recorder:   recorder,
		source:     source,
		logger:     logger,
		now:        time.Now,
	}
}

// verseStatsResponse carries nil stats for untrustworthy input. Reason is
// set only when the payload failed validation.
type verseStatsResponse struct {
	Stats  *model.VerseStats `json:"stats"`
	Reason string            `json:"reason,omitempty"`
}

// POST /verse-stats
func (h *Handler) verseStats(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	resp := verseStatsResponse{}
	if data, err := stats.ParseTypingData(raw); err != nil {
		resp.Reason = err.Error()
	} else {
		resp.Stats = stats.CalculateStatsForVerse(data)
	}
	respondJSON(w, resp, http.StatusOK)
}

type recordVerseRequest struct {
	Book       string          `json:"book"`
	Chapter    int             `json:"chapter"`
	Verse      int             `json:"verse"`
	CreatedAt  *time.Time      `json:"createdAt"`
	TypingData json.RawMessage `json:"typingData"`
}

// recordVerseResponse carries the submission. Reason is set when the typing
// data failed validation and the verse was counted without stats.
type recordVerseResponse struct {
	activity.Submission
	Reason string `json:"reason,omitempty"`
}

// POST /users/{userID}/verses
func (h *Handler) recordVerse(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req recordVerseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Book == "" || req.Chapter <= 0 || req.Verse <= 0 {
		respondError(w, "book, chapter and verse are required", http.StatusBadRequest)
		return
	}
	var reason string
	data, err := stats.ParseTypingData(req.TypingData)
	if err != nil {
		reason = err.Error()
		h.logger.Warn("typing data rejected, counting verse without stats", "user", userID, "error", err)
	}
	tv := model.TypedVerse{
		UserID:     userID,
		Book:       req.Book,
		Chapter:    req.Chapter,
		Verse:      req.Verse,
		CreatedAt:  h.now().UTC(),
		TypingData: data,
	}
	if req.CreatedAt != nil {
		tv.CreatedAt = req.CreatedAt.UTC()
	}

	sub, err := h.recorder.RecordTypedVerse(r.Context(), tv)
	if err != nil {
		h.logger.Error("record verse failed", "user", userID, "error", err)
		respondError(w, "failed to record verse", http.StatusInternalServerError)
		return
	}
	respondJSON(w, recordVerseResponse{Submission: sub, Reason: reason}, http.StatusCreated)
}

// GET /users/{userID}/daily-activity
func (h *Handler) dailyActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if day := r.URL.Query().Get("date"); day != "" {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			respondError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		row, err := h.aggregator.GetDay(r.Context(), userID, t)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, "no activity on "+day, http.StatusNotFound)
			return
		}
		if err != nil {
			h.logger.Error("load daily activity failed", "user", userID, "error", err)
			respondError(w, "failed to load daily activity", http.StatusInternalServerError)
			return
		}
		respondJSON(w, row, http.StatusOK)
		return
	}

	rows, err := h.aggregator.GetByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("list daily activity failed", "user", userID, "error", err)
		respondError(w, "failed to load daily activity", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.DailyActivityRow{}
	}
	respondJSON(w, rows, http.StatusOK)
}

type analyticsResponse struct {
	Range    model.TimeRange         `json:"range"`
	Interval model.Interval          `json:"interval"`
	Source   model.ChartSource       `json:"source"`
	Start    string                  `json:"start"`
	End      string                  `json:"end"`
	Buckets  []model.AggregatedStats `json:"buckets"`
}

// GET /users/{userID}/analytics?range=&interval=&source=
func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	cfg, err := chartConfigFromQuery(chi.URLParam(r, "userID"), r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := stats.BuildReport(r.Context(), h.source, cfg, h.now())
	if err != nil {
		h.logger.Error("build analytics failed", "user", cfg.UserID, "error", err)
		respondError(w, "failed to build analytics", http.StatusInternalServerError)
		return
	}
	respondJSON(w, analyticsResponse{
		Range:    cfg.Range,
		Interval: cfg.Interval,
		Source:   cfg.Source,
		Start:    report.Start.Format("2006-01-02"),
		End:      report.End.Format("2006-01-02"),
		Buckets:  report.Buckets,
	}, http.StatusOK)
}

func chartConfigFromQuery(userID string, r *http.Request) (model.ChartConfig, error) {
	q := r.URL.Query()
	cfg := model.ChartConfig{
		UserID:   userID,
		Range:    model.RangeWeek,
		Interval: model.IntervalDaily,
		Source:   model.SourceDaily,
	}
	var err error
	if v := q.Get("range"); v != "" {
		if cfg.Range, err = model.ParseTimeRange(v); err != nil {
			return model.ChartConfig{}, err
		}
	}
	if v := q.Get("interval"); v != "" {
		if cfg.Interval, err = model.ParseInterval(v); err != nil {
			return model.ChartConfig{}, err
		}
	}
	if v := q.Get("source"); v != "" {
		if cfg.Source, err = model.ParseChartSource(v); err != nil {
			return model.ChartConfig{}, err
		}
	}
	return cfg, nil
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
