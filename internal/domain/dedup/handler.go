package dedup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/dedup/internal/platform/dataset"
	"github.com/ehr/dedup/internal/platform/history"
	"github.com/ehr/dedup/internal/platform/similarity"
	"github.com/ehr/dedup/pkg/pagination"
)

// TestInput is one test result in a deduplication request.
type TestInput struct {
	ID      dataset.Value `json:"id"`
	Outcome string        `json:"outcome"`
}

// ConfigOverrides replaces the server defaults for one request. Nil fields
// keep the default.
type ConfigOverrides struct {
	ThresholdFields         []string `json:"threshold_fields,omitempty"`
	SimilarityFields        []string `json:"similarity_fields,omitempty"`
	GroupingFields          []string `json:"grouping_fields,omitempty"`
	SimilarityConfidence    *float64 `json:"similarity_confidence,omitempty"`
	DuplicateRatioThreshold *float64 `json:"duplicate_ratio_threshold,omitempty"`
	RemoveIDDuplicates      *bool    `json:"remove_id_duplicates,omitempty"`
	IDField                 *string  `json:"id_field,omitempty"`
	Metric                  *string  `json:"metric,omitempty"`
}

// DeduplicateRequest is the body of POST /deduplicate.
type DeduplicateRequest struct {
	// Columns fixes the column order; when empty it is the sorted union of
	// the record keys.
	Columns []string         `json:"columns"`
	Records []dataset.Record `json:"records"`
	Tests   []TestInput      `json:"tests"`
	// Prepare derives full_name, full_address, localisation and born_age
	// before deduplicating.
	Prepare bool             `json:"prepare"`
	Config  *ConfigOverrides `json:"config,omitempty"`
}

// DeduplicateResponse is the body returned by POST /deduplicate.
type DeduplicateResponse struct {
	RunID       string           `json:"run_id"`
	RequestID   string           `json:"request_id,omitempty"`
	Columns     []string         `json:"columns"`
	Records     []dataset.Record `json:"records"`
	InputRows   int              `json:"input_rows"`
	RemovalRate float64          `json:"removal_rate"`
	Removed     []int            `json:"removed"`
	Passes      []PassStats      `json:"passes"`
}

type Handler struct {
	defaults   Config
	metricName string
	runs       RunRepository
	logger     zerolog.Logger
}

// NewHandler serves deduplication requests with defaults as the base
// configuration. runs may be nil, in which case runs are not recorded and the
// history endpoints answer 404.
func NewHandler(defaults Config, metricName string, runs RunRepository, logger zerolog.Logger) *Handler {
	return &Handler{
		defaults:   defaults,
		metricName: metricName,
		runs:       runs,
		logger:     logger.With().Str("component", "dedup-api").Logger(),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/deduplicate", h.Deduplicate)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id", h.GetRun)
}

func (h *Handler) Deduplicate(c echo.Context) error {
	var req DeduplicateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cfg, metricName, err := h.resolveConfig(req.Config)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ds, err := dataset.New(requestColumns(req), req.Records)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Prepare {
		ds = dataset.PreparePatients(ds)
	}

	results := dataset.NewTestResults()
	for i, t := range req.Tests {
		if t.ID.IsNull() {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tests[%d]: id is required", i))
		}
		outcome, err := dataset.ParseOutcome(t.Outcome)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("tests[%d]: %v", i, err))
		}
		results.Add(t.ID, outcome)
	}

	// Request ids may be chosen by the caller and repeat; run ids may not.
	runID := uuid.New().String()
	requestID, _ := c.Get("request_id").(string)

	ctx := c.Request().Context()
	started := time.Now()
	res, err := NewDeduplicatorWithLogger(cfg, h.logger.With().Str("run_id", runID).Str("request_id", requestID).Logger()).Deduplicate(ctx, ds, results)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidConfig):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "deduplication cancelled")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	if h.runs != nil {
		meta := RunMeta{ID: runID, RequestID: requestID, Source: "api", Metric: metricName, StartedAt: started, FinishedAt: time.Now()}
		if _, err := h.runs.Record(ctx, RunRecord(meta, cfg, res)); err != nil {
			h.logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record run")
		}
	}

	return c.JSON(http.StatusOK, DeduplicateResponse{
		RunID:       runID,
		RequestID:   requestID,
		Columns:     res.Dataset.Columns(),
		Records:     res.Dataset.Records(),
		InputRows:   res.InputRows,
		RemovalRate: res.RemovalRate,
		Removed:     res.Removed.Sorted(),
		Passes:      res.Passes,
	})
}

func (h *Handler) ListRuns(c echo.Context) error {
	if h.runs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	pg := pagination.FromContext(c)
	runs, total, err := h.runs.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(runs, total, pg, c.Request().URL.Path))
}

func (h *Handler) GetRun(c echo.Context) error {
	if h.runs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	run, err := h.runs.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// resolveConfig applies o on top of the handler defaults.
func (h *Handler) resolveConfig(o *ConfigOverrides) (Config, string, error) {
	cfg := h.defaults
	name := h.metricName
	if o == nil {
		return cfg, name, nil
	}
	if o.ThresholdFields != nil {
		cfg.ThresholdFields = o.ThresholdFields
	}
	if o.SimilarityFields != nil {
		cfg.SimilarityFields = o.SimilarityFields
	}
	if o.GroupingFields != nil {
		cfg.GroupingFields = o.GroupingFields
	}
	if o.SimilarityConfidence != nil {
		cfg.SimilarityConfidence = *o.SimilarityConfidence
	}
	if o.DuplicateRatioThreshold != nil {
		cfg.DuplicateRatioThreshold = *o.DuplicateRatioThreshold
	}
	if o.RemoveIDDuplicates != nil {
		cfg.RemoveIDDuplicates = *o.RemoveIDDuplicates
	}
	if o.IDField != nil {
		cfg.IDField = *o.IDField
	}
	if o.Metric != nil {
		m, err := similarity.ByName(*o.Metric)
		if err != nil {
			return Config{}, "", err
		}
		cfg.Metric = m
		name = *o.Metric
	}
	return cfg, name, nil
}

func requestColumns(req DeduplicateRequest) []string {
	if len(req.Columns) > 0 {
		return req.Columns
	}
	seen := make(map[string]bool)
	var cols []string
	for _, r := range req.Records {
		for col := range r.Values {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
