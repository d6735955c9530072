package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/internal/risk"
)

// Analyzer 핸들러가 사용하는 분석기 (cache.Analyzer 구현)
type Analyzer interface {
	Analyze(ctx context.Context, req engine.Request) (*contracts.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, reqs []engine.Request, concurrency int) ([]engine.BatchResult, error)
	Invalidate(ctx context.Context, code string) error
	ConfigHash() string
	Config() *analysisconfig.Config
}

// ExternalSource 종목별 외부 리스크 값 공급자 (pricedata.FlowRepository 구현)
type ExternalSource interface {
	ExternalValues(ctx context.Context, code string, asOf time.Time) (map[string]float64, error)
}

// Options 핸들러 실행 옵션
type Options struct {
	MaxBodyBytes int64
	Timeout      time.Duration
	Concurrency  int
}

// AnalysisHandler handles analysis API endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	analyzer Analyzer
	source   contracts.PriceHistorySource
	external ExternalSource
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

// NewAnalysisHandler creates a new analysis handler
// source/external이 nil이면 저장 이력 기반 엔드포인트는 503
func NewAnalysisHandler(analyzer Analyzer, source contracts.PriceHistorySource, external ExternalSource, opts Options, log zerolog.Logger) *AnalysisHandler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = engine.DefaultConcurrency
	}
	return &AnalysisHandler{
		analyzer: analyzer,
		source:   source,
		external: external,
		opts:     opts,
		log:      log.With().Str("component", "analysis_handler").Logger(),
		now:      time.Now,
	}
}

// Analyze analyzes an inline price series
// POST /api/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeRequest
	if errs := decodeAndValidate(r, h.opts.MaxBodyBytes, &body); errs != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST", Details: errs})
		return
	}

	req, err := body.ToEngine()
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	result, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		h.logFailure(err, body.Code)
		respondAnalysisError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// AnalyzeBatch analyzes several inline price series in parallel
// POST /api/analyze/batch
func (h *AnalysisHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if errs := decodeAndValidate(r, h.opts.MaxBodyBytes, &body); errs != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "INVALID_REQUEST", Details: errs})
		return
	}

	reqs := make([]engine.Request, len(body.Requests))
	for i := range body.Requests {
		req, err := body.Requests[i].ToEngine()
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		reqs[i] = req
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	results, err := h.analyzer.AnalyzeBatch(ctx, reqs, h.opts.Concurrency)
	if err != nil {
		respondAnalysisError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// AnalyzeStored analyzes an instrument from the configured price history source
// GET /api/analyze/{code}?days=&profile=&current_price=
func (h *AnalysisHandler) AnalyzeStored(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "code is required")
		return
	}
	if h.source == nil {
		respondError(w, http.StatusServiceUnavailable, "NO_SOURCE", "price history source not configured")
		return
	}

	q, errs := parseHistoryQuery(r)
	if errs != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid query", Code: "INVALID_REQUEST", Details: errs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	to := h.now()
	from := to.AddDate(0, 0, -q.Days)

	series, err := h.source.GetSeries(ctx, code, from, to)
	if err != nil {
		h.logFailure(err, code)
		respondAnalysisError(w, err)
		return
	}

	req := engine.Request{Code: code, Series: series, CurrentPrice: q.CurrentPrice, Profile: q.Profile}

	if h.external != nil {
		if last, ok := series.Latest(); ok {
			values, err := h.external.ExternalValues(ctx, code, last.Date)
			if err != nil {
				// 외부 값 실패는 시그널 없음으로 처리 (가중치 재분배)
				h.log.Warn().Err(err).Str("code", code).Msg("external values unavailable")
			} else if len(values) > 0 {
				req.External = values
			}
		}
	}

	result, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		h.logFailure(err, code)
		respondAnalysisError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// InvalidateCache removes every cached result of an instrument
// DELETE /api/analyze/{code}/cache
func (h *AnalysisHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := h.analyzer.Invalidate(r.Context(), code); err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("cache invalidation failed")
		respondError(w, http.StatusBadGateway, "CACHE_UNAVAILABLE", "cache invalidation failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfigSummary 현재 분석 파라미터 요약
type ConfigSummary struct {
	ConfigID       string   `json:"config_id"`
	Version        string   `json:"version"`
	ConfigHash     string   `json:"config_hash"`
	Horizons       []int    `json:"horizons"`
	PrimaryHorizon int      `json:"primary_horizon"`
	DefaultProfile string   `json:"default_profile"`
	Profiles       []string `json:"profiles"`
}

// GetConfig returns the active parameter set
// GET /api/config
func (h *AnalysisHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := h.analyzer.Config()
	respondJSON(w, http.StatusOK, ConfigSummary{
		ConfigID:       cfg.Meta.ConfigID,
		Version:        cfg.Meta.Version,
		ConfigHash:     h.analyzer.ConfigHash(),
		Horizons:       cfg.Horizons.Days,
		PrimaryHorizon: cfg.Horizons.Primary,
		DefaultProfile: cfg.Risk.DefaultProfile,
		Profiles:       risk.ProfileNames(cfg.Risk.Profiles),
	})
}

func (h *AnalysisHandler) logFailure(err error, code string) {
	if engine.IsValidationError(err) {
		h.log.Debug().Err(err).Str("code", code).Msg("analysis rejected")
		return
	}
	h.log.Error().Err(err).Str("code", code).Msg("analysis failed")
}
