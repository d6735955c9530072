package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/pkg/logger"
)

// BatchAnalyzer 결과 저장소를 채우는 배치 분석기 (cache.Analyzer)
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, reqs []engine.Request, concurrency int) ([]engine.BatchResult, error)
}

// WarmupConfig 캐시 예열 설정
type WarmupConfig struct {
	Codes        []string
	Schedule     string // cron (초 포함)
	LookbackDays int
	Concurrency  int
}

// WarmupJob precomputes analyses for a watchlist after the close
// 기본 프로필/마지막 종가 기준 요청이므로 결과가 캐시에 저장됨
type WarmupJob struct {
	analyzer BatchAnalyzer
	source   contracts.PriceHistorySource
	config   WarmupConfig
	logger   *logger.Logger
	now      func() time.Time
}

// NewWarmupJob creates a new cache warm-up job
func NewWarmupJob(analyzer BatchAnalyzer, source contracts.PriceHistorySource, cfg WarmupConfig, log *logger.Logger) *WarmupJob {
	return &WarmupJob{
		analyzer: analyzer,
		source:   source,
		config:   cfg,
		logger:   log.WithField("job", "analysis_warmup"),
		now:      time.Now,
	}
}

// Name returns the job name
func (j *WarmupJob) Name() string {
	return "analysis_warmup"
}

// Schedule returns the cron schedule
func (j *WarmupJob) Schedule() string {
	return j.config.Schedule
}

// Run loads every watchlist history and analyzes them in one batch
// 일부 종목 실패는 로그만 남기고, 전부 실패할 때만 에러 (재시도 대상)
func (j *WarmupJob) Run(ctx context.Context) error {
	to := j.now()
	from := to.AddDate(0, 0, -j.config.LookbackDays)

	reqs := make([]engine.Request, 0, len(j.config.Codes))
	for _, code := range j.config.Codes {
		series, err := j.source.GetSeries(ctx, code, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.WithError(err).WithField("code", code).Warn("warm-up history unavailable")
			continue
		}
		reqs = append(reqs, engine.Request{Code: code, Series: series})
	}

	if len(reqs) == 0 {
		return fmt.Errorf("warm-up: no history for %d instruments", len(j.config.Codes))
	}

	results, err := j.analyzer.AnalyzeBatch(ctx, reqs, j.config.Concurrency)
	if err != nil {
		return fmt.Errorf("warm-up batch: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			j.logger.WithError(r.Err).WithField("code", r.Code).Warn("warm-up analysis failed")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"analyzed": len(results) - failed,
		"failed":   failed,
		"skipped":  len(j.config.Codes) - len(reqs),
	}).Info("warm-up completed")

	if failed == len(results) {
		return fmt.Errorf("warm-up: all %d analyses failed", failed)
	}
	return nil
}
