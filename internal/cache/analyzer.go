package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/internal/history"
	"github.com/wonny/histpos/pkg/metrics"
)

// Analyzer 결과 저장소를 앞에 둔 분석기
// 저장소 장애는 분석 실패로 이어지지 않음 (항상 재계산으로 대체)
type Analyzer struct {
	inner   *engine.Analyzer
	store   contracts.ResultStore
	metrics *metrics.Recorder
	log     zerolog.Logger
}

var _ engine.Single = (*Analyzer)(nil)

// NewAnalyzer 캐시 분석기 생성 (store가 nil이면 항상 계산)
func NewAnalyzer(inner *engine.Analyzer, store contracts.ResultStore, rec *metrics.Recorder, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		inner:   inner,
		store:   store,
		metrics: rec,
		log:     log.With().Str("component", "cached_analyzer").Logger(),
	}
}

// ConfigHash 내부 분석기 파라미터 해시
func (a *Analyzer) ConfigHash() string {
	return a.inner.ConfigHash()
}

// Config 내부 분석기 설정
func (a *Analyzer) Config() *analysisconfig.Config {
	return a.inner.Config()
}

// Analyze 저장된 결과가 있으면 반환, 없으면 계산 후 저장
func (a *Analyzer) Analyze(ctx context.Context, req engine.Request) (*contracts.AnalysisResult, error) {
	if a.store == nil || !a.cacheable(req) {
		a.metrics.RecordCache("bypass")
		return a.inner.Analyze(ctx, req)
	}

	code := req.Code
	if code == "" {
		code = req.Series.Code
	}

	seriesHash, err := history.ContentHash(req.Series)
	if err != nil {
		a.metrics.RecordCache("bypass")
		return a.inner.Analyze(ctx, req)
	}

	cached, found, err := a.store.Get(ctx, code, a.inner.ConfigHash(), seriesHash)
	switch {
	case err != nil:
		a.metrics.RecordCache("error")
		a.log.Warn().Err(err).Str("code", code).Msg("result cache lookup failed")
	case found:
		a.metrics.RecordCache("hit")
		return cached, nil
	default:
		a.metrics.RecordCache("miss")
	}

	result, err := a.inner.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := a.store.Set(ctx, result); err != nil {
		a.metrics.RecordCache("error")
		a.log.Warn().Err(err).Str("code", code).Msg("result cache store failed")
	}

	return result, nil
}

// AnalyzeBatch 여러 종목 병렬 분석 (종목별로 캐시 적용)
func (a *Analyzer) AnalyzeBatch(ctx context.Context, reqs []engine.Request, concurrency int) ([]engine.BatchResult, error) {
	return engine.AnalyzeBatch(ctx, a, reqs, concurrency)
}

// Invalidate 종목의 저장 결과 삭제
func (a *Analyzer) Invalidate(ctx context.Context, code string) error {
	if a.store == nil {
		return nil
	}
	return a.store.Invalidate(ctx, code)
}

// cacheable 결과가 (종목, 파라미터, 이력)만으로 결정되는 요청인지 판단
// 호출자 시그널, 외부 값, 별도 현재가, 기본 외 프로필은 키에 없으므로 제외
func (a *Analyzer) cacheable(req engine.Request) bool {
	if req.Series == nil || len(req.Series.Bars) == 0 {
		return false
	}
	if len(req.Signals) > 0 || len(req.External) > 0 {
		return false
	}
	if req.Profile != "" && req.Profile != a.inner.Config().Risk.DefaultProfile {
		return false
	}
	if req.CurrentPrice != 0 {
		last, _ := req.Series.Latest()
		if req.CurrentPrice != last.Close {
			return false
		}
	}
	return true
}
