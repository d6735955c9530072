package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/histpos/internal/contracts"
)

// DefaultConcurrency 기본 병렬 분석 수
const DefaultConcurrency = 4

// BatchResult 배치 분석 결과 (입력 순서 유지)
type BatchResult struct {
	Code   string                    `json:"code"`
	Result *contracts.AnalysisResult `json:"result,omitempty"`
	Err    error                     `json:"-"`
	Error  string                    `json:"error,omitempty"`
}

// Single 한 건 분석 인터페이스 (Analyzer, 캐시 래퍼 공용)
type Single interface {
	Analyze(ctx context.Context, req Request) (*contracts.AnalysisResult, error)
}

// AnalyzeBatch 여러 종목을 병렬 분석
// 종목별 에러는 결과에 담고 나머지는 계속 진행, context 취소 시에만 중단
func AnalyzeBatch(ctx context.Context, analyzer Single, reqs []Request, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			code := req.Code
			if code == "" && req.Series != nil {
				code = req.Series.Code
			}

			res, err := analyzer.Analyze(gctx, req)
			results[i] = BatchResult{Code: code, Result: res, Err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// AnalyzeBatch 분석기 자신으로 배치 실행
func (a *Analyzer) AnalyzeBatch(ctx context.Context, reqs []Request, concurrency int) ([]BatchResult, error) {
	start := time.Now()
	results, err := AnalyzeBatch(ctx, a, reqs, concurrency)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	a.log.Info().
		Int("requests", len(reqs)).
		Int("failed", failed).
		Int("concurrency", concurrency).
		Dur("elapsed", time.Since(start)).
		Msg("batch analysis completed")

	return results, err
}
