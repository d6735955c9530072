package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/pkg/logger"
)

type mapSource map[string]*contracts.PriceSeries

func (m mapSource) GetSeries(_ context.Context, code string, _, _ time.Time) (*contracts.PriceSeries, error) {
	s, ok := m[code]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

type recordingAnalyzer struct {
	reqs []engine.Request
	fail map[string]bool
}

func (r *recordingAnalyzer) AnalyzeBatch(_ context.Context, reqs []engine.Request, _ int) ([]engine.BatchResult, error) {
	r.reqs = reqs
	out := make([]engine.BatchResult, len(reqs))
	for i, req := range reqs {
		out[i] = engine.BatchResult{Code: req.Code}
		if r.fail[req.Code] {
			out[i].Err = errors.New("invalid")
		} else {
			out[i].Result = &contracts.AnalysisResult{Code: req.Code}
		}
	}
	return out, nil
}

func series(code string) *contracts.PriceSeries {
	return &contracts.PriceSeries{Code: code, Bars: []contracts.PriceBar{{Date: time.Now(), Close: 100}}}
}

func TestWarmupJob_Run(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	job := NewWarmupJob(analyzer, mapSource{"A": series("A"), "B": series("B")}, WarmupConfig{
		Codes:        []string{"A", "MISSING", "B"},
		Schedule:     "0 30 18 * * 1-5",
		LookbackDays: 365,
		Concurrency:  2,
	}, logger.Nop())

	assert.Equal(t, "analysis_warmup", job.Name())
	assert.Equal(t, "0 30 18 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, analyzer.reqs, 2)
	assert.Equal(t, "A", analyzer.reqs[0].Code)
	assert.Equal(t, "B", analyzer.reqs[1].Code)
	// 캐시 가능한 요청: 프로필/현재가/시그널 없음
	assert.Empty(t, analyzer.reqs[0].Profile)
	assert.Zero(t, analyzer.reqs[0].CurrentPrice)
}

func TestWarmupJob_AllFail(t *testing.T) {
	job := NewWarmupJob(&recordingAnalyzer{}, mapSource{}, WarmupConfig{Codes: []string{"A"}}, logger.Nop())
	assert.Error(t, job.Run(context.Background()))

	failing := &recordingAnalyzer{fail: map[string]bool{"A": true}}
	job = NewWarmupJob(failing, mapSource{"A": series("A")}, WarmupConfig{Codes: []string{"A"}}, logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}

func TestWarmupJob_PartialFailureSucceeds(t *testing.T) {
	analyzer := &recordingAnalyzer{fail: map[string]bool{"A": true}}
	job := NewWarmupJob(analyzer, mapSource{"A": series("A"), "B": series("B")}, WarmupConfig{Codes: []string{"A", "B"}}, logger.Nop())
	assert.NoError(t, job.Run(context.Background()))
}
