package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/history"
	"github.com/wonny/histpos/internal/risk"
	"github.com/wonny/histpos/pkg/metrics"
)

func buildSeries(code string, closes []float64) *contracts.PriceSeries {
	base := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	s := &contracts.PriceSeries{Code: code, Bars: make([]contracts.PriceBar, len(closes))}
	for i, c := range closes {
		s.Bars[i] = contracts.PriceBar{Date: base.AddDate(0, 0, i), Close: c}
	}
	return s
}

// revisitSeries 가격 100을 40회 재방문, 20일 후 24회 110 / 16회 90
func revisitSeries() *contracts.PriceSeries {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 200
	}
	match := 0
	for _, start := range []int{0, 50, 100, 150} {
		for k := 0; k < 10; k++ {
			i := start + k
			closes[i] = 100
			if match < 24 {
				closes[i+20] = 110
			} else {
				closes[i+20] = 90
			}
			match++
		}
	}
	closes[299] = 100
	return buildSeries("000300", closes)
}

func newAnalyzer(t *testing.T, cfg *analysisconfig.Config) *Analyzer {
	t.Helper()
	if cfg == nil {
		cfg = analysisconfig.Default()
	}
	a, err := New(cfg, metrics.New(), zerolog.Nop())
	require.NoError(t, err)
	return a
}

func TestAnalyze_RevisitScenario(t *testing.T) {
	a := newAnalyzer(t, nil)

	result, err := a.Analyze(context.Background(), Request{Series: revisitSeries()})
	require.NoError(t, err)

	assert.Equal(t, "000300", result.Code)
	assert.Equal(t, 100.0, result.CurrentPrice)
	assert.Equal(t, 40, result.SimilarCount)
	assert.Len(t, result.ConfigHash, 64)
	assert.Len(t, result.SeriesHash, 64)

	primary, ok := result.Primary()
	require.True(t, ok)
	assert.Equal(t, 40, primary.SampleSize)
	assert.Equal(t, 0.6, primary.UpProbability)
	assert.InDelta(t, 0.02, primary.MeanReturn, 1e-12)

	for _, h := range contracts.DefaultHorizons() {
		_, ok := result.Statistics[h]
		assert.True(t, ok, "missing horizon %d", h)
	}

	// downside_probability는 항상 존재
	assert.True(t, result.Risk.Determined)
	assert.InDelta(t, 1.0, result.Risk.EffectiveWeightSum(), 1e-9)
	assert.NotEqual(t, contracts.RegimeUnknown, result.Environment.Regime)
}

func TestAnalyze_NoSimilarPeriods(t *testing.T) {
	a := newAnalyzer(t, nil)

	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 200
	}
	closes[79] = 100

	lowRisk := []contracts.RiskSignal{
		{Name: contracts.SignalCapitalFlow, Magnitude: 0.0},
		{Name: contracts.SignalSentiment, Magnitude: 0.0},
	}

	result, err := a.Analyze(context.Background(), Request{Series: buildSeries("512880", closes), Signals: lowRisk})
	require.NoError(t, err)

	primary, ok := result.Primary()
	require.True(t, ok)
	assert.True(t, primary.InsufficientData)
	assert.Equal(t, 0.0, primary.Confidence)
	assert.Equal(t, 0, result.SimilarCount)

	assert.Equal(t, contracts.DirectionNeutral, result.Advice.Direction)
	assert.Equal(t, contracts.ReasonInsufficientHistory, result.Advice.ReasonCode)
	assert.Contains(t, result.Advice.Rationale, "insufficient history")

	assert.Equal(t, contracts.RegimeUnknown, result.Environment.Regime)
	assert.True(t, result.Environment.InsufficientData)
}

func TestAnalyze_NoRiskSignals(t *testing.T) {
	cfg := analysisconfig.Default()
	cfg.Risk.Profiles["flow_only"] = risk.Profile{
		Name:    "flow_only",
		Weights: risk.WeightTable{contracts.SignalCapitalFlow: 1.0},
		External: []risk.ExternalSlot{
			{Slot: "fund_flow", Signal: contracts.SignalCapitalFlow, Normalizer: "flow"},
		},
	}
	a := newAnalyzer(t, cfg)

	result, err := a.Analyze(context.Background(), Request{Series: revisitSeries(), Profile: "flow_only"})
	require.NoError(t, err)

	assert.False(t, result.Risk.Determined)
	assert.Equal(t, contracts.RiskUndetermined, result.Risk.Level)
	assert.False(t, result.Advice.Overridden)

	// 같은 프로필에 값이 공급되면 결정됨
	result, err = a.Analyze(context.Background(), Request{
		Series:   revisitSeries(),
		Profile:  "flow_only",
		External: map[string]float64{"fund_flow": -1},
	})
	require.NoError(t, err)
	assert.True(t, result.Risk.Determined)
	assert.Equal(t, 1.0, result.Risk.Score)
	assert.Equal(t, contracts.RiskExtreme, result.Risk.Level)
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	a := newAnalyzer(t, nil)
	ctx := context.Background()

	_, err := a.Analyze(ctx, Request{Series: &contracts.PriceSeries{Code: "X"}})
	assert.ErrorIs(t, err, history.ErrEmptySeries)
	assert.True(t, IsValidationError(err))

	s := buildSeries("X", []float64{1, 2, 3})
	s.Bars[2].Date = s.Bars[1].Date
	_, err = a.Analyze(ctx, Request{Series: s})
	assert.ErrorIs(t, err, history.ErrDuplicateDate)

	_, err = a.Analyze(ctx, Request{Series: buildSeries("X", []float64{1, 2, 3}), Profile: "crypto"})
	assert.ErrorIs(t, err, analysisconfig.ErrUnknownProfile)

	_, err = a.Analyze(ctx, Request{Series: buildSeries("X", []float64{1, 2, 3}), CurrentPrice: -5})
	assert.ErrorIs(t, err, history.ErrInvalidCurrent)

	_, err = a.Analyze(ctx, Request{
		Series:  buildSeries("X", []float64{1, 2, 3}),
		Signals: []contracts.RiskSignal{{Name: contracts.SignalSentiment, Magnitude: 2}},
	})
	assert.ErrorIs(t, err, risk.ErrInvalidSignal)
	assert.True(t, IsValidationError(err))
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newAnalyzer(t, nil)
	req := Request{Series: revisitSeries(), External: map[string]float64{"northbound_flow": 0.3}}

	first, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_InputNotMutated(t *testing.T) {
	a := newAnalyzer(t, nil)
	series := revisitSeries()
	before, _ := history.ContentHash(series)

	_, err := a.Analyze(context.Background(), Request{Series: series})
	require.NoError(t, err)

	after, _ := history.ContentHash(series)
	assert.Equal(t, before, after)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	a := newAnalyzer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, Request{Series: revisitSeries()})
	assert.True(t, errors.Is(err, context.Canceled))
}

// lateCancelCtx 진입 시점 확인은 통과하고 그 이후 취소된 것처럼 동작
type lateCancelCtx struct {
	context.Context
	checks int
	done   chan struct{}
}

func newLateCancelCtx() *lateCancelCtx {
	done := make(chan struct{})
	close(done)
	return &lateCancelCtx{Context: context.Background(), done: done}
}

func (c *lateCancelCtx) Err() error {
	c.checks++
	if c.checks == 1 {
		return nil
	}
	return context.Canceled
}

func (c *lateCancelCtx) Done() <-chan struct{} {
	if c.checks == 0 {
		return nil
	}
	return c.done
}

func TestAnalyze_CancelledMidAnalysis(t *testing.T) {
	a := newAnalyzer(t, nil)

	full, err := a.Analyze(context.Background(), Request{Series: revisitSeries()})
	require.NoError(t, err)
	require.Equal(t, 40, full.SimilarCount)

	result, err := a.Analyze(newLateCancelCtx(), Request{Series: revisitSeries()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, result, "partial stages must not produce advice")
}

func TestAnalyzeBatch(t *testing.T) {
	a := newAnalyzer(t, nil)

	reqs := []Request{
		{Code: "A", Series: revisitSeries()},
		{Code: "B", Series: &contracts.PriceSeries{Code: "B"}},
		{Code: "C", Series: revisitSeries()},
	}

	results, err := a.AnalyzeBatch(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "A", results[0].Code)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Result)

	assert.Equal(t, "B", results[1].Code)
	assert.ErrorIs(t, results[1].Err, history.ErrEmptySeries)
	assert.NotEmpty(t, results[1].Error)

	assert.Equal(t, "C", results[2].Code)
	assert.Equal(t, results[0].Result.Statistics, results[2].Result.Statistics)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := analysisconfig.Default()
	cfg.Horizons.Primary = 7

	_, err := New(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}
