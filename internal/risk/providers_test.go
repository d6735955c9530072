package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/histpos/internal/contracts"
)

func closesSeries(closes []float64) *contracts.PriceSeries {
	base := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	s := &contracts.PriceSeries{Code: "512880"}
	for i, c := range closes {
		s.Bars = append(s.Bars, contracts.PriceBar{Date: base.AddDate(0, 0, i), Close: c})
	}
	return s
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDownsideProvider(t *testing.T) {
	p := NewDownsideProvider()
	ctx := context.Background()

	in := contracts.SignalInput{
		PrimaryHorizon: 20,
		Statistics: map[int]contracts.PeriodStatistics{
			20: {Horizon: 20, SampleSize: 40, UpCount: 24, UpProbability: 0.6},
		},
		Samples: map[int][]contracts.ForwardReturnSample{
			20: {{Return: -0.10}, {Return: 0.10}},
		},
	}

	sig, err := p.Signal(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, contracts.SignalDownsideProbability, sig.Name)
	assert.InDelta(t, 0.4, sig.Magnitude, 1e-12)
	assert.Contains(t, sig.Description, "historical VaR95")

	// 샘플 없음 → 시그널 없음
	in.Statistics[20] = contracts.PeriodStatistics{Horizon: 20, InsufficientData: true}
	sig, err = p.Signal(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestDownsideProvider_SmallSampleUsesParametricVaR(t *testing.T) {
	p := NewDownsideProvider()

	in := contracts.SignalInput{
		PrimaryHorizon:    20,
		MinReliableSample: 30,
		Statistics: map[int]contracts.PeriodStatistics{
			20: {Horizon: 20, SampleSize: 4, UpCount: 2, UpProbability: 0.5, MeanReturn: 0, StdReturn: 0.10},
		},
		Samples: map[int][]contracts.ForwardReturnSample{
			20: {{Return: -0.10}, {Return: -0.05}, {Return: 0.05}, {Return: 0.10}},
		},
	}

	sig, err := p.Signal(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Contains(t, sig.Description, "parametric VaR95 16.4%")

	in.MinReliableSample = 4
	sig, err = p.Signal(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, sig.Description, "historical VaR95")
}

func TestExtremityProvider(t *testing.T) {
	p := NewExtremityProvider()

	tests := []struct {
		rsi  float64
		want float64
	}{
		{20, 0},
		{30, 0},
		{55, 0.5},
		{80, 1},
		{95, 1},
	}

	for _, tt := range tests {
		sig, err := p.Signal(context.Background(), contracts.SignalInput{
			Environment: contracts.MarketEnvironment{RSI: tt.rsi, Regime: contracts.RegimeRanging},
		})
		require.NoError(t, err)
		assert.InDelta(t, tt.want, sig.Magnitude, 1e-12, "rsi=%v", tt.rsi)
	}

	// 국면 데이터 부족 + 짧은 이력 → 시그널 없음
	sig, err := p.Signal(context.Background(), contracts.SignalInput{
		Series:      closesSeries(flat(5, 100)),
		Environment: contracts.MarketEnvironment{InsufficientData: true},
	})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMADeviationProvider(t *testing.T) {
	p := NewMADeviationProvider()
	series := closesSeries(flat(60, 100))

	sig, err := p.Signal(context.Background(), contracts.SignalInput{Series: series, CurrentPrice: 110})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.InDelta(t, 0.5, sig.Magnitude, 1e-9)

	sig, err = p.Signal(context.Background(), contracts.SignalInput{Series: series, CurrentPrice: 90})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sig.Magnitude)

	sig, err = p.Signal(context.Background(), contracts.SignalInput{Series: closesSeries(flat(10, 100)), CurrentPrice: 100})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestDivergenceProvider(t *testing.T) {
	p := NewDivergenceProvider()

	// 급등 후 조정, 마지막에 완만하게 신고점 → 가격 고점 상승, RSI 고점 하락
	closes := flat(30, 100)
	for i := 0; i < 10; i++ {
		closes = append(closes, 100+float64(i+1)*3) // 103 ... 130
	}
	for i := 0; i < 8; i++ {
		closes = append(closes, 130-float64(i+1)) // 129 ... 122
	}
	for i := 0; i < 9; i++ {
		closes = append(closes, 122+float64(i+1)) // 123 ... 131
	}

	sig, err := p.Signal(context.Background(), contracts.SignalInput{Series: closesSeries(closes)})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Greater(t, sig.Magnitude, 0.0)
	assert.LessOrEqual(t, sig.Magnitude, 1.0)
	assert.Contains(t, sig.Description, "RSI fell")

	// 단조 상승 → 다이버전스 없음
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 * math.Pow(1.01, float64(i))
	}
	sig, err = p.Signal(context.Background(), contracts.SignalInput{Series: closesSeries(up)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sig.Magnitude)
}

func TestExternalProvider(t *testing.T) {
	ctx := context.Background()

	flow := NewExternalProvider(contracts.SignalCapitalFlow, "northbound_flow", "flow", 0.2)
	sig, err := flow.Signal(ctx, contracts.SignalInput{External: map[string]float64{"northbound_flow": -1}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sig.Magnitude)
	assert.Equal(t, 0.2, sig.WeightDefault)

	sig, err = flow.Signal(ctx, contracts.SignalInput{External: map[string]float64{"northbound_flow": 1}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sig.Magnitude)

	// slot 값 없음 → 시그널 없음
	sig, err = flow.Signal(ctx, contracts.SignalInput{})
	require.NoError(t, err)
	assert.Nil(t, sig)

	pct := NewExternalProvider(contracts.SignalSentiment, "volatility_index_percentile", "percentile", 0.15)
	sig, err = pct.Signal(ctx, contracts.SignalInput{External: map[string]float64{"volatility_index_percentile": 85}})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, sig.Magnitude, 1e-12)

	bad := NewExternalProvider("x", "x", "unknown", 0.1)
	_, err = bad.Signal(ctx, contracts.SignalInput{External: map[string]float64{"x": 1}})
	assert.ErrorIs(t, err, ErrInvalidSignal)
}

func TestCollect_SuppliedOverridesProvider(t *testing.T) {
	providers := []contracts.RiskSignalProvider{NewExtremityProvider()}
	in := contracts.SignalInput{Environment: contracts.MarketEnvironment{RSI: 80, Regime: contracts.RegimeBullTop}}

	signals, err := Collect(context.Background(), providers, in, []contracts.RiskSignal{
		{Name: contracts.SignalOverboughtOversold, Magnitude: 0.1},
		{Name: contracts.SignalCapitalFlow, Magnitude: 0.7},
	})
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, 0.1, signals[0].Magnitude)
}

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	assert.Equal(t, []string{ProfileIndex, ProfileSectorETF, ProfileSingleName}, ProfileNames(profiles))

	for name, p := range profiles {
		assert.NoError(t, p.Validate(), name)
		assert.NotEmpty(t, p.Providers(), name)
	}

	// single_name 프로필은 capital_flow 없음
	for _, prov := range profiles[ProfileSingleName].Providers() {
		assert.NotEqual(t, contracts.SignalCapitalFlow, prov.Name())
	}
	assert.Len(t, profiles[ProfileIndex].Providers(), 6)
}

func TestVaR(t *testing.T) {
	returns := []float64{-0.10, -0.05, 0.0, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08,
		0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}

	v := CalculateVaR(returns, 0.95)
	assert.Equal(t, 20, v.Samples)
	assert.InDelta(t, 0.05, v.VaR, 1e-12)
	assert.InDelta(t, 0.075, v.CVaR, 1e-12)

	assert.Equal(t, VaRResult{Confidence: 0.95}, CalculateVaR(nil, 0.95))

	p := CalculateParametricVaR(0, 0.10, 0.95)
	assert.InDelta(t, 0.1645, p.VaR, 1e-3)
	assert.Greater(t, p.CVaR, p.VaR)
}
