package risk

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/histpos/internal/contracts"
)

func TestDefaultWeights_SumToOne(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.NoError(t, w.Validate())

	for _, name := range contracts.CanonicalSignals() {
		_, ok := w[name]
		assert.True(t, ok, "missing canonical signal %s", name)
	}
}

func TestScorer_EffectiveWeightsEverySubset(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())
	names := contracts.CanonicalSignals()

	for mask := 1; mask < 1<<len(names); mask++ {
		var signals []contracts.RiskSignal
		for i, name := range names {
			if mask&(1<<i) != 0 {
				signals = append(signals, contracts.RiskSignal{Name: name, Magnitude: 0.5})
			}
		}

		result, err := scorer.Score(signals)
		require.NoError(t, err)
		require.True(t, result.Determined, "mask=%b", mask)
		assert.InDelta(t, 1.0, result.EffectiveWeightSum(), 1e-9, "mask=%b", mask)
		assert.InDelta(t, 0.5, result.Score, 1e-9, "mask=%b", mask)
	}
}

func TestScorer_NoSignalsUndetermined(t *testing.T) {
	result, err := NewScorer(zerolog.Nop()).Score(nil)
	require.NoError(t, err)

	assert.False(t, result.Determined)
	assert.Equal(t, contracts.RiskUndetermined, result.Level)
	assert.False(t, result.Below(0.3), "undetermined risk must not satisfy a low-risk bound")
	assert.False(t, result.Above(0.7))
	assert.Empty(t, result.Factors)
}

func TestScorer_Reweighting(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())

	// downside 0.30, capital_flow 0.20 → 0.6 / 0.4
	result, err := scorer.Score([]contracts.RiskSignal{
		{Name: contracts.SignalDownsideProbability, Magnitude: 1.0},
		{Name: contracts.SignalCapitalFlow, Magnitude: 0.0},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, result.Score, 1e-12)
	assert.InDelta(t, 0.5, result.Coverage, 1e-12)
	assert.Equal(t, contracts.RiskHigh, result.Level)

	weights := map[string]float64{}
	for _, w := range result.Weights {
		weights[w.Name] = w.EffectiveWeight
	}
	assert.InDelta(t, 0.6, weights[contracts.SignalDownsideProbability], 1e-12)
	assert.InDelta(t, 0.4, weights[contracts.SignalCapitalFlow], 1e-12)
}

func TestScorer_UnknownSignalUsesOwnDefault(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())

	result, err := scorer.Score([]contracts.RiskSignal{
		{Name: contracts.SignalDownsideProbability, Magnitude: 0.2},
		{Name: "credit_spread", Magnitude: 0.8, WeightDefault: 0.30},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.Score, 1e-12)
	assert.InDelta(t, 1.0, result.EffectiveWeightSum(), 1e-9)
	assert.InDelta(t, 0.30, result.Coverage, 1e-12)
}

func TestScorer_ZeroWeightsUndetermined(t *testing.T) {
	result, err := NewScorer(zerolog.Nop()).Score([]contracts.RiskSignal{
		{Name: "custom", Magnitude: 0.9},
	})
	require.NoError(t, err)
	assert.False(t, result.Determined)
	assert.Equal(t, contracts.RiskUndetermined, result.Level)
	assert.Equal(t, []string{"custom"}, result.Ignored)
}

func TestScorer_ZeroWeightSignalIgnored(t *testing.T) {
	// single_name 가중치 표에는 capital_flow 없음
	scorer := NewScorerWithConfig(ScorerConfig{
		Weights: DefaultProfiles()[ProfileSingleName].Weights,
	}, zerolog.Nop())

	base := []contracts.RiskSignal{
		{Name: contracts.SignalDownsideProbability, Magnitude: 0.2},
		{Name: contracts.SignalOverboughtOversold, Magnitude: 0.4},
	}
	without, err := scorer.Score(base)
	require.NoError(t, err)
	assert.Empty(t, without.Ignored)

	with, err := scorer.Score(append(base, contracts.RiskSignal{
		Name: contracts.SignalCapitalFlow, Magnitude: 0.9,
	}))
	require.NoError(t, err)

	assert.InDelta(t, without.Score, with.Score, 1e-12)
	assert.Equal(t, without.Level, with.Level)
	assert.Equal(t, []string{contracts.SignalCapitalFlow}, with.Ignored)
	assert.Len(t, with.Weights, 2)
	for _, w := range with.Weights {
		assert.NotEqual(t, contracts.SignalCapitalFlow, w.Name)
	}
	for _, f := range with.Factors {
		assert.NotEqual(t, contracts.SignalCapitalFlow, f.Name)
	}
	assert.InDelta(t, 1.0, with.EffectiveWeightSum(), 1e-9)
}

func TestScorer_InvalidSignals(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())

	tests := []struct {
		name    string
		signals []contracts.RiskSignal
		wantErr error
	}{
		{"magnitude above one", []contracts.RiskSignal{{Name: contracts.SignalSentiment, Magnitude: 1.2}}, ErrInvalidSignal},
		{"negative magnitude", []contracts.RiskSignal{{Name: contracts.SignalSentiment, Magnitude: -0.1}}, ErrInvalidSignal},
		{"nan magnitude", []contracts.RiskSignal{{Name: contracts.SignalSentiment, Magnitude: math.NaN()}}, ErrInvalidSignal},
		{"empty name", []contracts.RiskSignal{{Magnitude: 0.5}}, ErrInvalidSignal},
		{
			"duplicate",
			[]contracts.RiskSignal{
				{Name: contracts.SignalSentiment, Magnitude: 0.5},
				{Name: contracts.SignalSentiment, Magnitude: 0.6},
			},
			ErrDuplicateSignal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scorer.Score(tt.signals)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLevelCuts(t *testing.T) {
	cuts := DefaultLevelCuts()

	tests := []struct {
		score float64
		want  contracts.RiskLevel
	}{
		{0.0, contracts.RiskLow},
		{0.29, contracts.RiskLow},
		{0.3, contracts.RiskMedium},
		{0.49, contracts.RiskMedium},
		{0.5, contracts.RiskHigh},
		{0.69, contracts.RiskHigh},
		{0.7, contracts.RiskExtreme},
		{1.0, contracts.RiskExtreme},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cuts.Level(tt.score), "score=%v", tt.score)
	}
}

func TestScorer_ContributingFactors(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())

	result, err := scorer.Score([]contracts.RiskSignal{
		{Name: contracts.SignalDownsideProbability, Magnitude: 0.65}, // > 0.6
		{Name: contracts.SignalOverboughtOversold, Magnitude: 0.7},   // 0.7 초과 아님
		{Name: contracts.SignalTechnicalDivergence, Magnitude: 0.9},  // > 0.5
		{Name: contracts.SignalSentiment, Magnitude: 0.2},
	})
	require.NoError(t, err)

	var names []string
	for _, f := range result.Factors {
		names = append(names, f.Name)
	}
	// 기여도 순: downside 0.65*0.30/0.70 > divergence 0.9*0.15/0.70
	assert.Equal(t, []string{contracts.SignalDownsideProbability, contracts.SignalTechnicalDivergence}, names)
}

func TestWeightTable_Validate(t *testing.T) {
	assert.Error(t, WeightTable{}.Validate())
	assert.ErrorIs(t, WeightTable{"a": 0.5, "b": 0.4}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, WeightTable{"a": 1.2, "b": -0.2}.Validate(), ErrInvalidWeights)
	assert.NoError(t, WeightTable{"a": 0.5, "b": 0.5}.Validate())
}
