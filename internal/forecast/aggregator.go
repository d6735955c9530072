package forecast

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/histpos/internal/contracts"
)

// StatisticsConfig 통계 집계 설정
type StatisticsConfig struct {
	MinReliableSample int     `yaml:"min_reliable_sample" json:"min_reliable_sample" default:"30" validate:"gt=0"`
	MaxExpectedStd    float64 `yaml:"max_expected_std" json:"max_expected_std" default:"0.15" validate:"gt=0"`
	MinSampleFloor    int     `yaml:"min_sample_floor" json:"min_sample_floor" default:"1" validate:"gte=1"` // 이 미만이면 InsufficientData
}

// DefaultStatisticsConfig 기본 설정
func DefaultStatisticsConfig() StatisticsConfig {
	return StatisticsConfig{
		MinReliableSample: 30,
		MaxExpectedStd:    0.15,
		MinSampleFloor:    1,
	}
}

// Aggregator 전방 수익률 통계 집계기
type Aggregator struct {
	config StatisticsConfig
	log    zerolog.Logger
}

// NewAggregator 새 집계기 생성
func NewAggregator(log zerolog.Logger) *Aggregator {
	return NewAggregatorWithConfig(DefaultStatisticsConfig(), log)
}

// NewAggregatorWithConfig 커스텀 설정으로 집계기 생성
func NewAggregatorWithConfig(config StatisticsConfig, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		config: config,
		log:    log.With().Str("component", "forecast.aggregator").Logger(),
	}
}

// Aggregate horizon별 통계 계산 (입력 키마다 하나의 결과)
func (a *Aggregator) Aggregate(ctx context.Context, samples map[int][]contracts.ForwardReturnSample) map[int]contracts.PeriodStatistics {
	stats := make(map[int]contracts.PeriodStatistics, len(samples))

	for h, list := range samples {
		select {
		case <-ctx.Done():
			a.log.Warn().Msg("context cancelled during aggregation")
			return stats
		default:
		}

		stats[h] = a.AggregateHorizon(h, Returns(list))
	}

	return stats
}

// AggregateHorizon 하나의 horizon 수익률 목록에 대한 통계
// 빈 목록 → 모든 값 0, Confidence 0, InsufficientData=true
func (a *Aggregator) AggregateHorizon(horizon int, returns []float64) contracts.PeriodStatistics {
	n := len(returns)
	if n == 0 {
		return contracts.PeriodStatistics{Horizon: horizon, InsufficientData: true}
	}

	upCount := 0
	for _, r := range returns {
		if r > 0 {
			upCount++
		}
	}

	// 정렬된 복사본 (입력은 수정하지 않음)
	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	std := 0.0
	if n > 1 {
		std = stat.StdDev(returns, nil)
	}

	s := contracts.PeriodStatistics{
		Horizon:          horizon,
		SampleSize:       n,
		UpCount:          upCount,
		UpProbability:    float64(upCount) / float64(n),
		MeanReturn:       stat.Mean(returns, nil),
		MedianReturn:     Median(sorted),
		StdReturn:        std,
		MinReturn:        floats.Min(returns),
		MaxReturn:        floats.Max(returns),
		P10Return:        Percentile(sorted, 10),
		P90Return:        Percentile(sorted, 90),
		Confidence:       a.Confidence(n, std),
		InsufficientData: n < a.config.MinSampleFloor,
	}

	a.log.Debug().
		Int("horizon", horizon).
		Int("sample_size", n).
		Float64("up_probability", s.UpProbability).
		Float64("mean_return", s.MeanReturn).
		Float64("std_return", s.StdReturn).
		Float64("confidence", s.Confidence).
		Msg("stats calculated")

	return s
}

// Confidence 샘플 충분도 × 결과 일관성
// min(1, n/minReliable) * max(0, 1 - min(1, std/maxStd))
func (a *Aggregator) Confidence(n int, std float64) float64 {
	if n <= 0 {
		return 0
	}

	sampleFactor := math.Min(1, float64(n)/float64(a.config.MinReliableSample))
	consistency := math.Max(0, 1-math.Min(1, std/a.config.MaxExpectedStd))
	return sampleFactor * consistency
}

// Median 정렬된 슬라이스의 중앙값 (짝수 개면 가운데 두 값 평균)
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Percentile 정렬된 슬라이스의 백분위수 (선형 보간)
func Percentile(sorted []float64, percentile float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	pos := float64(n-1) * percentile / 100.0
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
