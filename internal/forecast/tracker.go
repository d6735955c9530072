package forecast

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
)

// Tracker 유사 구간 이후 전방 수익률 계산기
type Tracker struct {
	log zerolog.Logger
}

// NewTracker 새 추적기 생성
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		log: log.With().Str("component", "forecast.tracker").Logger(),
	}
}

// Calculate 각 유사 구간 × horizon의 실현 수익률 계산
// return = (close[i+h] - price[i]) / price[i], i+h가 시계열 밖이면 생략 (0으로 채우지 않음)
// 요청된 모든 horizon은 샘플이 없어도 키로 존재
func (t *Tracker) Calculate(
	ctx context.Context,
	periods []contracts.SimilarPeriod,
	series *contracts.PriceSeries,
	horizons []int,
) map[int][]contracts.ForwardReturnSample {
	samples := make(map[int][]contracts.ForwardReturnSample, len(horizons))
	for _, h := range horizons {
		samples[h] = make([]contracts.ForwardReturnSample, 0, len(periods))
	}

	n := series.Len()
	omitted := 0

	for _, p := range periods {
		select {
		case <-ctx.Done():
			t.log.Warn().Msg("context cancelled during forward return calculation")
			return samples
		default:
		}

		if p.Price <= 0 {
			continue
		}

		for _, h := range horizons {
			j := p.Index + h
			if h <= 0 || j >= n {
				omitted++
				continue
			}

			samples[h] = append(samples[h], contracts.ForwardReturnSample{
				PeriodIndex: p.Index,
				Horizon:     h,
				Return:      (series.Bars[j].Close - p.Price) / p.Price,
			})
		}
	}

	t.log.Debug().
		Str("code", series.Code).
		Int("periods", len(periods)).
		Ints("horizons", sortedHorizons(horizons)).
		Int("omitted", omitted).
		Msg("forward returns calculated")

	return samples
}

// MaxDrawdown horizon 구간 내 최저 종가 기준 최대 하락률 (0 이하)
// i 이후 (i, i+h] 구간, 시계열 끝에서 잘림
func MaxDrawdown(series *contracts.PriceSeries, i, h int) float64 {
	if i < 0 || i >= series.Len() || h <= 0 {
		return 0
	}

	base := series.Bars[i].Close
	if base <= 0 {
		return 0
	}

	end := min(i+h, series.Len()-1)
	minClose := base
	for j := i + 1; j <= end; j++ {
		if series.Bars[j].Close < minClose {
			minClose = series.Bars[j].Close
		}
	}
	return (minClose - base) / base
}

// Drawdowns 각 유사 구간의 horizon 내 최대 하락률 목록
func (t *Tracker) Drawdowns(periods []contracts.SimilarPeriod, series *contracts.PriceSeries, h int) []float64 {
	out := make([]float64, 0, len(periods))
	for _, p := range periods {
		if p.Index+h >= series.Len() {
			continue
		}
		out = append(out, MaxDrawdown(series, p.Index, h))
	}
	return out
}

// Returns 샘플에서 수익률 값만 추출
func Returns(samples []contracts.ForwardReturnSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Return
	}
	return out
}

func sortedHorizons(horizons []int) []int {
	out := append([]int(nil), horizons...)
	sort.Ints(out)
	return out
}
