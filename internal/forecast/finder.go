package forecast

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
)

// SimilarityConfig 유사 구간 탐색 설정
type SimilarityConfig struct {
	Tolerance     float64 `yaml:"tolerance" json:"tolerance" default:"0.05" validate:"gt=0,lt=1"`
	ExcludeRecent int     `yaml:"exclude_recent" json:"exclude_recent" validate:"gte=0"` // 0 = max(horizons)
	MinSpacing    int     `yaml:"min_spacing" json:"min_spacing" validate:"gte=0"`       // 0 = 중복 제거 없음
}

// DefaultSimilarityConfig 기본 설정
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Tolerance:     0.05,
		ExcludeRecent: 0,
		MinSpacing:    0,
	}
}

// ResolveExcludeRecent 실제 제외할 최근 세션 수
// 0이면 가장 긴 horizon 사용, 최소 1 (현재 세션은 자기 자신의 유사 구간이 될 수 없음)
func (c SimilarityConfig) ResolveExcludeRecent(horizons []int) int {
	exclude := c.ExcludeRecent
	if exclude == 0 {
		exclude = contracts.MaxHorizon(horizons)
	}
	if exclude < 1 {
		exclude = 1
	}
	return exclude
}

// Finder 유사 가격 구간 탐색기
type Finder struct {
	config   SimilarityConfig
	horizons []int
	log      zerolog.Logger
}

// NewFinder 새 탐색기 생성
func NewFinder(log zerolog.Logger) *Finder {
	return NewFinderWithConfig(DefaultSimilarityConfig(), contracts.DefaultHorizons(), log)
}

// NewFinderWithConfig 커스텀 설정으로 탐색기 생성
func NewFinderWithConfig(config SimilarityConfig, horizons []int, log zerolog.Logger) *Finder {
	return &Finder{
		config:   config,
		horizons: horizons,
		log:      log.With().Str("component", "forecast.finder").Logger(),
	}
}

// Find 현재가 대비 허용 오차 이내였던 과거 세션 탐색 (인덱스 오름차순)
// 매칭이 없으면 빈 슬라이스 반환 (에러 아님)
func (f *Finder) Find(ctx context.Context, series *contracts.PriceSeries, currentPrice float64) []contracts.SimilarPeriod {
	periods := make([]contracts.SimilarPeriod, 0)
	if series == nil || currentPrice <= 0 {
		return periods
	}

	n := series.Len()
	end := n - f.config.ResolveExcludeRecent(f.horizons)

	lastKept := -1
	for i := 0; i < end; i++ {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				f.log.Warn().Str("code", series.Code).Msg("context cancelled during similarity search")
				return periods
			default:
			}
		}

		bar := series.Bars[i]
		deviation := math.Abs(bar.Close-currentPrice) / currentPrice
		if deviation > f.config.Tolerance {
			continue
		}

		if f.config.MinSpacing > 0 && lastKept >= 0 && i-lastKept < f.config.MinSpacing {
			continue
		}

		periods = append(periods, contracts.SimilarPeriod{
			Index:     i,
			Date:      bar.Date,
			Price:     bar.Close,
			Deviation: deviation,
		})
		lastKept = i
	}

	f.log.Debug().
		Str("code", series.Code).
		Float64("current_price", currentPrice).
		Float64("tolerance", f.config.Tolerance).
		Int("eligible", max(end, 0)).
		Int("matches", len(periods)).
		Msg("similar periods found")

	return periods
}
