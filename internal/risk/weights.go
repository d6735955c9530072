package risk

import (
	"fmt"
	"math"

	"github.com/wonny/histpos/internal/contracts"
)

// WeightTable 시그널 이름 → 기본 가중치
type WeightTable map[string]float64

// DefaultWeights 기본 가중치 테이블 (합 = 1.0)
// Downside(30%), CapitalFlow(20%), Divergence(15%), Sentiment(15%), Extremity(10%), MADeviation(10%)
func DefaultWeights() WeightTable {
	return WeightTable{
		contracts.SignalDownsideProbability: 0.30,
		contracts.SignalTechnicalDivergence: 0.15,
		contracts.SignalOverboughtOversold:  0.10,
		contracts.SignalMADeviation:         0.10,
		contracts.SignalCapitalFlow:         0.20,
		contracts.SignalSentiment:           0.15,
	}
}

// Sum 가중치 합계
func (w WeightTable) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Clone 복사본
func (w WeightTable) Clone() WeightTable {
	out := make(WeightTable, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Validate 음수/NaN 가중치 및 합계 검사
func (w WeightTable) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("%w: weight table is empty", ErrInvalidWeights)
	}
	for name, v := range w {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeights, name, v)
		}
	}
	if diff := math.Abs(w.Sum() - 1.0); diff > 0.001 {
		return fmt.Errorf("%w: sum=%.4f, want 1.0", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// DefaultTriggers 기여 요인으로 표시할 시그널별 강도 임계값 (magnitude > 값)
func DefaultTriggers() map[string]float64 {
	return map[string]float64{
		contracts.SignalDownsideProbability: 0.6,
		contracts.SignalTechnicalDivergence: 0.5,
		contracts.SignalOverboughtOversold:  0.7,
		contracts.SignalMADeviation:         0.5,
		contracts.SignalCapitalFlow:         0.6,
		contracts.SignalSentiment:           0.7,
	}
}

// DefaultTrigger 테이블에 없는 시그널의 임계값
const DefaultTrigger = 0.5

// LevelCuts 리스크 등급 경계
// score < Medium → LOW, < High → MEDIUM, < Extreme → HIGH, 그 이상 → EXTREME
type LevelCuts struct {
	Medium  float64 `yaml:"medium" json:"medium" default:"0.3" validate:"gt=0,lt=1"`
	High    float64 `yaml:"high" json:"high" default:"0.5" validate:"gtfield=Medium,lt=1"`
	Extreme float64 `yaml:"extreme" json:"extreme" default:"0.7" validate:"gtfield=High,lte=1"`
}

// DefaultLevelCuts 기본 등급 경계
func DefaultLevelCuts() LevelCuts {
	return LevelCuts{Medium: 0.3, High: 0.5, Extreme: 0.7}
}

// Level 점수 → 등급
func (c LevelCuts) Level(score float64) contracts.RiskLevel {
	switch {
	case score < c.Medium:
		return contracts.RiskLow
	case score < c.High:
		return contracts.RiskMedium
	case score < c.Extreme:
		return contracts.RiskHigh
	default:
		return contracts.RiskExtreme
	}
}
