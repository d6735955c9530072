package contracts

import "time"

// SimilarPeriod 현재가와 허용 오차 이내였던 과거 시점
type SimilarPeriod struct {
	Index     int       `json:"index"`     // 시계열 내 위치
	Date      time.Time `json:"date"`      // 해당 세션 날짜
	Price     float64   `json:"price"`     // 해당 세션 종가
	Deviation float64   `json:"deviation"` // |price - current| / current
}

// ForwardReturnSample 유사 구간 이후 horizon 거래일 실현 수익률
// 시계열 범위를 벗어나는 horizon은 0으로 채우지 않고 생략됨
type ForwardReturnSample struct {
	PeriodIndex int     `json:"period_index"`
	Horizon     int     `json:"horizon"`
	Return      float64 `json:"return"`
}

// PeriodStatistics horizon별 전방 수익률 통계
// ⭐ SSOT: UpProbability = UpCount / SampleSize (다른 공식으로 재계산 금지)
type PeriodStatistics struct {
	Horizon          int     `json:"horizon"`
	SampleSize       int     `json:"sample_size"`
	UpCount          int     `json:"up_count"`
	UpProbability    float64 `json:"up_probability"`
	MeanReturn       float64 `json:"mean_return"`
	MedianReturn     float64 `json:"median_return"`
	StdReturn        float64 `json:"std_return"`
	MinReturn        float64 `json:"min_return"`
	MaxReturn        float64 `json:"max_return"`
	P10Return        float64 `json:"p10_return"`   // 하위 10%
	P90Return        float64 `json:"p90_return"`   // 상위 10%
	P10Drawdown      float64 `json:"p10_drawdown"` // horizon 내 최대 하락률의 하위 10%
	Confidence       float64 `json:"confidence"`   // 0~1 (샘플 충분도 × 결과 일관성)
	InsufficientData bool    `json:"insufficient_data"`
}

// DownProbability 하락(0 이하) 비율
func (p PeriodStatistics) DownProbability() float64 {
	if p.SampleSize == 0 {
		return 0
	}
	return float64(p.SampleSize-p.UpCount) / float64(p.SampleSize)
}

// DefaultHorizons 기본 전방 수익률 horizon (거래일)
func DefaultHorizons() []int {
	return []int{5, 10, 20, 60}
}

// MaxHorizon 가장 긴 horizon 반환 (빈 목록이면 0)
func MaxHorizon(horizons []int) int {
	maxH := 0
	for _, h := range horizons {
		if h > maxH {
			maxH = h
		}
	}
	return maxH
}
