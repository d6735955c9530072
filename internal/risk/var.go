package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// VaRResult VaR 계산 결과
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
// - VaR=0.05 → 95% 신뢰수준에서 최대 5% 손실 가능
// - CVaR=0.07 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
	Samples    int     `json:"samples"`
}

// CalculateVaR 전방 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 유사 구간 이후 horizon 수익률 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossPositive(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
		Samples:    len(sorted),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 수익률, varIdx 이하가 tail
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}

	end := min(varIdx+1, len(sorted))
	return lossPositive(stat.Mean(sorted[:end], nil))
}

// CalculateParametricVaR 정규분포 가정 VaR
// VaR = z*σ - μ, CVaR = σ*φ(z)/(1-c) - μ
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence, VaR: lossPositive(mean), CVaR: lossPositive(mean)}
	}

	unit := distuv.UnitNormal
	z := unit.Quantile(confidence)

	return VaRResult{
		Confidence: confidence,
		VaR:        math.Max(0, z*stdDev-mean),
		CVaR:       math.Max(0, stdDev*unit.Prob(z)/(1-confidence)-mean),
	}
}

func lossPositive(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
