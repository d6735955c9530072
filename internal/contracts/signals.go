package contracts

// Canonical risk signal names
// SSOT: config/analysis.yaml risk.weights
// Weights: Downside(30%), CapitalFlow(20%), Divergence(15%), Sentiment(15%), Extremity(10%), MADeviation(10%)
const (
	SignalDownsideProbability = "downside_probability"
	SignalTechnicalDivergence = "technical_divergence"
	SignalOverboughtOversold  = "overbought_oversold"
	SignalMADeviation         = "ma_deviation"
	SignalCapitalFlow         = "capital_flow"
	SignalSentiment           = "sentiment"
)

// CanonicalSignals returns the canonical signal names in weight-table order
func CanonicalSignals() []string {
	return []string{
		SignalDownsideProbability,
		SignalTechnicalDivergence,
		SignalOverboughtOversold,
		SignalMADeviation,
		SignalCapitalFlow,
		SignalSentiment,
	}
}

// RiskSignal represents one normalized risk input for a single analysis call
// 없는 시그널은 목록에 나타나지 않음 (0으로 채우지 않음)
type RiskSignal struct {
	Name          string  `json:"name"`
	Magnitude     float64 `json:"magnitude"`      // 0.0 ~ 1.0 (1 = 최대 위험)
	WeightDefault float64 `json:"weight_default"` // 가중치 테이블에 없을 때 사용
	Direction     string  `json:"direction,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// RiskLevel 리스크 등급
type RiskLevel string

const (
	RiskLow          RiskLevel = "LOW"
	RiskMedium       RiskLevel = "MEDIUM"
	RiskHigh         RiskLevel = "HIGH"
	RiskExtreme      RiskLevel = "EXTREME"
	RiskUndetermined RiskLevel = "UNDETERMINED" // 시그널 없음
)

// RiskFactor explains how one signal entered the composite score
type RiskFactor struct {
	Name            string  `json:"name"`
	Magnitude       float64 `json:"magnitude"`
	EffectiveWeight float64 `json:"effective_weight"`
	Contribution    float64 `json:"contribution"` // magnitude * effective_weight
	Description     string  `json:"description"`
}

// RiskAssessment represents the composite risk score
// ⭐ SSOT: Determined=false이면 Score는 의미 없음 (0이나 0.5로 해석 금지)
type RiskAssessment struct {
	Score      float64      `json:"score"`
	Determined bool         `json:"determined"`
	Level      RiskLevel    `json:"level"`
	Coverage   float64      `json:"coverage"` // 기본 가중치 중 실제 존재한 비율
	Factors    []RiskFactor `json:"contributing_factors"`
	Weights    []RiskFactor `json:"weights"`           // 존재한 모든 시그널의 유효 가중치
	Ignored    []string     `json:"ignored,omitempty"` // 기본 가중치 0으로 점수에서 제외된 시그널
}

// Below reports whether the score is determined and strictly below the bound
func (r RiskAssessment) Below(bound float64) bool {
	return r.Determined && r.Score < bound
}

// Above reports whether the score is determined and strictly above the bound
func (r RiskAssessment) Above(bound float64) bool {
	return r.Determined && r.Score > bound
}

// EffectiveWeightSum returns the sum of effective weights of all present signals
func (r RiskAssessment) EffectiveWeightSum() float64 {
	sum := 0.0
	for _, w := range r.Weights {
		sum += w.EffectiveWeight
	}
	return sum
}
