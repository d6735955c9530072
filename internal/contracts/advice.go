package contracts

import (
	"fmt"
	"time"
)

// Direction 방향성 판단
type Direction string

const (
	DirectionStrongBullish  Direction = "STRONG_BULLISH"
	DirectionBullish        Direction = "BULLISH"
	DirectionNeutralBullish Direction = "NEUTRAL_BULLISH"
	DirectionNeutral        Direction = "NEUTRAL"
	DirectionBearish        Direction = "BEARISH"
	DirectionHold           Direction = "HOLD" // 저위험 보유 유지 (BEARISH 오버라이드)
)

// Reason codes for SignalAdvice
const (
	ReasonRuleTable           = "RULE_TABLE"
	ReasonInsufficientHistory = "INSUFFICIENT_HISTORY"
	ReasonLowRiskHold         = "LOW_RISK_HOLD"
)

// PositionRange 권장 비중 범위 (0~1)
type PositionRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// String formats the range as percentages
func (p PositionRange) String() string {
	return fmt.Sprintf("%.0f%%-%.0f%%", p.Min*100, p.Max*100)
}

// SignalAdvice represents the final recommendation
type SignalAdvice struct {
	Direction  Direction     `json:"direction"`
	Position   PositionRange `json:"recommended_position_range"`
	Rationale  string        `json:"rationale"`
	ReasonCode string        `json:"reason_code"`
	Overridden bool          `json:"overridden"`
}

// AnalysisResult bundles every engine output for one instrument
// ⭐ SSOT: 엔진 → 리포트/전달 계층 출력 계약
type AnalysisResult struct {
	Code           string                   `json:"code"`
	AsOf           time.Time                `json:"as_of"`
	CurrentPrice   float64                  `json:"current_price"`
	SimilarCount   int                      `json:"similar_count"`
	PrimaryHorizon int                      `json:"primary_horizon"`
	Environment    MarketEnvironment        `json:"environment"`
	Statistics     map[int]PeriodStatistics `json:"statistics"`
	Risk           RiskAssessment           `json:"risk"`
	Advice         SignalAdvice             `json:"advice"`
	ConfigHash     string                   `json:"config_hash"`
	SeriesHash     string                   `json:"series_hash"`
}

// Primary returns the statistics of the primary horizon
func (r *AnalysisResult) Primary() (PeriodStatistics, bool) {
	s, ok := r.Statistics[r.PrimaryHorizon]
	return s, ok
}
