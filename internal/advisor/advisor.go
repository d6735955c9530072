package advisor

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/regime"
)

// Rule 규칙표 한 행 (확률 하한 + 리스크 상한)
type Rule struct {
	MinUpProbability float64                 `yaml:"min_up_probability" json:"min_up_probability"`
	MaxRisk          float64                 `yaml:"max_risk" json:"max_risk"`
	Direction        contracts.Direction     `yaml:"direction" json:"direction"`
	Position         contracts.PositionRange `yaml:"position" json:"position"`
}

// Config 판단 임계값
// ⭐ SSOT: 규칙은 위에서부터 평가, 첫 매칭 우선
type Config struct {
	Rules []Rule `yaml:"rules" json:"rules"`

	// BEARISH: up_probability < BearishUpProbability OR risk > BearishRisk
	BearishUpProbability float64                 `yaml:"bearish_up_probability" json:"bearish_up_probability" default:"0.40"`
	BearishRisk          float64                 `yaml:"bearish_risk" json:"bearish_risk" default:"0.70"`
	BearishPosition      contracts.PositionRange `yaml:"bearish_position" json:"bearish_position"`

	NeutralPosition contracts.PositionRange `yaml:"neutral_position" json:"neutral_position"`

	// BEARISH이지만 리스크 < HoldRisk → 보유 유지
	HoldRisk     float64                 `yaml:"hold_risk" json:"hold_risk" default:"0.30"`
	HoldPosition contracts.PositionRange `yaml:"hold_position" json:"hold_position"`
}

// DefaultConfig 기본 규칙표
func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{MinUpProbability: 0.70, MaxRisk: 0.30, Direction: contracts.DirectionStrongBullish, Position: contracts.PositionRange{Min: 0.70, Max: 0.80}},
			{MinUpProbability: 0.60, MaxRisk: 0.50, Direction: contracts.DirectionBullish, Position: contracts.PositionRange{Min: 0.60, Max: 0.70}},
			{MinUpProbability: 0.50, MaxRisk: 0.60, Direction: contracts.DirectionNeutralBullish, Position: contracts.PositionRange{Min: 0.50, Max: 0.60}},
		},
		BearishUpProbability: 0.40,
		BearishRisk:          0.70,
		BearishPosition:      contracts.PositionRange{Min: 0.20, Max: 0.30},
		NeutralPosition:      contracts.PositionRange{Min: 0.40, Max: 0.50},
		HoldRisk:             0.30,
		HoldPosition:         contracts.PositionRange{Min: 0.40, Max: 0.50},
	}
}

// Advisor 방향성/비중 판단기
type Advisor struct {
	config Config
	log    zerolog.Logger
}

// New 새 판단기 생성
func New(log zerolog.Logger) *Advisor {
	return NewWithConfig(DefaultConfig(), log)
}

// NewWithConfig 커스텀 설정으로 판단기 생성
func NewWithConfig(config Config, log zerolog.Logger) *Advisor {
	return &Advisor{
		config: config,
		log:    log.With().Str("component", "advisor").Logger(),
	}
}

// Advise 주 horizon 통계 + 리스크 → 방향성/비중
// 환경(국면)은 rationale 문구에만 사용, 분기 판단에는 사용하지 않음
// 리스크 미결정이면 리스크 경계가 필요한 규칙은 성립하지 않음
func (a *Advisor) Advise(stats contracts.PeriodStatistics, risk contracts.RiskAssessment, env contracts.MarketEnvironment) contracts.SignalAdvice {
	if stats.InsufficientData || stats.SampleSize == 0 {
		advice := contracts.SignalAdvice{
			Direction:  contracts.DirectionNeutral,
			Position:   a.config.NeutralPosition,
			ReasonCode: contracts.ReasonInsufficientHistory,
			Rationale: fmt.Sprintf("insufficient history: %s; %s",
				sampleSummary(stats), regime.Describe(env)),
		}
		a.logAdvice(stats, risk, advice)
		return advice
	}

	advice := a.applyRules(stats, risk)
	advice.Rationale = a.rationale(stats, risk, env, advice.Direction)

	if advice.Direction == contracts.DirectionBearish && risk.Below(a.config.HoldRisk) {
		advice = contracts.SignalAdvice{
			Direction:  contracts.DirectionHold,
			Position:   a.config.HoldPosition,
			ReasonCode: contracts.ReasonLowRiskHold,
			Overridden: true,
			Rationale: fmt.Sprintf("low risk — may continue to hold: up probability %.0f%% is weak but risk %.2f is below %.2f; %s",
				stats.UpProbability*100, risk.Score, a.config.HoldRisk, regime.Describe(env)),
		}
	}

	a.logAdvice(stats, risk, advice)
	return advice
}

func (a *Advisor) applyRules(stats contracts.PeriodStatistics, risk contracts.RiskAssessment) contracts.SignalAdvice {
	p := stats.UpProbability

	for _, rule := range a.config.Rules {
		if p >= rule.MinUpProbability && risk.Below(rule.MaxRisk) {
			return contracts.SignalAdvice{
				Direction:  rule.Direction,
				Position:   rule.Position,
				ReasonCode: contracts.ReasonRuleTable,
			}
		}
	}

	if p < a.config.BearishUpProbability || risk.Above(a.config.BearishRisk) {
		return contracts.SignalAdvice{
			Direction:  contracts.DirectionBearish,
			Position:   a.config.BearishPosition,
			ReasonCode: contracts.ReasonRuleTable,
		}
	}

	return contracts.SignalAdvice{
		Direction:  contracts.DirectionNeutral,
		Position:   a.config.NeutralPosition,
		ReasonCode: contracts.ReasonRuleTable,
	}
}

func (a *Advisor) rationale(stats contracts.PeriodStatistics, risk contracts.RiskAssessment, env contracts.MarketEnvironment, dir contracts.Direction) string {
	parts := []string{
		fmt.Sprintf("%d of %d similar periods rose over %d days (%.0f%%, mean %+.2f%%, confidence %.2f)",
			stats.UpCount, stats.SampleSize, stats.Horizon, stats.UpProbability*100, stats.MeanReturn*100, stats.Confidence),
	}

	if risk.Determined {
		parts = append(parts, fmt.Sprintf("risk %.2f (%s)", risk.Score, risk.Level))
		if len(risk.Factors) > 0 {
			names := make([]string, 0, len(risk.Factors))
			for _, f := range risk.Factors {
				names = append(names, f.Name)
			}
			parts = append(parts, "driven by "+strings.Join(names, ", "))
		}
	} else {
		parts = append(parts, "risk undetermined (no risk signals)")
	}

	parts = append(parts, regime.Describe(env))

	switch {
	case isBullish(dir) && env.IsBearish():
		parts = append(parts, "history leans up but the market is in a bear regime")
	case dir == contracts.DirectionBearish && env.IsBullish():
		parts = append(parts, "history leans down despite a bull regime")
	}

	if dir == contracts.DirectionBearish {
		parts = append(parts, "consider reducing exposure")
	}

	return strings.Join(parts, "; ")
}

// sampleSummary 데이터 부족 사유 (표본 0 과 소표본 구분)
func sampleSummary(stats contracts.PeriodStatistics) string {
	if stats.SampleSize == 0 {
		return fmt.Sprintf("no similar periods with a %d-day outcome", stats.Horizon)
	}
	return fmt.Sprintf("only %d similar periods with a %d-day outcome", stats.SampleSize, stats.Horizon)
}

func isBullish(d contracts.Direction) bool {
	return d == contracts.DirectionStrongBullish || d == contracts.DirectionBullish || d == contracts.DirectionNeutralBullish
}

func (a *Advisor) logAdvice(stats contracts.PeriodStatistics, risk contracts.RiskAssessment, advice contracts.SignalAdvice) {
	a.log.Debug().
		Int("horizon", stats.Horizon).
		Float64("up_probability", stats.UpProbability).
		Bool("risk_determined", risk.Determined).
		Float64("risk_score", risk.Score).
		Str("direction", string(advice.Direction)).
		Str("position", advice.Position.String()).
		Bool("overridden", advice.Overridden).
		Msg("advice generated")
}
