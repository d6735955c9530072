package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
)

var (
	ErrInvalidSignal   = errors.New("invalid risk signal")
	ErrDuplicateSignal = errors.New("duplicate risk signal")
	ErrInvalidWeights  = errors.New("invalid risk weights")
)

// ScorerConfig 복합 리스크 점수 설정
type ScorerConfig struct {
	Weights  WeightTable        `yaml:"weights" json:"weights"`
	Triggers map[string]float64 `yaml:"triggers" json:"triggers"`
	Levels   LevelCuts          `yaml:"levels" json:"levels"`
}

// DefaultScorerConfig 기본 설정
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:  DefaultWeights(),
		Triggers: DefaultTriggers(),
		Levels:   DefaultLevelCuts(),
	}
}

// Scorer 복합 리스크 점수 계산기
// ⭐ SSOT: 없는 시그널의 가중치는 존재하는 시그널에 비례 재분배 (Σ 유효 가중치 = 1)
type Scorer struct {
	config ScorerConfig
	log    zerolog.Logger
}

// NewScorer 새 점수 계산기 생성
func NewScorer(log zerolog.Logger) *Scorer {
	return NewScorerWithConfig(DefaultScorerConfig(), log)
}

// NewScorerWithConfig 커스텀 설정으로 점수 계산기 생성
func NewScorerWithConfig(config ScorerConfig, log zerolog.Logger) *Scorer {
	if config.Weights == nil {
		config.Weights = DefaultWeights()
	}
	if config.Triggers == nil {
		config.Triggers = DefaultTriggers()
	}
	if config.Levels == (LevelCuts{}) {
		config.Levels = DefaultLevelCuts()
	}
	return &Scorer{
		config: config,
		log:    log.With().Str("component", "risk.scorer").Logger(),
	}
}

// Config 현재 설정
func (s *Scorer) Config() ScorerConfig {
	return s.config
}

// Score 존재하는 시그널로 복합 리스크 점수 계산
// 시그널이 없으면 Determined=false, Level=UNDETERMINED (0이나 0.5로 대체하지 않음)
func (s *Scorer) Score(signals []contracts.RiskSignal) (contracts.RiskAssessment, error) {
	undetermined := contracts.RiskAssessment{
		Level:   contracts.RiskUndetermined,
		Factors: []contracts.RiskFactor{},
		Weights: []contracts.RiskFactor{},
	}

	if len(signals) == 0 {
		s.log.Debug().Msg("no risk signals, score undetermined")
		return undetermined, nil
	}

	seen := make(map[string]bool, len(signals))
	bases := make([]float64, len(signals))
	baseSum := 0.0
	var ignored []string

	for i, sig := range signals {
		if sig.Name == "" {
			return undetermined, fmt.Errorf("%w: empty name", ErrInvalidSignal)
		}
		if seen[sig.Name] {
			return undetermined, fmt.Errorf("%w: %s", ErrDuplicateSignal, sig.Name)
		}
		seen[sig.Name] = true

		if math.IsNaN(sig.Magnitude) || sig.Magnitude < 0 || sig.Magnitude > 1 {
			return undetermined, fmt.Errorf("%w: %s magnitude %v outside [0,1]", ErrInvalidSignal, sig.Name, sig.Magnitude)
		}

		base := s.baseWeight(sig)
		if math.IsNaN(base) || base < 0 {
			return undetermined, fmt.Errorf("%w: %s weight %v", ErrInvalidSignal, sig.Name, base)
		}
		bases[i] = base
		baseSum += base

		// 기본 가중치 0 (표에 없고 WeightDefault도 0) → 점수에 반영될 수 없으므로 제외하고 기록
		if base == 0 {
			s.log.Warn().
				Str("signal", sig.Name).
				Float64("magnitude", sig.Magnitude).
				Msg("signal has zero base weight in this profile, ignored")
			ignored = append(ignored, sig.Name)
		}
	}

	// 모든 기본 가중치가 0 → 재분배 불가
	if baseSum <= 0 {
		s.log.Warn().Int("signals", len(signals)).Msg("all signal weights are zero, score undetermined")
		undetermined.Ignored = ignored
		return undetermined, nil
	}

	result := contracts.RiskAssessment{
		Determined: true,
		Factors:    []contracts.RiskFactor{},
		Weights:    make([]contracts.RiskFactor, 0, len(signals)),
		Ignored:    ignored,
	}

	for i, sig := range signals {
		if bases[i] == 0 {
			continue
		}
		eff := bases[i] / baseSum
		contribution := sig.Magnitude * eff
		result.Score += contribution

		factor := contracts.RiskFactor{
			Name:            sig.Name,
			Magnitude:       sig.Magnitude,
			EffectiveWeight: eff,
			Contribution:    contribution,
			Description:     sig.Description,
		}
		result.Weights = append(result.Weights, factor)

		if sig.Magnitude > s.trigger(sig.Name) {
			result.Factors = append(result.Factors, factor)
		}

		if w, ok := s.config.Weights[sig.Name]; ok {
			result.Coverage += w
		}
	}

	// 부동소수점 누적 오차로 [0,1] 밖으로 나가지 않도록
	result.Score = math.Min(1, math.Max(0, result.Score))
	result.Level = s.config.Levels.Level(result.Score)

	sort.SliceStable(result.Factors, func(a, b int) bool {
		if result.Factors[a].Contribution != result.Factors[b].Contribution {
			return result.Factors[a].Contribution > result.Factors[b].Contribution
		}
		return result.Factors[a].Name < result.Factors[b].Name
	})

	s.log.Debug().
		Int("signals", len(signals)).
		Float64("score", result.Score).
		Str("level", string(result.Level)).
		Float64("coverage", result.Coverage).
		Float64("weight_sum", result.EffectiveWeightSum()).
		Int("factors", len(result.Factors)).
		Msg("risk scored")

	return result, nil
}

func (s *Scorer) baseWeight(sig contracts.RiskSignal) float64 {
	if w, ok := s.config.Weights[sig.Name]; ok {
		return w
	}
	return sig.WeightDefault
}

func (s *Scorer) trigger(name string) float64 {
	if t, ok := s.config.Triggers[name]; ok {
		return t
	}
	return DefaultTrigger
}
