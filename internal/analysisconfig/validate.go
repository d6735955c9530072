package analysisconfig

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/histpos/internal/contracts"
)

var ErrUnknownProfile = errors.New("unknown risk profile")

var validate = validator.New()

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 1단계: struct 태그 (validator), 2단계: 필드 간 제약
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{fe.Namespace(), fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())}
		}
		return err
	}

	// === Horizons ===
	if !slices.Contains(cfg.Horizons.Days, cfg.Horizons.Primary) {
		return ValidationError{"horizons.primary", fmt.Sprintf("%d must be one of days %v", cfg.Horizons.Primary, cfg.Horizons.Days)}
	}
	seen := make(map[int]bool)
	for _, h := range cfg.Horizons.Days {
		if seen[h] {
			return ValidationError{"horizons.days", fmt.Sprintf("duplicate horizon %d", h)}
		}
		seen[h] = true
	}

	// === Regime ===
	th := cfg.Regime.Thresholds
	if th.BullMidRSI.Min > th.BullMidRSI.Max {
		return ValidationError{"regime.thresholds.bull_mid_rsi", "min must be <= max"}
	}
	if th.BullMidDistance.Min > th.BullMidDistance.Max {
		return ValidationError{"regime.thresholds.bull_mid_distance", "min must be <= max"}
	}
	if th.BearMidRSI.Min > th.BearMidRSI.Max {
		return ValidationError{"regime.thresholds.bear_mid_rsi", "min must be <= max"}
	}
	for field, v := range map[string]float64{
		"regime.thresholds.bull_top_rsi":    th.BullTopRSI,
		"regime.thresholds.bear_bottom_rsi": th.BearBottomRSI,
	} {
		if v < 0 || v > 100 {
			return ValidationError{field, "must be in range [0, 100]"}
		}
	}

	// === Risk ===
	if _, err := cfg.Profile(cfg.Risk.DefaultProfile); err != nil {
		return ValidationError{"risk.default_profile", err.Error()}
	}
	for name, p := range cfg.Risk.Profiles {
		if err := p.Validate(); err != nil {
			return ValidationError{fmt.Sprintf("risk.profiles.%s", name), err.Error()}
		}
	}
	for name, v := range cfg.Risk.Triggers {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return ValidationError{fmt.Sprintf("risk.triggers.%s", name), "must be in range [0, 1]"}
		}
	}

	// === Advisor ===
	if len(cfg.Advisor.Rules) == 0 {
		return ValidationError{"advisor.rules", "must not be empty"}
	}
	for i, r := range cfg.Advisor.Rules {
		if err := validatePctRange(r.MinUpProbability, fmt.Sprintf("advisor.rules[%d].min_up_probability", i)); err != nil {
			return err
		}
		if err := validatePctRange(r.MaxRisk, fmt.Sprintf("advisor.rules[%d].max_risk", i)); err != nil {
			return err
		}
		if err := validatePosition(r.Position, fmt.Sprintf("advisor.rules[%d].position", i)); err != nil {
			return err
		}
		if r.Direction == "" {
			return ValidationError{fmt.Sprintf("advisor.rules[%d].direction", i), "required"}
		}
		// 위에서부터 평가되므로 확률 하한은 내림차순
		if i > 0 && r.MinUpProbability > cfg.Advisor.Rules[i-1].MinUpProbability {
			return ValidationError{fmt.Sprintf("advisor.rules[%d]", i), "min_up_probability must not increase down the table"}
		}
	}
	for field, pos := range map[string]contracts.PositionRange{
		"advisor.bearish_position": cfg.Advisor.BearishPosition,
		"advisor.neutral_position": cfg.Advisor.NeutralPosition,
		"advisor.hold_position":    cfg.Advisor.HoldPosition,
	} {
		if err := validatePosition(pos, field); err != nil {
			return err
		}
	}
	if cfg.Advisor.HoldRisk > cfg.Advisor.BearishRisk {
		return ValidationError{"advisor.hold_risk", "must be <= bearish_risk"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Similarity.Tolerance > 0.10 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_TOLERANCE",
			Message: "tolerance > 10%: similar periods may not be comparable",
		})
	}

	maxH := contracts.MaxHorizon(cfg.Horizons.Days)
	if cfg.Similarity.ExcludeRecent > 0 && cfg.Similarity.ExcludeRecent < maxH {
		warnings = append(warnings, Warning{
			Code:    "SHORT_EXCLUSION",
			Message: fmt.Sprintf("exclude_recent=%d < max horizon %d: recent matches only contribute short horizons", cfg.Similarity.ExcludeRecent, maxH),
		})
	}

	if cfg.Similarity.MinSpacing == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_DEDUP",
			Message: "min_spacing=0: adjacent sessions count as independent samples (autocorrelated)",
		})
	}

	if cfg.Statistics.MinReliableSample < 20 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_SAMPLE",
			Message: "min_reliable_sample < 20: confidence saturates on small samples",
		})
	}

	if cfg.Regime.Lookback < cfg.Regime.MALong {
		warnings = append(warnings, Warning{
			Code:    "SHORT_LOOKBACK",
			Message: "regime lookback shorter than long MA: long MA governs history requirement",
		})
	}

	return warnings
}

// === Helper Functions ===

// validatePctRange는 퍼센트 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}

func validatePosition(p contracts.PositionRange, field string) error {
	if err := validatePctRange(p.Min, field+".min"); err != nil {
		return err
	}
	if err := validatePctRange(p.Max, field+".max"); err != nil {
		return err
	}
	if p.Min > p.Max {
		return ValidationError{field, "min must be <= max"}
	}
	return nil
}
