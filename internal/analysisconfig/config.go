package analysisconfig

import (
	"fmt"

	"github.com/wonny/histpos/internal/advisor"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/forecast"
	"github.com/wonny/histpos/internal/regime"
	"github.com/wonny/histpos/internal/risk"
)

// Config는 분석 엔진의 전체 파라미터 세트
// ⭐ SSOT: 이 구조체의 해시가 캐시 키의 일부 (값 하나만 바뀌어도 모든 결과 무효)
type Config struct {
	Meta       Meta                      `yaml:"meta" json:"meta"`
	Similarity forecast.SimilarityConfig `yaml:"similarity" json:"similarity"`
	Horizons   Horizons                  `yaml:"horizons" json:"horizons"`
	Statistics forecast.StatisticsConfig `yaml:"statistics" json:"statistics"`
	Regime     regime.Config             `yaml:"regime" json:"regime"`
	Risk       Risk                      `yaml:"risk" json:"risk"`
	Advisor    advisor.Config            `yaml:"advisor" json:"advisor"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id" validate:"required"`
	Version  string `yaml:"version" json:"version"`
}

// Horizons 전방 수익률 horizon 설정
type Horizons struct {
	Days    []int `yaml:"days" json:"days" validate:"min=1,dive,gt=0"`
	Primary int   `yaml:"primary" json:"primary" default:"20" validate:"gt=0"`
}

// Risk 리스크 점수 설정
type Risk struct {
	DefaultProfile string                  `yaml:"default_profile" json:"default_profile" default:"index" validate:"required"`
	Triggers       map[string]float64      `yaml:"triggers" json:"triggers"`
	Levels         risk.LevelCuts          `yaml:"levels" json:"levels"`
	Profiles       map[string]risk.Profile `yaml:"profiles" json:"profiles" validate:"min=1,dive"`
}

// Default 기본 설정 (YAML은 이 값 위에 덮어씀)
func Default() *Config {
	return &Config{
		Meta:       Meta{ConfigID: "default", Version: "1.0.0"},
		Similarity: forecast.DefaultSimilarityConfig(),
		Horizons: Horizons{
			Days:    contracts.DefaultHorizons(),
			Primary: 20,
		},
		Statistics: forecast.DefaultStatisticsConfig(),
		Regime:     regime.DefaultConfig(),
		Risk: Risk{
			DefaultProfile: risk.ProfileIndex,
			Triggers:       risk.DefaultTriggers(),
			Levels:         risk.DefaultLevelCuts(),
			Profiles:       risk.DefaultProfiles(),
		},
		Advisor: advisor.DefaultConfig(),
	}
}

// Profile 이름으로 시장 프로필 조회 (빈 이름 → 기본 프로필)
func (c *Config) Profile(name string) (risk.Profile, error) {
	if name == "" {
		name = c.Risk.DefaultProfile
	}
	p, ok := c.Risk.Profiles[name]
	if !ok {
		return risk.Profile{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProfile, name, risk.ProfileNames(c.Risk.Profiles))
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}

// ScorerConfig 프로필 가중치 + 공통 trigger/등급 경계
func (c *Config) ScorerConfig(p risk.Profile) risk.ScorerConfig {
	return risk.ScorerConfig{
		Weights:  p.Weights.Clone(),
		Triggers: c.Risk.Triggers,
		Levels:   c.Risk.Levels,
	}
}
