package risk

import (
	"fmt"
	"sort"

	"github.com/wonny/histpos/internal/contracts"
)

// ExternalSlot 외부 값 slot → 시그널 매핑
type ExternalSlot struct {
	Slot       string `yaml:"slot" json:"slot" validate:"required"`
	Signal     string `yaml:"signal" json:"signal" validate:"required"`
	Normalizer string `yaml:"normalizer" json:"normalizer" default:"identity" validate:"oneof=identity percentile flow"`
}

// Profile 시장별 리스크 구성 (가중치 + 외부 시그널 slot)
// ⭐ SSOT: 시장 간 차이는 설정으로만 표현 (점수 알고리즘은 하나)
type Profile struct {
	Name     string         `yaml:"name" json:"name"`
	Weights  WeightTable    `yaml:"weights" json:"weights"`
	External []ExternalSlot `yaml:"external" json:"external" validate:"dive"`
}

// Providers 프로필에 해당하는 provider 목록 (core + external)
func (p Profile) Providers() []contracts.RiskSignalProvider {
	providers := make([]contracts.RiskSignalProvider, 0, 4+len(p.External))
	for _, core := range CoreProviders() {
		if _, ok := p.Weights[core.Name()]; ok {
			providers = append(providers, core)
		}
	}
	for _, ext := range p.External {
		providers = append(providers, NewExternalProvider(ext.Signal, ext.Slot, ext.Normalizer, p.Weights[ext.Signal]))
	}
	return providers
}

// Validate 가중치 및 slot 중복 검사
func (p Profile) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	seen := make(map[string]bool)
	for _, ext := range p.External {
		if seen[ext.Signal] {
			return fmt.Errorf("profile %s: %w: %s mapped twice", p.Name, ErrDuplicateSignal, ext.Signal)
		}
		seen[ext.Signal] = true
		if _, ok := Normalizers[ext.Normalizer]; !ok {
			return fmt.Errorf("profile %s: unknown normalizer %q", p.Name, ext.Normalizer)
		}
	}
	return nil
}

// Market profile names
const (
	ProfileIndex      = "index"
	ProfileSectorETF  = "sector_etf"
	ProfileSingleName = "single_name"
)

// DefaultProfiles 기본 시장 프로필
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileIndex: {
			Name:    ProfileIndex,
			Weights: DefaultWeights(),
			External: []ExternalSlot{
				{Slot: "northbound_flow", Signal: contracts.SignalCapitalFlow, Normalizer: "flow"},
				{Slot: "volatility_index_percentile", Signal: contracts.SignalSentiment, Normalizer: "percentile"},
			},
		},
		ProfileSectorETF: {
			Name:    ProfileSectorETF,
			Weights: DefaultWeights(),
			External: []ExternalSlot{
				{Slot: "fund_flow", Signal: contracts.SignalCapitalFlow, Normalizer: "flow"},
				{Slot: "valuation_percentile", Signal: contracts.SignalSentiment, Normalizer: "percentile"},
			},
		},
		ProfileSingleName: {
			Name: ProfileSingleName,
			Weights: WeightTable{
				contracts.SignalDownsideProbability: 0.35,
				contracts.SignalTechnicalDivergence: 0.20,
				contracts.SignalOverboughtOversold:  0.15,
				contracts.SignalMADeviation:         0.15,
				contracts.SignalSentiment:           0.15,
			},
			External: []ExternalSlot{
				{Slot: "valuation_percentile", Signal: contracts.SignalSentiment, Normalizer: "percentile"},
			},
		},
	}
}

// ProfileNames 정렬된 프로필 이름
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for k := range profiles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
