package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/forecast"
)

// =============================================================================
// Core providers (가격 이력만으로 계산)
// =============================================================================

// DownsideProvider 주 horizon 하락 확률 (1 - up_probability)
// 유사 구간 샘플이 없으면 시그널 없음
// 표본이 MinReliableSample 미만이면 과거 분위수 VaR 대신 정규분포 VaR을 설명에 사용
type DownsideProvider struct {
	Confidence float64 // VaR 신뢰수준
}

// NewDownsideProvider 새 하락 확률 provider
func NewDownsideProvider() *DownsideProvider {
	return &DownsideProvider{Confidence: 0.95}
}

func (p *DownsideProvider) Name() string { return contracts.SignalDownsideProbability }

func (p *DownsideProvider) Signal(_ context.Context, in contracts.SignalInput) (*contracts.RiskSignal, error) {
	stats, ok := in.Statistics[in.PrimaryHorizon]
	if !ok || stats.InsufficientData || stats.SampleSize == 0 {
		return nil, nil
	}

	method := "historical"
	v := CalculateVaR(forecast.Returns(in.Samples[in.PrimaryHorizon]), p.Confidence)
	if stats.SampleSize < in.MinReliableSample {
		method = "parametric"
		v = CalculateParametricVaR(stats.MeanReturn, stats.StdReturn, p.Confidence)
	}

	return &contracts.RiskSignal{
		Name:      p.Name(),
		Magnitude: clamp01(stats.DownProbability()),
		Direction: "down",
		Description: fmt.Sprintf("%d/%d similar periods fell within %d days (%s VaR%.0f %.1f%%, CVaR %.1f%%)",
			stats.SampleSize-stats.UpCount, stats.SampleSize, in.PrimaryHorizon,
			method, p.Confidence*100, v.VaR*100, v.CVaR*100),
	}, nil
}

// DivergenceProvider 약세 다이버전스 (가격 신고점 + RSI 고점 하락)
type DivergenceProvider struct {
	Window    int     // 비교 구간 (세션)
	RSIPeriod int     // RSI 기간
	Scale     float64 // RSI 차이 정규화 (차이 Scale 이상 → 1.0)
}

// NewDivergenceProvider 새 다이버전스 provider
func NewDivergenceProvider() *DivergenceProvider {
	return &DivergenceProvider{Window: 20, RSIPeriod: 14, Scale: 20}
}

func (p *DivergenceProvider) Name() string { return contracts.SignalTechnicalDivergence }

func (p *DivergenceProvider) Signal(_ context.Context, in contracts.SignalInput) (*contracts.RiskSignal, error) {
	closes := in.Series.Closes()
	n := len(closes)
	if n < p.Window+p.RSIPeriod+1 {
		return nil, nil
	}

	rsi := talib.Rsi(closes, p.RSIPeriod)

	// 직전 구간 (현재 세션 제외) 최고 종가 위치
	peak := n - p.Window
	for i := n - p.Window; i < n-1; i++ {
		if closes[i] > closes[peak] {
			peak = i
		}
	}

	current := rsi[n-1]
	magnitude := 0.0
	desc := "no bearish divergence"
	if closes[n-1] >= closes[peak] && current < rsi[peak] {
		magnitude = clamp01((rsi[peak] - current) / p.Scale)
		desc = fmt.Sprintf("price at new %d-day high while RSI fell %.1f -> %.1f", p.Window, rsi[peak], current)
	}

	return &contracts.RiskSignal{
		Name:        p.Name(),
		Magnitude:   magnitude,
		Direction:   "bearish",
		Description: desc,
	}, nil
}

// ExtremityProvider RSI 과매수 정도 (RSI 30 → 0, RSI 80 → 1)
type ExtremityProvider struct {
	RSIPeriod int
	Floor     float64
	Ceiling   float64
}

// NewExtremityProvider 새 과매수/과매도 provider
func NewExtremityProvider() *ExtremityProvider {
	return &ExtremityProvider{RSIPeriod: 14, Floor: 30, Ceiling: 80}
}

func (p *ExtremityProvider) Name() string { return contracts.SignalOverboughtOversold }

func (p *ExtremityProvider) Signal(_ context.Context, in contracts.SignalInput) (*contracts.RiskSignal, error) {
	rsi := in.Environment.RSI
	if in.Environment.InsufficientData {
		closes := in.Series.Closes()
		if len(closes) < p.RSIPeriod+1 {
			return nil, nil
		}
		rsi = lastFinite(talib.Rsi(closes, p.RSIPeriod))
	}

	return &contracts.RiskSignal{
		Name:        p.Name(),
		Magnitude:   clamp01((rsi - p.Floor) / (p.Ceiling - p.Floor)),
		Direction:   "overbought",
		Description: fmt.Sprintf("RSI %.1f", rsi),
	}, nil
}

// MADeviationProvider 중기 이동평균 대비 상방 괴리 (MaxDeviation 이상 → 1.0)
type MADeviationProvider struct {
	Period       int
	MaxDeviation float64
}

// NewMADeviationProvider 새 이평 괴리 provider
func NewMADeviationProvider() *MADeviationProvider {
	return &MADeviationProvider{Period: 60, MaxDeviation: 0.20}
}

func (p *MADeviationProvider) Name() string { return contracts.SignalMADeviation }

func (p *MADeviationProvider) Signal(_ context.Context, in contracts.SignalInput) (*contracts.RiskSignal, error) {
	closes := in.Series.Closes()
	if len(closes) < p.Period {
		return nil, nil
	}

	ma := lastFinite(talib.Sma(closes, p.Period))
	if ma <= 0 {
		return nil, nil
	}

	deviation := (in.CurrentPrice - ma) / ma

	return &contracts.RiskSignal{
		Name:        p.Name(),
		Magnitude:   clamp01(deviation / p.MaxDeviation),
		Direction:   "above_ma",
		Description: fmt.Sprintf("%.1f%% from %d-day MA", deviation*100, p.Period),
	}, nil
}

// =============================================================================
// External provider (시장별 어댑터가 공급한 값)
// =============================================================================

// Normalizer 원시 값 → [0,1] 리스크 강도
type Normalizer func(v float64) float64

// Normalizers 설정에서 이름으로 참조하는 정규화 함수
var Normalizers = map[string]Normalizer{
	// 이미 0~1 리스크 강도
	"identity": clamp01,
	// 0~100 백분위 (변동성 지수, 밸류에이션)
	"percentile": func(v float64) float64 { return clamp01(v / 100) },
	// -1(순유출) ~ +1(순유입) 자금 흐름 점수, 유출일수록 위험
	"flow": func(v float64) float64 { return clamp01((1 - v) / 2) },
}

// ExternalProvider 호출별 외부 값을 정규화해 시그널로 전달
// 해당 slot 값이 없으면 시그널 없음 (재분배 대상)
type ExternalProvider struct {
	name       string
	slot       string
	normalizer string
	weight     float64
}

// NewExternalProvider 새 외부 시그널 provider
func NewExternalProvider(name, slot, normalizer string, weightDefault float64) *ExternalProvider {
	return &ExternalProvider{name: name, slot: slot, normalizer: normalizer, weight: weightDefault}
}

func (p *ExternalProvider) Name() string { return p.name }

func (p *ExternalProvider) Signal(_ context.Context, in contracts.SignalInput) (*contracts.RiskSignal, error) {
	raw, ok := in.External[p.slot]
	if !ok {
		return nil, nil
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return nil, fmt.Errorf("%w: %s value %v", ErrInvalidSignal, p.slot, raw)
	}

	norm, ok := Normalizers[p.normalizer]
	if !ok {
		return nil, fmt.Errorf("%w: unknown normalizer %q for %s", ErrInvalidSignal, p.normalizer, p.slot)
	}

	return &contracts.RiskSignal{
		Name:          p.name,
		Magnitude:     norm(raw),
		WeightDefault: p.weight,
		Description:   fmt.Sprintf("%s=%.3f", p.slot, raw),
	}, nil
}

// CoreProviders 가격 이력 기반 기본 provider 목록
func CoreProviders() []contracts.RiskSignalProvider {
	return []contracts.RiskSignalProvider{
		NewDownsideProvider(),
		NewDivergenceProvider(),
		NewExtremityProvider(),
		NewMADeviationProvider(),
	}
}

// Collect provider 시그널 수집 + 호출자가 직접 공급한 시그널 병합
// 이름이 겹치면 직접 공급한 시그널 우선
func Collect(ctx context.Context, providers []contracts.RiskSignalProvider, in contracts.SignalInput, supplied []contracts.RiskSignal) ([]contracts.RiskSignal, error) {
	override := make(map[string]bool, len(supplied))
	for _, s := range supplied {
		override[s.Name] = true
	}

	signals := make([]contracts.RiskSignal, 0, len(providers)+len(supplied))
	for _, p := range providers {
		if override[p.Name()] {
			continue
		}
		sig, err := p.Signal(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name(), err)
		}
		if sig != nil {
			signals = append(signals, *sig)
		}
	}

	return append(signals, supplied...), nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func lastFinite(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
