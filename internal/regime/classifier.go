package regime

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
)

// Band 닫힌 구간 [Min, Max]
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains 구간 포함 여부 (양 끝 포함)
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Thresholds 국면 분류 경계값
// ⭐ SSOT: 평가 순서 BULL_TOP → BULL_MID → BEAR_BOTTOM → BEAR_MID → RANGING (첫 매칭 우선)
type Thresholds struct {
	BullTopRSI         float64 `yaml:"bull_top_rsi" json:"bull_top_rsi" default:"70"`                   // RSI > 값
	BullTopDistance    float64 `yaml:"bull_top_distance" json:"bull_top_distance" default:"0.05"`       // dist < 값
	BullMidRSI         Band    `yaml:"bull_mid_rsi" json:"bull_mid_rsi"`                                // RSI ∈ 구간
	BullMidDistance    Band    `yaml:"bull_mid_distance" json:"bull_mid_distance"`                      // dist ∈ 구간
	BearBottomRSI      float64 `yaml:"bear_bottom_rsi" json:"bear_bottom_rsi" default:"30"`             // RSI < 값
	BearBottomDistance float64 `yaml:"bear_bottom_distance" json:"bear_bottom_distance" default:"0.40"` // dist > 값
	BearMidRSI         Band    `yaml:"bear_mid_rsi" json:"bear_mid_rsi"`                                // RSI ∈ 구간
	BearMidDistance    float64 `yaml:"bear_mid_distance" json:"bear_mid_distance" default:"0.20"`       // dist > 값
}

// DefaultThresholds 기본 경계값
func DefaultThresholds() Thresholds {
	return Thresholds{
		BullTopRSI:         70,
		BullTopDistance:    0.05,
		BullMidRSI:         Band{Min: 50, Max: 70},
		BullMidDistance:    Band{Min: 0.05, Max: 0.20},
		BearBottomRSI:      30,
		BearBottomDistance: 0.40,
		BearMidRSI:         Band{Min: 30, Max: 50},
		BearMidDistance:    0.20,
	}
}

// Config 국면 분류 설정
type Config struct {
	Lookback   int        `yaml:"lookback" json:"lookback" default:"252" validate:"gt=0"`
	RSIPeriod  int        `yaml:"rsi_period" json:"rsi_period" default:"14" validate:"gt=1"`
	MAShort    int        `yaml:"ma_short" json:"ma_short" default:"20" validate:"gt=0"`
	MAMedium   int        `yaml:"ma_medium" json:"ma_medium" default:"60" validate:"gtfield=MAShort"`
	MALong     int        `yaml:"ma_long" json:"ma_long" default:"120" validate:"gtfield=MAMedium"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
}

// DefaultConfig 기본 설정
func DefaultConfig() Config {
	return Config{
		Lookback:   252,
		RSIPeriod:  14,
		MAShort:    20,
		MAMedium:   60,
		MALong:     120,
		Thresholds: DefaultThresholds(),
	}
}

// Metrics 분류 입력 지표
type Metrics struct {
	RSI            float64
	DistanceToHigh float64
	MAState        contracts.MAState
}

// Classifier 시장 국면 분류기
type Classifier struct {
	config Config
	log    zerolog.Logger
}

// NewClassifier 새 분류기 생성
func NewClassifier(log zerolog.Logger) *Classifier {
	return NewClassifierWithConfig(DefaultConfig(), log)
}

// NewClassifierWithConfig 커스텀 설정으로 분류기 생성
func NewClassifierWithConfig(config Config, log zerolog.Logger) *Classifier {
	return &Classifier{
		config: config,
		log:    log.With().Str("component", "regime.classifier").Logger(),
	}
}

// Classify 시계열에서 현재 시장 환경 도출
// 이력이 lookback보다 짧으면 UNKNOWN + InsufficientData (추정하지 않음)
func (c *Classifier) Classify(ctx context.Context, series *contracts.PriceSeries, currentPrice float64) contracts.MarketEnvironment {
	env := contracts.MarketEnvironment{
		Regime:       contracts.RegimeUnknown,
		MAState:      contracts.MANeutral,
		CurrentPrice: currentPrice,
	}

	n := series.Len()
	if n < c.minHistory() {
		env.InsufficientData = true
		c.log.Debug().
			Str("code", series.Code).
			Int("history", n).
			Int("required", c.minHistory()).
			Msg("insufficient history for regime")
		return env
	}

	closes := series.Closes()

	env.RSI = lastValid(talib.Rsi(closes, c.config.RSIPeriod))
	env.MAShort = lastValid(talib.Sma(closes, c.config.MAShort))
	env.MAMedium = lastValid(talib.Sma(closes, c.config.MAMedium))
	env.MALong = lastValid(talib.Sma(closes, c.config.MALong))
	env.MAState = MAStateOf(env.MAShort, env.MAMedium, env.MALong)

	env.RollingHigh = rollingHigh(series.Window(c.config.Lookback))
	if env.RollingHigh > 0 {
		env.DistanceToHigh = (env.RollingHigh - currentPrice) / env.RollingHigh
	}

	env.Regime = ClassifyMetrics(Metrics{
		RSI:            env.RSI,
		DistanceToHigh: env.DistanceToHigh,
		MAState:        env.MAState,
	}, c.config.Thresholds)

	c.log.Debug().
		Str("code", series.Code).
		Str("regime", string(env.Regime)).
		Float64("rsi", env.RSI).
		Float64("distance_to_high", env.DistanceToHigh).
		Str("ma_state", string(env.MAState)).
		Msg("regime classified")

	return env
}

// minHistory lookback과 지표 계산에 필요한 최소 세션 수 중 큰 값
func (c *Classifier) minHistory() int {
	return max(c.config.Lookback, c.config.MALong, c.config.RSIPeriod+1)
}

// ClassifyMetrics 지표 → 국면 (우선순위 고정)
func ClassifyMetrics(m Metrics, t Thresholds) contracts.Regime {
	switch {
	case m.RSI > t.BullTopRSI && m.DistanceToHigh < t.BullTopDistance && m.MAState == contracts.MABullish:
		return contracts.RegimeBullTop
	case t.BullMidRSI.Contains(m.RSI) && t.BullMidDistance.Contains(m.DistanceToHigh) && m.MAState == contracts.MABullish:
		return contracts.RegimeBullMid
	case m.RSI < t.BearBottomRSI && m.DistanceToHigh > t.BearBottomDistance && m.MAState == contracts.MABearish:
		return contracts.RegimeBearBottom
	case t.BearMidRSI.Contains(m.RSI) && m.DistanceToHigh > t.BearMidDistance && m.MAState == contracts.MABearish:
		return contracts.RegimeBearMid
	default:
		return contracts.RegimeRanging
	}
}

// MAStateOf 이동평균 배열 판정
func MAStateOf(short, medium, long float64) contracts.MAState {
	switch {
	case short > medium && medium > long:
		return contracts.MABullish
	case short < medium && medium < long:
		return contracts.MABearish
	default:
		return contracts.MANeutral
	}
}

// Describe 국면 설명 문구 (rationale용)
func Describe(env contracts.MarketEnvironment) string {
	if env.InsufficientData || env.Regime == contracts.RegimeUnknown {
		return "regime unknown (history shorter than lookback)"
	}

	var label string
	switch env.Regime {
	case contracts.RegimeBullTop:
		label = "bull market near its high"
	case contracts.RegimeBullMid:
		label = "bull market mid-trend"
	case contracts.RegimeBearBottom:
		label = "bear market near its low"
	case contracts.RegimeBearMid:
		label = "bear market mid-trend"
	default:
		label = "ranging market"
	}

	return fmt.Sprintf("%s (RSI %.1f, %.1f%% below high, MA %s)",
		label, env.RSI, env.DistanceToHigh*100, env.MAState)
}

// rollingHigh 구간 최고 종가
func rollingHigh(bars []contracts.PriceBar) float64 {
	high := 0.0
	for _, b := range bars {
		if b.Close > high {
			high = b.Close
		}
	}
	return high
}

func lastValid(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
