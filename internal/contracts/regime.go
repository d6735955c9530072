package contracts

// Regime 시장 국면
type Regime string

const (
	RegimeBullTop    Regime = "BULL_TOP"    // 강세 고점권
	RegimeBullMid    Regime = "BULL_MID"    // 강세 중간
	RegimeRanging    Regime = "RANGING"     // 횡보
	RegimeBearMid    Regime = "BEAR_MID"    // 약세 중간
	RegimeBearBottom Regime = "BEAR_BOTTOM" // 약세 바닥권
	RegimeUnknown    Regime = "UNKNOWN"     // 데이터 부족
)

// MAState 이동평균 배열 상태
type MAState string

const (
	MABullish MAState = "bullish" // 단기 > 중기 > 장기
	MABearish MAState = "bearish" // 단기 < 중기 < 장기
	MANeutral MAState = "neutral"
)

// MarketEnvironment 현재 시장 환경
type MarketEnvironment struct {
	Regime           Regime  `json:"regime"`
	RSI              float64 `json:"rsi"`
	DistanceToHigh   float64 `json:"distance_to_high"` // (rolling_high - current) / rolling_high
	MAState          MAState `json:"ma_state"`
	MAShort          float64 `json:"ma_short"`
	MAMedium         float64 `json:"ma_medium"`
	MALong           float64 `json:"ma_long"`
	RollingHigh      float64 `json:"rolling_high"`
	CurrentPrice     float64 `json:"current_price"`
	InsufficientData bool    `json:"insufficient_data"`
}

// IsBullish 강세 국면 여부
func (e MarketEnvironment) IsBullish() bool {
	return e.Regime == RegimeBullTop || e.Regime == RegimeBullMid
}

// IsBearish 약세 국면 여부
func (e MarketEnvironment) IsBearish() bool {
	return e.Regime == RegimeBearMid || e.Regime == RegimeBearBottom
}
