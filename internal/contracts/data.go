package contracts

import "time"

// PriceBar represents one trading session of an instrument
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries represents the price history passed from the data layer to the engine
// ⭐ SSOT: 엔진 입력 가격 시계열 (날짜 오름차순, 세션당 1건)
// 엔진은 이 값을 절대 수정하지 않음
type PriceSeries struct {
	Code string     `json:"code"`
	Bars []PriceBar `json:"bars"`
}

// Len returns the number of sessions
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns a copy of the closing prices in date order
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Latest returns the most recent bar
func (s *PriceSeries) Latest() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Window returns the last n bars (or all bars when n exceeds the length)
func (s *PriceSeries) Window(n int) []PriceBar {
	if n >= len(s.Bars) {
		return s.Bars
	}
	return s.Bars[len(s.Bars)-n:]
}
