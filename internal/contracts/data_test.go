package contracts

import (
	"testing"
	"time"
)

func testSeries(closes ...float64) *PriceSeries {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &PriceSeries{Code: "000300"}
	for i, c := range closes {
		s.Bars = append(s.Bars, PriceBar{Date: base.AddDate(0, 0, i), Close: c})
	}
	return s
}

func TestPriceSeries_Closes(t *testing.T) {
	s := testSeries(10, 11, 12)

	closes := s.Closes()
	if len(closes) != 3 {
		t.Fatalf("Closes() len = %d, want 3", len(closes))
	}

	// 반환값 수정이 원본에 영향을 주면 안 됨
	closes[0] = 999
	if s.Bars[0].Close != 10 {
		t.Errorf("Closes() must return a copy, got bar close %v", s.Bars[0].Close)
	}
}

func TestPriceSeries_Latest(t *testing.T) {
	empty := &PriceSeries{}
	if _, ok := empty.Latest(); ok {
		t.Error("Expected no latest bar for empty series")
	}

	s := testSeries(1, 2, 3)
	bar, ok := s.Latest()
	if !ok || bar.Close != 3 {
		t.Errorf("Latest() = %v, %v, want close 3", bar.Close, ok)
	}
}

func TestPriceSeries_Window(t *testing.T) {
	s := testSeries(1, 2, 3, 4, 5)

	tests := []struct {
		n         int
		wantLen   int
		wantFirst float64
	}{
		{2, 2, 4},
		{5, 5, 1},
		{10, 5, 1},
	}

	for _, tt := range tests {
		w := s.Window(tt.n)
		if len(w) != tt.wantLen {
			t.Errorf("Window(%d) len = %d, want %d", tt.n, len(w), tt.wantLen)
			continue
		}
		if w[0].Close != tt.wantFirst {
			t.Errorf("Window(%d)[0] = %v, want %v", tt.n, w[0].Close, tt.wantFirst)
		}
	}
}

func TestMaxHorizon(t *testing.T) {
	if got := MaxHorizon(DefaultHorizons()); got != 60 {
		t.Errorf("MaxHorizon(default) = %d, want 60", got)
	}
	if got := MaxHorizon(nil); got != 0 {
		t.Errorf("MaxHorizon(nil) = %d, want 0", got)
	}
}

func TestPeriodStatistics_DownProbability(t *testing.T) {
	p := PeriodStatistics{SampleSize: 40, UpCount: 24}
	if got := p.DownProbability(); got != 16.0/40.0 {
		t.Errorf("DownProbability() = %v, want 0.4", got)
	}

	if got := (PeriodStatistics{}).DownProbability(); got != 0 {
		t.Errorf("DownProbability() on empty = %v, want 0", got)
	}
}

func TestPositionRange_String(t *testing.T) {
	p := PositionRange{Min: 0.7, Max: 0.8}
	if got := p.String(); got != "70%-80%" {
		t.Errorf("String() = %q, want 70%%-80%%", got)
	}
}
