package contracts

import (
	"context"
	"time"
)

// PriceHistorySource supplies validated-or-not price history (external collaborator)
// ⭐ SSOT: 데이터 수집/장애조치는 엔진 외부 책임
type PriceHistorySource interface {
	GetSeries(ctx context.Context, code string, from, to time.Time) (*PriceSeries, error)
}

// SignalInput is everything an auxiliary indicator may read for one analysis call
// 모든 필드는 읽기 전용
type SignalInput struct {
	Series         *PriceSeries
	CurrentPrice   float64
	Environment    MarketEnvironment
	Statistics     map[int]PeriodStatistics
	Samples        map[int][]ForwardReturnSample
	PrimaryHorizon int
	External       map[string]float64 // 시장별 어댑터가 공급한 원시 값 (slot → value)

	MinReliableSample int // 이 미만 표본은 분포 가정 꼬리 위험을 함께 사용
}

// RiskSignalProvider computes one market-specific risk signal
// ⭐ SSOT: 시장별 차이는 provider 주입으로만 표현
// nil 시그널 반환 = 해당 호출에서 시그널 없음
type RiskSignalProvider interface {
	Name() string
	Signal(ctx context.Context, in SignalInput) (*RiskSignal, error)
}

// ResultStore is an externally owned cache of analysis results
// 키: (instrument, parameter-set hash, series-content hash)
type ResultStore interface {
	Get(ctx context.Context, code, configHash, seriesHash string) (*AnalysisResult, bool, error)
	Set(ctx context.Context, result *AnalysisResult) error
	Invalidate(ctx context.Context, code string) error
}
