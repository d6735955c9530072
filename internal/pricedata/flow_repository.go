package pricedata

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// 외부 값 slot 이름 (analysis.yaml 프로필의 external.slot과 일치)
const (
	SlotFundFlow       = "fund_flow"       // 외국인 + 기관 순매수 점수
	SlotNorthboundFlow = "northbound_flow" // 외국인 순매수 점수
)

// DefaultFlowWindow 수급 점수 계산 기간 (거래일)
const DefaultFlowWindow = 20

// FlowRepository 투자자별 순매수 → 외부 리스크 값 공급
// 점수 = Σnet / Σ|net| ∈ [-1, +1] (+1 = 전 기간 순유입)
type FlowRepository struct {
	db     Querier
	window int
	log    zerolog.Logger
}

// NewFlowRepository 새 수급 저장소 생성
func NewFlowRepository(db Querier, window int, log zerolog.Logger) *FlowRepository {
	if window <= 0 {
		window = DefaultFlowWindow
	}
	return &FlowRepository{
		db:     db,
		window: window,
		log:    log.With().Str("component", "flow_repository").Logger(),
	}
}

// ExternalValues asOf 이전 window 거래일 수급 점수를 slot 값으로 반환
// 데이터가 없으면 빈 map (해당 시그널은 없음으로 처리되어 재분배)
func (r *FlowRepository) ExternalValues(ctx context.Context, code string, asOf time.Time) (map[string]float64, error) {
	query := `
		SELECT foreign_net_value, inst_net_value
		FROM data.investor_flow
		WHERE stock_code = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, code, asOf, r.window)
	if err != nil {
		return nil, fmt.Errorf("query investor flow %s: %w", code, err)
	}
	defer rows.Close()

	var foreign, combined []float64
	for rows.Next() {
		var f, inst int64
		if err := rows.Scan(&f, &inst); err != nil {
			return nil, fmt.Errorf("scan investor flow %s: %w", code, err)
		}
		foreign = append(foreign, float64(f))
		combined = append(combined, float64(f+inst))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investor flow %s: %w", code, err)
	}

	values := make(map[string]float64, 2)
	if score, ok := FlowScore(combined); ok {
		values[SlotFundFlow] = score
	}
	if score, ok := FlowScore(foreign); ok {
		values[SlotNorthboundFlow] = score
	}

	r.log.Debug().
		Str("code", code).
		Int("days", len(combined)).
		Interface("values", values).
		Msg("investor flow scored")

	return values, nil
}

// FlowScore 순매수 금액 목록 → [-1, +1] 점수
// 거래가 전혀 없으면 점수 없음
func FlowScore(nets []float64) (float64, bool) {
	var sum, abs float64
	for _, v := range nets {
		sum += v
		abs += math.Abs(v)
	}
	if abs == 0 {
		return 0, false
	}
	return sum / abs, true
}
