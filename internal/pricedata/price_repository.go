package pricedata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/contracts"
)

// ErrNoHistory 요청 기간에 가격 이력이 없음
var ErrNoHistory = errors.New("no price history")

// Querier pgxpool.Pool이 만족하는 최소 인터페이스 (테스트 대체용)
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PriceRepository Postgres 일봉 저장소 (contracts.PriceHistorySource 구현)
// ⭐ SSOT: 가격 이력 읽기/쓰기는 여기서만
type PriceRepository struct {
	db  Querier
	log zerolog.Logger
}

var _ contracts.PriceHistorySource = (*PriceRepository)(nil)

// NewPriceRepository 새 가격 저장소 생성
func NewPriceRepository(db Querier, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("component", "price_repository").Logger(),
	}
}

// GetSeries 기간 내 일봉을 날짜 오름차순으로 조회
// 검증은 엔진 책임이므로 저장된 값을 그대로 전달
func (r *PriceRepository) GetSeries(ctx context.Context, code string, from, to time.Time) (*contracts.PriceSeries, error) {
	query := `
		SELECT trade_date,
		       COALESCE(open_price, close_price),
		       COALESCE(high_price, close_price),
		       COALESCE(low_price, close_price),
		       close_price,
		       COALESCE(volume, 0)
		FROM data.daily_prices
		WHERE stock_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", code, err)
	}
	defer rows.Close()

	series := &contracts.PriceSeries{Code: code}
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", code, err)
		}
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices %s: %w", code, err)
	}

	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrNoHistory, code,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	r.log.Debug().
		Str("code", code).
		Int("bars", len(series.Bars)).
		Msg("price history loaded")

	return series, nil
}

// SaveSeries 일봉 upsert (CSV 적재용)
func (r *PriceRepository) SaveSeries(ctx context.Context, series *contracts.PriceSeries) (int, error) {
	query := `
		INSERT INTO data.daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`

	saved := 0
	for _, b := range series.Bars {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if _, err := r.db.Exec(ctx, query, series.Code, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return saved, fmt.Errorf("save price %s %s: %w", series.Code, b.Date.Format("2006-01-02"), err)
		}
		saved++
	}

	r.log.Info().Str("code", series.Code).Int("bars", saved).Msg("price history saved")
	return saved, nil
}
