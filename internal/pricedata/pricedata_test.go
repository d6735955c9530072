package pricedata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/histpos/internal/contracts"
)

// fakeRows 메모리 행 집합 (pgx.Rows 구현)
type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.data)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.i-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(row) != len(dest) {
		return errors.New("column count mismatch")
	}
	for j, d := range dest {
		switch p := d.(type) {
		case *time.Time:
			*p = row[j].(time.Time)
		case *float64:
			*p = row[j].(float64)
		case *int64:
			*p = row[j].(int64)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

// fakeQuerier 마지막 호출 인자를 기록
type fakeQuerier struct {
	rows     [][]any
	queryErr error
	execs    [][]any
	execErr  error
	lastArgs []any
}

func (q *fakeQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.lastArgs = args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return &fakeRows{data: q.rows}, nil
}

func (q *fakeQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	q.execs = append(q.execs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceRepository_GetSeries(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{day(2), 100.0, 102.0, 99.0, 101.0, int64(1000)},
		{day(3), 101.0, 103.0, 100.0, 102.5, int64(1500)},
	}}
	repo := NewPriceRepository(q, zerolog.Nop())

	series, err := repo.GetSeries(context.Background(), "005930", day(1), day(31))
	require.NoError(t, err)

	assert.Equal(t, "005930", series.Code)
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 102.5, series.Bars[1].Close)
	assert.Equal(t, int64(1500), series.Bars[1].Volume)
	assert.Equal(t, []any{"005930", day(1), day(31)}, q.lastArgs)
}

func TestPriceRepository_NoHistory(t *testing.T) {
	repo := NewPriceRepository(&fakeQuerier{}, zerolog.Nop())

	_, err := repo.GetSeries(context.Background(), "999999", day(1), day(31))
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestPriceRepository_QueryError(t *testing.T) {
	repo := NewPriceRepository(&fakeQuerier{queryErr: errors.New("conn closed")}, zerolog.Nop())

	_, err := repo.GetSeries(context.Background(), "005930", day(1), day(31))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoHistory)
}

func TestPriceRepository_SaveSeries(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewPriceRepository(q, zerolog.Nop())

	series := &contracts.PriceSeries{Code: "005930", Bars: []contracts.PriceBar{
		{Date: day(2), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{Date: day(3), Open: 2, High: 3, Low: 2, Close: 3, Volume: 20},
	}}

	n, err := repo.SaveSeries(context.Background(), series)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, q.execs, 2)
	assert.Equal(t, "005930", q.execs[0][0])
	assert.Equal(t, 3.0, q.execs[1][5])
}

func TestFlowScore(t *testing.T) {
	tests := []struct {
		name  string
		nets  []float64
		want  float64
		found bool
	}{
		{"all inflow", []float64{10, 20, 5}, 1, true},
		{"all outflow", []float64{-10, -20}, -1, true},
		{"balanced", []float64{10, -10}, 0, true},
		{"mixed", []float64{30, -10}, 0.5, true},
		{"no trades", []float64{0, 0}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlowScore(tt.nets)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFlowRepository_ExternalValues(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{int64(100), int64(-50)},
		{int64(-20), int64(-30)},
	}}
	repo := NewFlowRepository(q, 0, zerolog.Nop())

	values, err := repo.ExternalValues(context.Background(), "005930", day(31))
	require.NoError(t, err)

	// combined: 50, -50 → 0 / foreign: 100, -20 → 80/120
	assert.InDelta(t, 0.0, values[SlotFundFlow], 1e-12)
	assert.InDelta(t, 80.0/120.0, values[SlotNorthboundFlow], 1e-12)
	assert.Equal(t, DefaultFlowWindow, q.lastArgs[2])
}

func TestFlowRepository_NoData(t *testing.T) {
	repo := NewFlowRepository(&fakeQuerier{}, 5, zerolog.Nop())

	values, err := repo.ExternalValues(context.Background(), "005930", day(31))
	require.NoError(t, err)
	assert.Empty(t, values)
}

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,100,102,99,101,"1,000"
# 휴장일 제외
2024-01-03,,,,102.5,
20240104,102,104,101,103,2000
`

func TestReadCSV(t *testing.T) {
	series, err := ReadCSV(strings.NewReader(sampleCSV), "005930")
	require.NoError(t, err)

	require.Len(t, series.Bars, 3)
	assert.Equal(t, "005930", series.Code)
	assert.Equal(t, int64(1000), series.Bars[0].Volume)

	// 빈 선택 열은 종가로 대체
	assert.Equal(t, 102.5, series.Bars[1].Open)
	assert.Equal(t, 102.5, series.Bars[1].Low)
	assert.Equal(t, int64(0), series.Bars[1].Volume)

	assert.True(t, series.Bars[2].Date.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
}

func TestReadCSV_CloseOnly(t *testing.T) {
	series, err := ReadCSV(strings.NewReader("close,date\n10,2024-02-01\n11,2024-02-02\n"), "X")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, series.Closes())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"missing close", "date,open\n2024-01-02,1\n"},
		{"bad date", "date,close\n02/01/2024,1\n"},
		{"bad number", "date,close\n2024-01-02,abc\n"},
		{"ragged row", "date,close\n2024-01-02,1,7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), "X")
			assert.ErrorIs(t, err, ErrMalformedCSV)
		})
	}
}

func TestReadCSV_KeepsInvalidValuesForEngine(t *testing.T) {
	// 음수 가격/역순 날짜는 파싱은 성공, 검증은 history.Validate 몫
	series, err := ReadCSV(strings.NewReader("date,close\n2024-01-03,-1\n2024-01-02,5\n"), "X")
	require.NoError(t, err)
	assert.Equal(t, -1.0, series.Bars[0].Close)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "005930.csv"), []byte(sampleCSV), 0o644))

	src := NewCSVSource(dir)
	ctx := context.Background()

	all, err := src.GetSeries(ctx, "005930", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all.Bars, 3)

	ranged, err := src.GetSeries(ctx, "005930", day(3), day(3))
	require.NoError(t, err)
	require.Len(t, ranged.Bars, 1)
	assert.Equal(t, 102.5, ranged.Bars[0].Close)

	_, err = src.GetSeries(ctx, "000660", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = src.GetSeries(ctx, "005930", day(20), day(25))
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestLoadCSVFile_CodeFromName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "512880.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,close\n2024-01-02,1.2\n"), 0o644))

	series, err := LoadCSVFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "512880", series.Code)
}
