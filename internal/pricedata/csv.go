package pricedata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/histpos/internal/contracts"
)

// ErrMalformedCSV CSV 헤더/필드 파싱 실패
var ErrMalformedCSV = errors.New("malformed price csv")

// 허용 날짜 형식 (거래소/증권사 내보내기 형식 차이)
var dateLayouts = []string{"2006-01-02", "20060102", "2006/01/02", "2006.01.02"}

// ReadCSV 헤더가 있는 일봉 CSV를 시계열로 변환
// 필수 열: date, close / 선택 열: open, high, low, volume
// 행 순서와 값은 그대로 유지 (정렬/검증은 엔진 책임)
func ReadCSV(r io.Reader, code string) (*contracts.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformedCSV, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"date", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrMalformedCSV, required)
		}
	}

	series := &contracts.PriceSeries{Code: code}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		line, _ := reader.FieldPos(0)

		bar, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		series.Bars = append(series.Bars, bar)
	}

	return series, nil
}

func parseRecord(record []string, cols map[string]int) (contracts.PriceBar, error) {
	var bar contracts.PriceBar

	date, err := parseDate(field(record, cols, "date"))
	if err != nil {
		return bar, err
	}
	bar.Date = date

	if bar.Close, err = parseNumber(field(record, cols, "close"), "close"); err != nil {
		return bar, err
	}

	// 선택 열이 비어 있으면 종가로 대체
	for _, opt := range []struct {
		name string
		dst  *float64
	}{{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}} {
		raw := field(record, cols, opt.name)
		if raw == "" {
			*opt.dst = bar.Close
			continue
		}
		if *opt.dst, err = parseNumber(raw, opt.name); err != nil {
			return bar, err
		}
	}

	if raw := field(record, cols, "volume"); raw != "" {
		v, err := parseNumber(raw, "volume")
		if err != nil {
			return bar, err
		}
		bar.Volume = int64(v)
	}

	return bar, nil
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func parseNumber(raw, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// LoadCSVFile 파일 하나를 읽어 시계열로 변환
// code가 비어 있으면 파일 이름(확장자 제외)을 종목 코드로 사용
func LoadCSVFile(path, code string) (*contracts.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if code == "" {
		code = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	series, err := ReadCSV(f, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// CSVSource 디렉터리의 {code}.csv 파일을 가격 이력으로 제공
type CSVSource struct {
	Dir string
}

var _ contracts.PriceHistorySource = (*CSVSource)(nil)

// NewCSVSource 새 CSV 소스 생성
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// GetSeries 기간 필터 적용 (from/to가 zero이면 해당 방향 제한 없음)
func (s *CSVSource) GetSeries(ctx context.Context, code string, from, to time.Time) (*contracts.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.Dir, code+".csv")
	series, err := LoadCSVFile(path, code)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, code)
	}
	if err != nil {
		return nil, err
	}

	filtered := &contracts.PriceSeries{Code: code, Bars: make([]contracts.PriceBar, 0, len(series.Bars))}
	for _, b := range series.Bars {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		filtered.Bars = append(filtered.Bars, b)
	}

	if len(filtered.Bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, code)
	}
	return filtered, nil
}
