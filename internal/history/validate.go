package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/wonny/histpos/internal/contracts"
)

var (
	// ErrInvalidSeries 입력 검증 실패 (모든 세부 에러의 상위)
	ErrInvalidSeries  = errors.New("invalid price series")
	ErrEmptySeries    = fmt.Errorf("%w: empty", ErrInvalidSeries)
	ErrNonMonotonic   = fmt.Errorf("%w: dates not increasing", ErrInvalidSeries)
	ErrDuplicateDate  = fmt.Errorf("%w: duplicate date", ErrInvalidSeries)
	ErrInvalidPrice   = fmt.Errorf("%w: non-positive close", ErrInvalidSeries)
	ErrInvalidCurrent = fmt.Errorf("%w: non-positive current price", ErrInvalidSeries)
)

// ValidationError 시계열 검증 실패 (호출 중단, 재시도 불가)
type ValidationError struct {
	Code    string
	Index   int
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: bars[%d].%s: %s", e.Code, e.Index, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the price-history contract before any computation
// ⭐ SSOT: 비어있음/날짜 역순/중복/비정상 종가는 즉시 실패
func Validate(series *contracts.PriceSeries) error {
	if series == nil || len(series.Bars) == 0 {
		code := ""
		if series != nil {
			code = series.Code
		}
		return &ValidationError{Code: code, Index: -1, Field: "bars", Message: "must not be empty", Err: ErrEmptySeries}
	}

	for i, bar := range series.Bars {
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) || bar.Close <= 0 {
			return &ValidationError{
				Code:    series.Code,
				Index:   i,
				Field:   "close",
				Message: fmt.Sprintf("must be > 0, got %v", bar.Close),
				Err:     ErrInvalidPrice,
			}
		}

		if i == 0 {
			continue
		}

		prev := series.Bars[i-1].Date
		switch {
		case bar.Date.Equal(prev):
			return &ValidationError{
				Code:    series.Code,
				Index:   i,
				Field:   "date",
				Message: fmt.Sprintf("duplicate of bars[%d] (%s)", i-1, prev.Format("2006-01-02")),
				Err:     ErrDuplicateDate,
			}
		case bar.Date.Before(prev):
			return &ValidationError{
				Code:    series.Code,
				Index:   i,
				Field:   "date",
				Message: fmt.Sprintf("%s is before %s", bar.Date.Format("2006-01-02"), prev.Format("2006-01-02")),
				Err:     ErrNonMonotonic,
			}
		}
	}

	return nil
}

// ValidateCurrentPrice checks an explicitly supplied current price
func ValidateCurrentPrice(code string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return &ValidationError{
			Code:    code,
			Index:   -1,
			Field:   "current_price",
			Message: fmt.Sprintf("must be > 0, got %v", price),
			Err:     ErrInvalidCurrent,
		}
	}
	return nil
}

// ContentHash generates SHA256 hash of the series bars (canonical JSON)
// 캐시 키 구성 요소: 시계열 내용이 바뀌면 모든 결과가 무효
func ContentHash(series *contracts.PriceSeries) (string, error) {
	jsonBytes, err := json.Marshal(series.Bars)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
