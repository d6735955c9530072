package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
)

var validate = validator.New()

// BarDTO 요청 본문 일봉
type BarDTO struct {
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume" validate:"gte=0"`
}

// SignalDTO 호출자가 직접 공급하는 리스크 시그널
type SignalDTO struct {
	Name          string  `json:"name" validate:"required,max=64"`
	Magnitude     float64 `json:"magnitude" validate:"gte=0,lte=1"`
	WeightDefault float64 `json:"weight_default" validate:"gte=0,lte=1"`
	Description   string  `json:"description"`
}

// AnalyzeRequest POST /api/analyze 본문
// 종가 양수/날짜 순서 검증은 엔진이 담당 (동일한 에러 코드 유지)
type AnalyzeRequest struct {
	Code         string             `json:"code" validate:"required,max=32"`
	Profile      string             `json:"profile" validate:"omitempty,max=32"`
	CurrentPrice float64            `json:"current_price" validate:"gte=0"`
	Bars         []BarDTO           `json:"bars" validate:"required,min=1,max=50000,dive"`
	Signals      []SignalDTO        `json:"signals" validate:"omitempty,max=32,dive"`
	External     map[string]float64 `json:"external" validate:"omitempty,max=32"`
}

// ToEngine DTO → 엔진 요청
func (r *AnalyzeRequest) ToEngine() (engine.Request, error) {
	series := &contracts.PriceSeries{Code: r.Code, Bars: make([]contracts.PriceBar, len(r.Bars))}
	for i, b := range r.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return engine.Request{}, fmt.Errorf("bars[%d].date: %w", i, err)
		}
		series.Bars[i] = contracts.PriceBar{
			Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		}
	}

	signals := make([]contracts.RiskSignal, len(r.Signals))
	for i, s := range r.Signals {
		signals[i] = contracts.RiskSignal{
			Name:          s.Name,
			Magnitude:     s.Magnitude,
			WeightDefault: s.WeightDefault,
			Description:   s.Description,
		}
	}

	return engine.Request{
		Code:         r.Code,
		Series:       series,
		CurrentPrice: r.CurrentPrice,
		Profile:      r.Profile,
		Signals:      signals,
		External:     r.External,
	}, nil
}

// HistoryQuery GET /api/analyze/{code} 쿼리 파라미터
type HistoryQuery struct {
	Days         int     `default:"3650" validate:"min=30,max=36500"`
	Profile      string  `validate:"omitempty,max=32"`
	CurrentPrice float64 `validate:"gte=0"`
}

// BatchRequest POST /api/analyze/batch 본문
type BatchRequest struct {
	Requests []AnalyzeRequest `json:"requests" validate:"required,min=1,max=100,dive"`
}

// decodeAndValidate JSON 본문 → defaults 적용 → 구조체 검증
func decodeAndValidate(r *http.Request, maxBytes int64, dst interface{}) []FieldError {
	body := io.Reader(r.Body)
	if maxBytes > 0 {
		body = io.LimitReader(r.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return []FieldError{{Field: "body", Rule: "max_bytes", Message: fmt.Sprintf("body exceeds %d bytes", maxBytes)}}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return []FieldError{{Field: "body", Rule: "json", Message: err.Error()}}
	}

	return setDefaultsAndValidate(dst)
}

// setDefaultsAndValidate defaults.Set + validator.Struct
func setDefaultsAndValidate(dst interface{}) []FieldError {
	if err := defaults.Set(dst); err != nil {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	if err := validate.Struct(dst); err != nil {
		return fieldErrors(err)
	}
	return nil
}

// parseHistoryQuery 쿼리 문자열 → HistoryQuery
func parseHistoryQuery(r *http.Request) (HistoryQuery, []FieldError) {
	var q HistoryQuery
	values := r.URL.Query()

	if raw := values.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return q, []FieldError{{Field: "days", Rule: "int", Message: "days must be an integer"}}
		}
		q.Days = days
	}
	if raw := values.Get("current_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, []FieldError{{Field: "current_price", Rule: "float", Message: "current_price must be a number"}}
		}
		q.CurrentPrice = price
	}
	q.Profile = values.Get("profile")

	return q, setDefaultsAndValidate(&q)
}

func fieldErrors(err error) []FieldError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Rule:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
