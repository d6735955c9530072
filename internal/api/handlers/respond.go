package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/internal/history"
	"github.com/wonny/histpos/internal/pricedata"
)

// ErrorResponse API 에러 응답
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError 요청 필드 단위 에러
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
	Index   *int   `json:"index,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondAnalysisError 분석 에러 → HTTP 상태 매핑
// 검증 실패(422/400)와 데이터 없음(404)은 재시도해도 같은 결과
func respondAnalysisError(w http.ResponseWriter, err error) {
	var vErr *history.ValidationError

	switch {
	case errors.As(err, &vErr):
		fe := FieldError{Field: vErr.Field, Message: vErr.Message}
		if vErr.Index >= 0 {
			idx := vErr.Index
			fe.Index = &idx
		}
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "INVALID_SERIES",
			Details: []FieldError{fe},
		})
	case errors.Is(err, analysisconfig.ErrUnknownProfile):
		respondError(w, http.StatusBadRequest, "UNKNOWN_PROFILE", err.Error())
	case engine.IsValidationError(err):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_SIGNAL", err.Error())
	case errors.Is(err, pricedata.ErrNoHistory):
		respondError(w, http.StatusNotFound, "NO_HISTORY", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "analysis timed out")
	case errors.Is(err, context.Canceled):
		respondError(w, 499, "CANCELED", "request canceled")
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
