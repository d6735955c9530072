package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check 의존성 상태 확인 함수 (nil 에러 = 정상)
type Check func(ctx context.Context) error

// HealthHandler reports process and dependency health
type HealthHandler struct {
	checks     map[string]Check
	configHash func() string
	started    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(configHash func() string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, configHash: configHash, started: time.Now()}
}

// HealthResponse GET /health 응답
type HealthResponse struct {
	Status     string            `json:"status"` // ok | degraded
	Service    string            `json:"service"`
	ConfigHash string            `json:"config_hash,omitempty"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components,omitempty"`
}

// Health returns server health status
// 선택 의존성(Redis, DB) 장애는 degraded (분석 자체는 가능)
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Service: "histpos",
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	}
	if h.configHash != nil {
		resp.ConfigHash = h.configHash()
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Components = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Components[name] = "error: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	respondJSON(w, http.StatusOK, resp)
}
