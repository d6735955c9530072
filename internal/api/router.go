package api

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/api/handlers"
	"github.com/wonny/histpos/pkg/metrics"
	"github.com/wonny/histpos/pkg/redis"
)

// Deps 라우터 구성 요소
type Deps struct {
	Analysis       *handlers.AnalysisHandler
	Health         *handlers.HealthHandler
	Metrics        *metrics.Recorder
	Limiter        *redis.RateLimiter // nil = 제한 없음
	RateLimit      int                // 클라이언트당 분당 요청 수
	AllowedOrigins string             // 콤마 구분, "*" 허용
	TrustedProxies []netip.Prefix     // X-Forwarded-For를 신뢰할 프록시
	Log            zerolog.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", d.Health.Health).Methods(http.MethodGet)
	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", d.Analysis.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/analyze", d.Analysis.Analyze).Methods(http.MethodPost)
	api.HandleFunc("/analyze/batch", d.Analysis.AnalyzeBatch).Methods(http.MethodPost)
	api.HandleFunc("/analyze/{code}", d.Analysis.AnalyzeStored).Methods(http.MethodGet)
	api.HandleFunc("/analyze/{code}/cache", d.Analysis.InvalidateCache).Methods(http.MethodDelete)

	if d.Limiter != nil && d.RateLimit > 0 {
		api.Use(rateLimitMiddleware(d.Limiter, redis.APIRateLimit(d.RateLimit), clientResolver{trusted: d.TrustedProxies}, d.Log))
	}

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(d.Log))
	r.Use(loggingMiddleware(d.Log))
	r.Use(metricsMiddleware(d.Metrics))

	// preflight는 라우트 매칭 전에 처리해야 하므로 라우터 바깥을 감쌈
	return cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(d.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	})(r)
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
