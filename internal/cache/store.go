package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/pkg/redis"
)

// ResultCache Redis 기반 분석 결과 저장소 (contracts.ResultStore 구현)
// ⭐ SSOT: 키 = (종목, 파라미터 해시, 이력 해시) → 입력이 같으면 결과도 같음
// Redis 장애가 이어지면 서킷이 열리고 즉시 에러를 반환 (호출자는 재계산)
type ResultCache struct {
	cache   *redis.Cache
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

var _ contracts.ResultStore = (*ResultCache)(nil)

// NewResultCache 새 결과 저장소 생성
func NewResultCache(c *redis.Cache, ttl time.Duration, log zerolog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	l := log.With().Str("component", "result_cache").Logger()

	return &ResultCache{
		cache:   c,
		ttl:     ttl,
		breaker: newBreaker(l),
		log:     l,
	}
}

func newBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "result_cache",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
		},
	})
}

// Enabled 백엔드 Redis 활성 여부
func (s *ResultCache) Enabled() bool {
	return s.cache.Enabled()
}

// Get 저장된 결과 조회
func (s *ResultCache) Get(ctx context.Context, code, configHash, seriesHash string) (*contracts.AnalysisResult, bool, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		var result contracts.AnalysisResult
		found, err := s.cache.Get(ctx, redis.AnalysisKey(code, configHash, seriesHash), &result)
		if err != nil || !found {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get cached analysis %s: %w", code, err)
	}

	result, _ := out.(*contracts.AnalysisResult)
	return result, result != nil, nil
}

// Set 결과 저장
func (s *ResultCache) Set(ctx context.Context, result *contracts.AnalysisResult) error {
	if result == nil {
		return nil
	}

	key := redis.AnalysisKey(result.Code, result.ConfigHash, result.SeriesHash)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.cache.Set(ctx, key, result, s.ttl)
	})
	if err != nil {
		return fmt.Errorf("set cached analysis %s: %w", result.Code, err)
	}
	return nil
}

// Invalidate 종목의 모든 저장 결과 삭제 (파라미터/이력 해시 무관)
// 명시적 무효화는 서킷 상태와 관계없이 시도
func (s *ResultCache) Invalidate(ctx context.Context, code string) error {
	n, err := s.cache.DeletePattern(ctx, redis.AnalysisPattern(code))
	if err != nil {
		return fmt.Errorf("invalidate cached analysis %s: %w", code, err)
	}

	s.log.Info().Str("code", code).Int("deleted", n).Msg("cached analyses invalidated")
	return nil
}

// State 현재 서킷 상태 (health 응답용)
func (s *ResultCache) State() string {
	return s.breaker.State().String()
}
