package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled returns whether the backing Redis is enabled
func (c *Cache) Enabled() bool {
	return c.client.Enabled()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value
// 키 없음은 (false, nil), Redis 장애는 에러로 구분
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every cached value whose key matches pattern
// KEYS 대신 SCAN 사용 (운영 Redis 블로킹 방지)
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	rdb := c.client.Redis()
	match := c.fullKey(pattern)

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache delete %s: %w", pattern, err)
			}
			deleted += int(n)
		}

		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

const scanCount = 100

// TTLDaily 일봉 기준 분석 결과 기본 보존 기간
const TTLDaily = 24 * time.Hour

// hashPrefixLen 키에 사용하는 해시 접두 길이
const hashPrefixLen = 16

// AnalysisKey builds the result key for (instrument, parameter set, series content)
// 설정이나 이력이 바뀌면 키가 달라지므로 오래된 결과가 조회되지 않음
func AnalysisKey(code, configHash, seriesHash string) string {
	return fmt.Sprintf("analysis:%s:%s:%s", code, shortHash(configHash), shortHash(seriesHash))
}

// AnalysisPattern matches every cached result of one instrument
func AnalysisPattern(code string) string {
	return fmt.Sprintf("analysis:%s:*", code)
}

func shortHash(h string) string {
	if len(h) > hashPrefixLen {
		return h[:hashPrefixLen]
	}
	return h
}
