package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/cache"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/internal/pricedata"
	"github.com/wonny/histpos/pkg/config"
	"github.com/wonny/histpos/pkg/database"
	"github.com/wonny/histpos/pkg/logger"
	"github.com/wonny/histpos/pkg/metrics"
	"github.com/wonny/histpos/pkg/redis"
)

// runtime 커맨드 공용 구성 요소
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Recorder
	params  *analysisconfig.Config
}

// loadRuntime 환경 설정 → 로거 → 분석 파라미터 순서로 로드
func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if analysisConfig != "" {
		cfg.Analysis.ConfigPath = analysisConfig
	}
	switch {
	case verbose:
		cfg.LogLevel = "debug"
	case logLevel != "":
		cfg.LogLevel = logLevel
	}

	log := logger.New(cfg)

	params, err := loadParams(cfg.Analysis.ConfigPath, analysisConfig != "", log)
	if err != nil {
		return nil, err
	}

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	return &runtime{cfg: cfg, log: log, metrics: rec, params: params}, nil
}

// loadParams 파라미터 YAML 로드
// 명시하지 않은 기본 경로에 파일이 없으면 내장 기본값 사용
func loadParams(path string, explicit bool, log *logger.Logger) (*analysisconfig.Config, error) {
	params, _, err := analysisconfig.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			log.WithField("path", path).Warn("analysis config not found, using built-in defaults")
			return analysisconfig.Default(), nil
		}
		return nil, fmt.Errorf("load analysis config %s: %w", path, err)
	}

	for _, w := range analysisconfig.Warn(params) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	return params, nil
}

// newAnalyzer 엔진 + (Redis 활성 시) 결과 캐시
// 반환된 close 함수는 항상 호출해야 함
func (rt *runtime) newAnalyzer() (*cache.Analyzer, *redis.Client, func(), error) {
	inner, err := engine.New(rt.params, rt.metrics, rt.log.Zerolog())
	if err != nil {
		return nil, nil, nil, err
	}

	rdb, err := redis.New(rt.cfg)
	if err != nil {
		// 캐시는 선택 사항: 연결 실패 시 매번 계산
		rt.log.WithError(err).Warn("redis unavailable, result cache disabled")
		rdb, _ = redis.New(&config.Config{})
	}

	var store contracts.ResultStore
	if rdb.Enabled() {
		store = cache.NewResultCache(redis.NewCache(rdb, rt.cfg.Redis.Prefix), rt.cfg.Redis.CacheTTL, rt.log.Zerolog())
	}

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			rt.log.WithError(err).Warn("redis close failed")
		}
	}
	return cache.NewAnalyzer(inner, store, rt.metrics, rt.log.Zerolog()), rdb, closeFn, nil
}

// priceSources 가격 이력/외부 값 공급자
type priceSources struct {
	history  contracts.PriceHistorySource
	external *pricedata.FlowRepository // DB가 없으면 nil
	db       *database.DB
}

func (s *priceSources) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// openSources CSV 디렉터리가 있으면 파일, 없으면 DATABASE_URL의 Postgres
func (rt *runtime) openSources(ctx context.Context, csvDir string) (*priceSources, error) {
	if csvDir != "" {
		return &priceSources{history: pricedata.NewCSVSource(csvDir)}, nil
	}

	db, err := database.New(ctx, rt.cfg)
	if err != nil {
		if errors.Is(err, database.ErrNotConfigured) {
			return nil, fmt.Errorf("no price source (pass --csv/--csv-dir or set DATABASE_URL): %w", err)
		}
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &priceSources{
		history:  pricedata.NewPriceRepository(db.Pool, rt.log.Zerolog()),
		external: pricedata.NewFlowRepository(db.Pool, pricedata.DefaultFlowWindow, rt.log.Zerolog()),
		db:       db,
	}, nil
}

// parsePairs "name=value" 목록 → map
func parsePairs(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pair %q: want name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", p, err)
		}
		out[name] = v
	}
	return out, nil
}

// toSignals CLI 시그널 (가중치는 프로필 테이블에서 결정)
func toSignals(values map[string]float64) []contracts.RiskSignal {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	signals := make([]contracts.RiskSignal, 0, len(names))
	for _, name := range names {
		signals = append(signals, contracts.RiskSignal{
			Name:        name,
			Magnitude:   values[name],
			Description: "supplied via --signal",
		})
	}
	return signals
}

// splitCodes "A, B,,C" → [A B C]
func splitCodes(raw string) []string {
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
