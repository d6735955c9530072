package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/internal/advisor"
	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/forecast"
	"github.com/wonny/histpos/internal/history"
	"github.com/wonny/histpos/internal/regime"
	"github.com/wonny/histpos/internal/risk"
	"github.com/wonny/histpos/pkg/metrics"
)

// Request 한 종목 분석 요청
type Request struct {
	Code         string                 `json:"code"`
	Series       *contracts.PriceSeries `json:"series"`
	CurrentPrice float64                `json:"current_price"` // 0 = 마지막 종가
	Profile      string                 `json:"profile"`       // 빈 값 = 기본 프로필
	Signals      []contracts.RiskSignal `json:"signals"`       // 호출자가 직접 공급한 시그널
	External     map[string]float64     `json:"external"`      // 프로필 slot 원시 값
}

// Analyzer 분석 파이프라인 (검증 → 유사 구간 → 전방 수익률 → 통계 → 국면 → 리스크 → 판단)
// ⭐ SSOT: 호출 간 공유되는 가변 상태 없음 (병렬 호출 안전)
type Analyzer struct {
	cfg        *analysisconfig.Config
	configHash string

	finder     *forecast.Finder
	tracker    *forecast.Tracker
	aggregator *forecast.Aggregator
	classifier *regime.Classifier
	advisor    *advisor.Advisor
	scorers    map[string]*risk.Scorer
	providers  map[string][]contracts.RiskSignalProvider

	metrics *metrics.Recorder
	log     zerolog.Logger
}

// New 설정으로 분석기 생성
func New(cfg *analysisconfig.Config, rec *metrics.Recorder, log zerolog.Logger) (*Analyzer, error) {
	if err := analysisconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	hash, err := analysisconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash analysis config: %w", err)
	}

	a := &Analyzer{
		cfg:        cfg,
		configHash: hash,
		finder:     forecast.NewFinderWithConfig(cfg.Similarity, cfg.Horizons.Days, log),
		tracker:    forecast.NewTracker(log),
		aggregator: forecast.NewAggregatorWithConfig(cfg.Statistics, log),
		classifier: regime.NewClassifierWithConfig(cfg.Regime, log),
		advisor:    advisor.NewWithConfig(cfg.Advisor, log),
		scorers:    make(map[string]*risk.Scorer, len(cfg.Risk.Profiles)),
		providers:  make(map[string][]contracts.RiskSignalProvider, len(cfg.Risk.Profiles)),
		metrics:    rec,
		log:        log.With().Str("component", "engine").Logger(),
	}

	for name := range cfg.Risk.Profiles {
		p, err := cfg.Profile(name)
		if err != nil {
			return nil, err
		}
		a.scorers[name] = risk.NewScorerWithConfig(cfg.ScorerConfig(p), log)
		a.providers[name] = p.Providers()
	}

	a.log.Info().
		Str("config_id", cfg.Meta.ConfigID).
		Str("config_hash", hash[:16]).
		Ints("horizons", cfg.Horizons.Days).
		Strs("profiles", risk.ProfileNames(cfg.Risk.Profiles)).
		Msg("analyzer ready")

	return a, nil
}

// ConfigHash 파라미터 세트 해시 (캐시 키 구성 요소)
func (a *Analyzer) ConfigHash() string {
	return a.configHash
}

// Config 분석 설정
func (a *Analyzer) Config() *analysisconfig.Config {
	return a.cfg
}

// interrupted 단계 종료 후 취소 확인
// 각 단계는 취소 시 부분 결과를 돌려주므로 그 결과로 판단을 만들면 안 됨
func (a *Analyzer) interrupted(ctx context.Context, code, stage string) error {
	if err := ctx.Err(); err != nil {
		a.metrics.RecordError("canceled")
		return fmt.Errorf("analyze %s interrupted after %s stage: %w", code, stage, err)
	}
	return nil
}

// Analyze 한 종목 분석
// 검증 실패는 즉시 반환 (history.ErrInvalidSeries), 데이터 부족은 결과의 플래그로 전달
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*contracts.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	if err := history.Validate(req.Series); err != nil {
		a.metrics.RecordError("validation")
		return nil, err
	}

	code := req.Code
	if code == "" {
		code = req.Series.Code
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = a.cfg.Risk.DefaultProfile
	}
	scorer, ok := a.scorers[profileName]
	if !ok {
		a.metrics.RecordError("profile")
		return nil, fmt.Errorf("%w: %q", analysisconfig.ErrUnknownProfile, profileName)
	}

	last, _ := req.Series.Latest()
	currentPrice := req.CurrentPrice
	if currentPrice == 0 {
		currentPrice = last.Close
	}
	if err := history.ValidateCurrentPrice(code, currentPrice); err != nil {
		a.metrics.RecordError("validation")
		return nil, err
	}

	seriesHash, err := history.ContentHash(req.Series)
	if err != nil {
		return nil, fmt.Errorf("hash series %s: %w", code, err)
	}

	horizons := a.cfg.Horizons.Days
	primary := a.cfg.Horizons.Primary

	// 1. 유사 구간 + 전방 수익률 + 통계
	stageStart := time.Now()
	periods := a.finder.Find(ctx, req.Series, currentPrice)
	samples := a.tracker.Calculate(ctx, periods, req.Series, horizons)
	stats := a.aggregator.Aggregate(ctx, samples)
	for h, s := range stats {
		s.P10Drawdown = p10(a.tracker.Drawdowns(periods, req.Series, h))
		stats[h] = s
	}
	if err := a.interrupted(ctx, code, "forecast"); err != nil {
		return nil, err
	}
	a.metrics.RecordStage("forecast", time.Since(stageStart).Seconds())
	a.metrics.RecordSimilarPeriods(len(periods))

	// 2. 국면
	stageStart = time.Now()
	env := a.classifier.Classify(ctx, req.Series, currentPrice)
	if err := a.interrupted(ctx, code, "regime"); err != nil {
		return nil, err
	}
	a.metrics.RecordStage("regime", time.Since(stageStart).Seconds())

	// 3. 리스크
	stageStart = time.Now()
	input := contracts.SignalInput{
		Series:         req.Series,
		CurrentPrice:   currentPrice,
		Environment:    env,
		Statistics:     stats,
		Samples:        samples,
		PrimaryHorizon: primary,
		External:       req.External,

		MinReliableSample: a.cfg.Statistics.MinReliableSample,
	}
	signals, err := risk.Collect(ctx, a.providers[profileName], input, req.Signals)
	if err != nil {
		a.metrics.RecordError("signal")
		return nil, fmt.Errorf("collect risk signals for %s: %w", code, err)
	}
	assessment, err := scorer.Score(signals)
	if err != nil {
		a.metrics.RecordError("signal")
		return nil, fmt.Errorf("score risk for %s: %w", code, err)
	}
	if err := a.interrupted(ctx, code, "risk"); err != nil {
		return nil, err
	}
	a.metrics.RecordStage("risk", time.Since(stageStart).Seconds())

	// 4. 판단
	primaryStats, ok := stats[primary]
	if !ok {
		primaryStats = contracts.PeriodStatistics{Horizon: primary, InsufficientData: true}
	}
	advice := a.advisor.Advise(primaryStats, assessment, env)

	result := &contracts.AnalysisResult{
		Code:           code,
		AsOf:           last.Date,
		CurrentPrice:   currentPrice,
		SimilarCount:   len(periods),
		PrimaryHorizon: primary,
		Environment:    env,
		Statistics:     stats,
		Risk:           assessment,
		Advice:         advice,
		ConfigHash:     a.configHash,
		SeriesHash:     seriesHash,
	}

	a.record(profileName, result)

	a.log.Debug().
		Str("code", code).
		Str("profile", profileName).
		Int("similar_periods", len(periods)).
		Str("regime", string(env.Regime)).
		Bool("risk_determined", assessment.Determined).
		Float64("risk_score", assessment.Score).
		Str("direction", string(advice.Direction)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis completed")

	return result, nil
}

func (a *Analyzer) record(profile string, r *contracts.AnalysisResult) {
	a.metrics.RecordAnalysis(profile, string(r.Advice.Direction))
	a.metrics.RecordRegime(string(r.Environment.Regime))
	if p, ok := r.Primary(); !ok || p.InsufficientData {
		a.metrics.RecordInsufficient("history")
	}
	if r.Environment.InsufficientData {
		a.metrics.RecordInsufficient("regime")
	}
	if !r.Risk.Determined {
		a.metrics.RecordInsufficient("risk")
	}
}

// IsValidationError 입력 검증 실패 여부 (재시도 불가)
func IsValidationError(err error) bool {
	return errors.Is(err, history.ErrInvalidSeries) || errors.Is(err, analysisconfig.ErrUnknownProfile) ||
		errors.Is(err, risk.ErrInvalidSignal) || errors.Is(err, risk.ErrDuplicateSignal)
}

func p10(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return forecast.Percentile(sorted, 10)
}
