package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/histpos/internal/api"
	"github.com/wonny/histpos/internal/api/handlers"
	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/scheduler"
	"github.com/wonny/histpos/internal/scheduler/jobs"
	"github.com/wonny/histpos/pkg/database"
	"github.com/wonny/histpos/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET    /health                   - Health check (redis/database 상태 포함)
  GET    /metrics                  - Prometheus metrics
  GET    /api/config               - 현재 분석 파라미터 요약
  POST   /api/analyze              - 요청 본문의 가격 이력 분석
  POST   /api/analyze/batch        - 여러 가격 이력 병렬 분석
  GET    /api/analyze/{code}       - 저장된 가격 이력 분석 (DATABASE_URL 또는 --csv-dir)
  DELETE /api/analyze/{code}/cache - 종목 캐시 결과 삭제

Example:
  go run ./cmd/histpos api
  go run ./cmd/histpos api --port 8080 --csv-dir data`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	apiCSVDir string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().StringVar(&apiCSVDir, "csv-dir", "", "CSV price history directory (instead of DATABASE_URL)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config + logger + analysis parameters
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	if apiPort != "" {
		rt.cfg.Port = apiPort
	}
	log := rt.log

	log.WithFields(map[string]interface{}{
		"port": rt.cfg.Port,
		"env":  rt.cfg.Env,
	}).Info("Initializing API server")

	// 2. Analyzer (+ Redis result cache)
	analyzer, rdb, closeRedis, err := rt.newAnalyzer()
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	defer closeRedis()

	checks := map[string]handlers.Check{}
	if rdb.Enabled() {
		checks["redis"] = rdb.Ping
	}

	// 3. Price history source (선택: 없으면 인라인 분석만 제공)
	opts := handlers.Options{
		MaxBodyBytes: rt.cfg.API.MaxBodyBytes,
		Timeout:      rt.cfg.Analysis.Timeout,
		Concurrency:  rt.cfg.Analysis.Concurrency,
	}

	var analysisHandler *handlers.AnalysisHandler
	var history contracts.PriceHistorySource
	src, err := rt.openSources(cmd.Context(), apiCSVDir)
	switch {
	case err == nil:
		defer src.Close()
		history = src.history
		if src.db != nil {
			checks["database"] = src.db.Ping
			analysisHandler = handlers.NewAnalysisHandler(analyzer, src.history, src.external, opts, log.Zerolog())
		} else {
			analysisHandler = handlers.NewAnalysisHandler(analyzer, src.history, nil, opts, log.Zerolog())
		}
	case errors.Is(err, database.ErrNotConfigured):
		log.Warn("no price history source configured: GET /api/analyze/{code} disabled")
		analysisHandler = handlers.NewAnalysisHandler(analyzer, nil, nil, opts, log.Zerolog())
	default:
		return err
	}

	// 4. Router + server
	trusted, err := rt.cfg.API.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	router := api.NewRouter(api.Deps{
		Analysis:       analysisHandler,
		Health:         handlers.NewHealthHandler(analyzer.ConfigHash, checks),
		Metrics:        rt.metrics,
		Limiter:        redis.NewRateLimiter(rdb, rt.cfg.Redis.Prefix),
		RateLimit:      rt.cfg.API.RateLimit,
		AllowedOrigins: rt.cfg.API.AllowedOrigins,
		TrustedProxies: trusted,
		Log:            log.Component("http"),
	})
	server := api.New(rt.cfg, router, log.Zerolog())

	// 5. Cache warm-up (watchlist + Redis + price source 모두 있을 때만)
	if len(rt.cfg.Analysis.WarmCodes) > 0 {
		if history == nil || !rdb.Enabled() {
			log.Warn("ANALYSIS_WARM_CODES ignored: needs a price source and Redis")
		} else {
			sched := scheduler.New(log)
			warm := jobs.NewWarmupJob(analyzer, history, jobs.WarmupConfig{
				Codes:        rt.cfg.Analysis.WarmCodes,
				Schedule:     rt.cfg.Analysis.WarmSchedule,
				LookbackDays: rt.cfg.Analysis.LookbackDays,
				Concurrency:  rt.cfg.Analysis.Concurrency,
			}, log)
			if err := sched.AddJob(warm); err != nil {
				return fmt.Errorf("schedule warm-up: %w", err)
			}
			sched.Start()
			defer sched.Stop()
		}
	}

	// 6. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Fprintf(cmd.ErrOrStderr(), "\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Fprintln(cmd.ErrOrStderr(), "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
