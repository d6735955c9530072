package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/histpos/internal/engine"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "여러 종목 병렬 분석",
	Long: `여러 종목을 병렬로 분석합니다. 종목별 실패는 결과에 기록되고 나머지는 계속 진행합니다.

Example:
  go run ./cmd/histpos batch --csv-dir data --codes 000300,069500,005930
  go run ./cmd/histpos batch --codes 069500,229200 --profile sector_etf --format text`,
	RunE: runBatch,
}

var (
	batchCodes       string
	batchCSVDir      string
	batchProfile     string
	batchConcurrency int
	batchFormat      string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchCodes, "codes", "", "comma separated instrument codes")
	batchCmd.Flags().StringVar(&batchCSVDir, "csv-dir", "", "directory of CODE.csv files (default: DATABASE_URL)")
	batchCmd.Flags().StringVar(&batchProfile, "profile", "", "market profile for every instrument")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel analyses (default: ANALYSIS_CONCURRENCY)")
	batchCmd.Flags().StringVar(&batchFormat, "format", formatText, "output format (json|text)")
	_ = batchCmd.MarkFlagRequired("codes")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := checkFormat(batchFormat); err != nil {
		return err
	}
	codes := splitCodes(batchCodes)
	if len(codes) == 0 {
		return fmt.Errorf("--codes is empty")
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	concurrency := batchConcurrency
	if concurrency <= 0 {
		concurrency = rt.cfg.Analysis.Concurrency
	}

	// 종목 수에 비례한 제한 시간
	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.Analysis.Timeout*time.Duration(len(codes)))
	defer cancel()

	src, err := rt.openSources(ctx, batchCSVDir)
	if err != nil {
		return err
	}
	defer src.Close()

	analyzer, _, closeFn, err := rt.newAnalyzer()
	if err != nil {
		return err
	}
	defer closeFn()

	// 이력 로드 실패 종목은 분석 없이 결과에 포함
	reqs := make([]engine.Request, 0, len(codes))
	var loadFailures []engine.BatchResult
	for _, code := range codes {
		series, err := loadHistory(ctx, src.history, code, rt.cfg.Analysis.LookbackDays)
		if err != nil {
			rt.log.WithError(err).WithField("code", code).Warn("skipping instrument")
			loadFailures = append(loadFailures, engine.BatchResult{Code: code, Err: err, Error: err.Error()})
			continue
		}

		req := engine.Request{Code: code, Series: series, Profile: batchProfile}
		if src.external != nil {
			last, _ := series.Latest()
			if values, err := src.external.ExternalValues(ctx, code, last.Date); err == nil {
				req.External = values
			}
		}
		reqs = append(reqs, req)
	}

	rt.log.WithFields(map[string]interface{}{
		"instruments": len(reqs),
		"concurrency": concurrency,
	}).Info("batch analysis started")

	results, err := analyzer.AnalyzeBatch(ctx, reqs, concurrency)
	if err != nil {
		return fmt.Errorf("batch analysis: %w", err)
	}
	results = append(results, loadFailures...)

	if batchFormat == formatJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	printBatchSummary(cmd.OutOrStdout(), results)
	return nil
}
