package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
	"github.com/wonny/histpos/internal/pricedata"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "한 종목 분석",
	Long: `가격 이력 하나를 분석해 유사 구간 통계, 시장 국면, 리스크 점수, 권장 비중을 출력합니다.

가격 이력 입력:
  --csv FILE           CSV 파일 (date,open,high,low,close,volume)
  --code CODE          --csv-dir의 CODE.csv 또는 DATABASE_URL의 data.daily_prices

Example:
  go run ./cmd/histpos analyze --csv data/000300.csv
  go run ./cmd/histpos analyze --code 069500 --profile sector_etf --format text
  go run ./cmd/histpos analyze --csv spx.csv --signal capital_flow=0.7 --external valuation_percentile=90`,
	RunE: runAnalyze,
}

var (
	analyzeCSV          string
	analyzeCSVDir       string
	analyzeCode         string
	analyzeProfile      string
	analyzeCurrentPrice float64
	analyzeSignals      []string
	analyzeExternal     []string
	analyzeFormat       string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "price history CSV file")
	analyzeCmd.Flags().StringVar(&analyzeCSVDir, "csv-dir", "", "directory of CODE.csv files (with --code)")
	analyzeCmd.Flags().StringVar(&analyzeCode, "code", "", "instrument code")
	analyzeCmd.Flags().StringVar(&analyzeProfile, "profile", "", "market profile (default from analysis config)")
	analyzeCmd.Flags().Float64Var(&analyzeCurrentPrice, "current-price", 0, "current price (default: last close)")
	analyzeCmd.Flags().StringArrayVar(&analyzeSignals, "signal", nil, "risk signal name=magnitude (repeatable)")
	analyzeCmd.Flags().StringArrayVar(&analyzeExternal, "external", nil, "external slot=value (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", formatJSON, "output format (json|text)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := checkFormat(analyzeFormat); err != nil {
		return err
	}
	if analyzeCSV == "" && analyzeCode == "" {
		return fmt.Errorf("either --csv or --code is required")
	}

	signals, err := parsePairs(analyzeSignals)
	if err != nil {
		return fmt.Errorf("--signal: %w", err)
	}
	external, err := parsePairs(analyzeExternal)
	if err != nil {
		return fmt.Errorf("--external: %w", err)
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.Analysis.Timeout)
	defer cancel()

	req := engine.Request{
		Code:         analyzeCode,
		CurrentPrice: analyzeCurrentPrice,
		Profile:      analyzeProfile,
		Signals:      toSignals(signals),
		External:     external,
	}

	if analyzeCSV != "" {
		req.Series, err = pricedata.LoadCSVFile(analyzeCSV, analyzeCode)
		if err != nil {
			return err
		}
		req.Code = req.Series.Code
	} else {
		src, err := rt.openSources(ctx, analyzeCSVDir)
		if err != nil {
			return err
		}
		defer src.Close()

		if req.Series, err = loadHistory(ctx, src.history, analyzeCode, rt.cfg.Analysis.LookbackDays); err != nil {
			return err
		}

		if len(req.External) == 0 && src.external != nil {
			last, _ := req.Series.Latest()
			values, err := src.external.ExternalValues(ctx, analyzeCode, last.Date)
			if err != nil {
				rt.log.WithError(err).Warn("external values unavailable")
			}
			req.External = values
		}
	}

	analyzer, _, closeFn, err := rt.newAnalyzer()
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := analyzer.Analyze(ctx, req)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", req.Code, err)
	}

	if analyzeFormat == formatText {
		printReport(cmd.OutOrStdout(), result)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// loadHistory 최근 lookbackDays 달력일 이력 조회
func loadHistory(ctx context.Context, src contracts.PriceHistorySource, code string, lookbackDays int) (*contracts.PriceSeries, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)

	series, err := src.GetSeries(ctx, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", code, err)
	}
	return series, nil
}
