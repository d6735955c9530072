package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	analysisConfig string
	logLevel       string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "histpos",
	Short: "Historical position & risk scoring engine",
	Long: `histpos - 과거 유사 가격 구간 기반 포지션/리스크 분석

현재가와 비슷했던 과거 시점을 찾아 이후 수익률 분포를 집계하고,
시장 국면과 복합 리스크 점수를 결합해 방향성과 권장 비중을 제시합니다.

Usage:
  go run ./cmd/histpos [command]

Examples:
  go run ./cmd/histpos analyze --csv data/000300.csv
  go run ./cmd/histpos analyze --code 069500 --profile sector_etf
  go run ./cmd/histpos batch --csv-dir data --codes 000300,069500
  go run ./cmd/histpos config validate
  go run ./cmd/histpos api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&analysisConfig, "analysis-config", "", "analysis parameter YAML (default: ANALYSIS_CONFIG or config/analysis.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace|debug|info|warn|error|disabled)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
