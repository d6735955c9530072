package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/histpos/internal/analysisconfig"
	"github.com/wonny/histpos/pkg/config"
	"github.com/wonny/histpos/pkg/logger"
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "분석 파라미터 확인",
	Long: `분석 파라미터 YAML을 검증하고 해시/유효 설정을 출력합니다.

파라미터 해시는 결과 캐시 키의 일부이므로 값 하나만 바뀌어도 기존 결과는 모두 무효가 됩니다.

Example:
  go run ./cmd/histpos config validate
  go run ./cmd/histpos config hash --analysis-config config/analysis.yaml
  go run ./cmd/histpos config show`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "YAML 검증 (오류 시 종료 코드 1)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		params, _, err := analysisconfig.Load(path)
		if err != nil {
			return fmt.Errorf("❌ %s: %w", path, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ %s is valid (config_id=%s, version=%s)\n", path, params.Meta.ConfigID, params.Meta.Version)
		for _, w := range analysisconfig.Warn(params) {
			fmt.Fprintf(out, "⚠️  %s: %s\n", w.Code, w.Message)
		}
		return nil
	},
}

var configHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "파라미터 세트 해시 출력",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := effectiveParams()
		if err != nil {
			return err
		}
		hash, err := analysisconfig.Hash(params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "기본값이 적용된 유효 설정을 YAML로 출력",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := effectiveParams()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(params)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configHashCmd, configShowCmd)
}

// configPath --analysis-config > ANALYSIS_CONFIG > 기본 경로
func configPath() string {
	if analysisConfig != "" {
		return analysisConfig
	}
	cfg, err := config.Load()
	if err != nil {
		return "config/analysis.yaml"
	}
	return cfg.Analysis.ConfigPath
}

func effectiveParams() (*analysisconfig.Config, error) {
	return loadParams(configPath(), analysisConfig != "", logger.Nop())
}
