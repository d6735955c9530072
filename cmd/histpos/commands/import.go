package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/histpos/internal/history"
	"github.com/wonny/histpos/internal/pricedata"
	"github.com/wonny/histpos/pkg/database"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "CSV 가격 이력을 PostgreSQL에 적재",
	Long: `CSV 파일을 검증한 뒤 data.daily_prices에 upsert 합니다 (날짜 순서/중복/가격 오류 시 중단).
종목 코드는 --code (파일 1개일 때) 또는 파일명에서 결정됩니다.

Example:
  go run ./cmd/histpos import data/000300.csv
  go run ./cmd/histpos import spx.csv --code SPX`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importCode string

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importCode, "code", "", "instrument code (single file only)")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importCode != "" && len(args) > 1 {
		return fmt.Errorf("--code can only be used with a single file")
	}

	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := pricedata.NewPriceRepository(db.Pool, rt.log.Zerolog())
	out := cmd.OutOrStdout()

	total := 0
	for i, path := range args {
		series, err := pricedata.LoadCSVFile(path, importCode)
		if err != nil {
			return err
		}
		if err := history.Validate(series); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		n, err := repo.SaveSeries(ctx, series)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		total += n
		fmt.Fprintf(out, "[Import] %s: %d bars [%d/%d]\n", series.Code, n, i+1, len(args))
	}

	fmt.Fprintf(out, "✅ %d bars imported from %d file(s)\n", total, len(args))
	return nil
}
