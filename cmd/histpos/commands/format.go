package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/wonny/histpos/internal/contracts"
	"github.com/wonny/histpos/internal/engine"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	formatJSON = "json"
	formatText = "text"
)

func checkFormat(f string) error {
	if f != formatJSON && f != formatText {
		return fmt.Errorf("unknown format %q (json|text)", f)
	}
	return nil
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSeparator prints a visual separator
func printSeparator(w io.Writer) {
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}

// printDoubleSeparator prints a double-line separator
func printDoubleSeparator(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}

// printKeyValue prints key-value pairs
func printKeyValue(w io.Writer, key, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// printTableHeader prints a table header
func printTableHeader(w io.Writer, columns []string, widths []int) {
	printTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// printTableRow prints a table row
func printTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// printReport renders one analysis result for terminals
func printReport(w io.Writer, r *contracts.AnalysisResult) {
	fmt.Fprintln(w)
	printDoubleSeparator(w)
	fmt.Fprintf(w, "  %s  @ %.4g  (%s)\n", r.Code, r.CurrentPrice, r.AsOf.Format("2006-01-02"))
	printSeparator(w)

	env := r.Environment
	printKeyValue(w, "Regime", string(env.Regime), 14)
	if !env.InsufficientData {
		printKeyValue(w, "RSI", fmt.Sprintf("%.1f", env.RSI), 14)
		printKeyValue(w, "To high", pct(env.DistanceToHigh), 14)
		printKeyValue(w, "MA state", string(env.MAState), 14)
	}
	printKeyValue(w, "Similar", fmt.Sprintf("%d sessions", r.SimilarCount), 14)

	fmt.Fprintln(w)
	printTableHeader(w,
		[]string{"Horizon", "N", "Up%", "Mean", "Median", "P10", "P90", "Conf"},
		[]int{8, 5, 7, 9, 9, 9, 9, 5},
	)

	horizons := make([]int, 0, len(r.Statistics))
	for h := range r.Statistics {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)

	for _, h := range horizons {
		s := r.Statistics[h]
		label := fmt.Sprintf("%dd", h)
		if h == r.PrimaryHorizon {
			label += "*"
		}
		if s.SampleSize == 0 {
			printTableRow(w, []string{label, "0", "-", "-", "-", "-", "-", "-"}, []int{8, 5, 7, 9, 9, 9, 9, 5})
			continue
		}
		printTableRow(w, []string{
			label,
			fmt.Sprintf("%d", s.SampleSize),
			fmt.Sprintf("%.1f", s.UpProbability*100),
			pct(s.MeanReturn),
			pct(s.MedianReturn),
			pct(s.P10Return),
			pct(s.P90Return),
			fmt.Sprintf("%.2f", s.Confidence),
		}, []int{8, 5, 7, 9, 9, 9, 9, 5})
	}

	fmt.Fprintln(w)
	if r.Risk.Determined {
		printKeyValue(w, "Risk", fmt.Sprintf("%.3f (%s, coverage %.0f%%)", r.Risk.Score, r.Risk.Level, r.Risk.Coverage*100), 14)
		for _, f := range r.Risk.Factors {
			fmt.Fprintf(w, "   • %-22s %.2f × %.2f = %.3f\n", f.Name, f.Magnitude, f.EffectiveWeight, f.Contribution)
		}
	} else {
		printKeyValue(w, "Risk", string(contracts.RiskUndetermined), 14)
	}
	if len(r.Risk.Ignored) > 0 {
		printKeyValue(w, "Ignored", strings.Join(r.Risk.Ignored, ", ")+" (zero weight in profile)", 14)
	}

	fmt.Fprintln(w)
	printKeyValue(w, "Direction", string(r.Advice.Direction), 14)
	printKeyValue(w, "Position", r.Advice.Position.String(), 14)
	printKeyValue(w, "Reason", r.Advice.ReasonCode, 14)
	printKeyValue(w, "Rationale", r.Advice.Rationale, 14)
	printDoubleSeparator(w)
}

// printBatchSummary renders one line per instrument
func printBatchSummary(w io.Writer, results []engine.BatchResult) {
	widths := []int{10, 12, 16, 10, 10, 7, 6}
	printTableHeader(w, []string{"Code", "Regime", "Direction", "Position", "Risk", "Up%", "N"}, widths)

	failed := 0
	for _, br := range results {
		if br.Result == nil {
			failed++
			printTableRow(w, []string{br.Code, "ERROR", br.Error, "", "", "", ""}, widths)
			continue
		}
		r := br.Result

		risk := string(contracts.RiskUndetermined)
		if r.Risk.Determined {
			risk = fmt.Sprintf("%.2f", r.Risk.Score)
		}
		up, n := "-", "0"
		if s, ok := r.Primary(); ok && s.SampleSize > 0 {
			up = fmt.Sprintf("%.1f", s.UpProbability*100)
			n = fmt.Sprintf("%d", s.SampleSize)
		}

		printTableRow(w, []string{
			r.Code,
			string(r.Environment.Regime),
			string(r.Advice.Direction),
			r.Advice.Position.String(),
			risk,
			up,
			n,
		}, widths)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d analyzed, %d failed\n", len(results)-failed, failed)
}
