package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/export"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command prints through these helpers
// ═══════════════════════════════════════════════════════════

// RunMetadata holds the header fields of a harvest run
type RunMetadata struct {
	Title          string
	RunID          string
	Provider       string
	EvaluationDate string
	Source         string // "fresh" or "cache"
}

// PrintRunHeader prints a formatted run header
func PrintRunHeader(w io.Writer, meta RunMetadata) {
	fmt.Fprintln(w)
	PrintDoubleSeparator(w)
	fmt.Fprintf(w, "  %s\n", meta.Title)
	PrintSeparator(w)
	fmt.Fprintf(w, "  Run ID    : %s\n", meta.RunID)
	fmt.Fprintf(w, "  Provider  : %s\n", meta.Provider)
	fmt.Fprintf(w, "  Date      : %s\n", meta.EvaluationDate)
	if meta.Source != "" {
		fmt.Fprintf(w, "  Source    : %s\n", meta.Source)
	}
	PrintSeparator(w)
}

// PrintSeparator prints a visual separator
func PrintSeparator(w io.Writer) {
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "⚠️  %s\n", message)
	fmt.Fprintln(w)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		if i < len(values)-1 {
			fmt.Fprintf(w, "%-*s  ", widths[i], val)
		} else {
			fmt.Fprint(w, val)
		}
	}
	fmt.Fprintln(w)
}

// PrintList prints a bulleted list
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// harvestColumns is the condensed console view of the export columns
var (
	harvestColumns = []string{"#", "CODE", "NAME", "EXCH", "CLOSE", "YIELD%", "DAYS", "EX-DATE", "PAYOUT%", "P/E", "FROM LOW%"}
	harvestWidths  = []int{4, 10, 28, 6, 10, 7, 5, 11, 8, 7, 9}
)

// PrintHarvestTable prints ranked records as a table
func PrintHarvestTable(w io.Writer, records []contracts.CanonicalRecord) {
	PrintTableHeader(w, harvestColumns, harvestWidths)
	for i := range records {
		PrintTableRow(w, harvestRow(i+1, &records[i]), harvestWidths)
	}
}

// harvestRow reuses the export formatting so the console and CSV agree
func harvestRow(rank int, r *contracts.CanonicalRecord) []string {
	row := export.Row(r)
	return []string{
		fmt.Sprintf("%d", rank),
		r.Code,
		truncate(r.Name, harvestWidths[2]),
		r.Exchange,
		row[3], // close
		row[4], // dividend_yield
		row[5], // days_until_exdiv
		row[6], // next_div_date
		row[7], // payout_ratio
		row[8], // pe_ratio
		row[9], // pct_from_52w_low
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// PrintSummary prints the dashboard metrics of a result set
func PrintSummary(w io.Writer, rs *contracts.ResultSet) {
	s := rs.Summarize()
	PrintKeyValue(w, "Scanned", fmt.Sprintf("%d", rs.Scanned), 14)
	PrintKeyValue(w, "Qualified", fmt.Sprintf("%d", s.Count), 14)
	if s.Count == 0 {
		return
	}
	PrintKeyValue(w, "Avg yield", fmt.Sprintf("%.2f%%", s.AvgYield), 14)
	PrintKeyValue(w, "Avg close", fmt.Sprintf("%.2f", s.AvgPrice), 14)
	PrintKeyValue(w, "Avg days", fmt.Sprintf("%.1f", s.AvgDaysToDiv), 14)
}
