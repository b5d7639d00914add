package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// WriteReport renders the plain-text summary report to path. When echo is
// non-nil the same text is also written there (the CLI passes stdout).
func (e *Exporter) WriteReport(path string, report *model.HealthReport, counts map[string]int64, echo io.Writer) error {
	text := e.renderReport(report, counts)

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if echo != nil {
		if _, err := io.WriteString(echo, text); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) renderReport(report *model.HealthReport, counts map[string]int64) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "LOGLY SYSTEM REPORT")
	fmt.Fprintf(&b, "generated: %s\n", time.Unix(report.GeneratedAt, 0).Format(e.timestampFormat))
	fmt.Fprintf(&b, "window:    last %d hour(s)\n", report.WindowHours)
	fmt.Fprintln(&b, line)

	fmt.Fprintf(&b, "\nHealth: %d/100 (%s)\n", report.HealthScore, report.Status)
	for _, component := range []string{"security", "performance", "errors", "network"} {
		fmt.Fprintf(&b, "  %-12s %d\n", component, report.ComponentScores[component])
	}

	fmt.Fprintf(&b, "\nIssues: %d total\n", report.TotalIssues)
	for _, band := range []string{model.BandCritical, model.BandHigh, model.BandMedium, model.BandLow} {
		if n := report.IssuesByBand[band]; n > 0 {
			fmt.Fprintf(&b, "  %-12s %d\n", band, n)
		}
	}

	if len(report.TopIssues) > 0 {
		fmt.Fprintln(&b, "\nTop issues:")
		for i, issue := range report.TopIssues {
			fmt.Fprintf(&b, "  %d. [%3.0f] %s\n", i+1, issue.Severity, issue.Title)
			fmt.Fprintf(&b, "     %s\n", issue.Description)
		}
	}

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(&b, "\nRecommendations:")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	if len(counts) > 0 {
		fmt.Fprintln(&b, "\nStored rows:")
		tables := make([]string, 0, len(counts))
		for table := range counts {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(&b, "  %-20s %d\n", table, counts[table])
		}
	}

	fmt.Fprintln(&b, "\n"+line)
	return b.String()
}
