// logly — lightweight observability daemon for small Linux servers.
//
// Samples system and network metrics via gopsutil, tails service logs into
// structured events, scores IP reputation, and answers health/security
// queries out of a single SQLite database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/analyze"
	"github.com/avolkhov/logly/internal/collector"
	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/detect"
	"github.com/avolkhov/logly/internal/export"
	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/query"
	"github.com/avolkhov/logly/internal/scheduler"
	"github.com/avolkhov/logly/internal/store"
	"github.com/avolkhov/logly/internal/tailer"
)

var version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "logly",
		Short: "Lightweight observability daemon for small Linux servers",
		Long: `logly — single-binary monitoring for servers that don't warrant a
metrics stack.

Samples CPU/memory/disk/load and network counters, tails and parses
fail2ban/auth/syslog/nginx/django logs into structured events, tracks
per-IP reputation, and runs issue detectors over a local SQLite
database. Query, export, and report from the same binary.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML, merged over built-in defaults)")

	rootCmd.AddCommand(
		newStartCmd(&configPath),
		newCollectCmd(&configPath),
		newStatusCmd(&configPath),
		newDBSizeCmd(&configPath),
		newExportCmd(&configPath),
		newReportCmd(&configPath),
		newQueryCmd(&configPath),
		newMCPCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the collaborators every subcommand wires the same way.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store *store.Store
}

// openApp loads config, builds the logger, and opens the store. Daemon mode
// adds the rotated file sink under the data directory; one-shot commands log
// to stderr only.
func openApp(configPath string, daemon bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logFile := ""
	if daemon {
		logFile = cfg.Logging.File
		if logFile == "" {
			logFile = filepath.Join(cfg.Database.Path, "logly.log")
		}
	}
	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: logFile})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Options{DataDir: cfg.Database.Path, Logger: log})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) close() {
	a.store.Close()
	a.log.Sync()
}

// tasks assembles the scheduler task set from config.
func (a *app) tasks() []scheduler.Task {
	samplers := []collector.Sampler{
		collector.NewSystemSampler(a.cfg.System.Enabled, a.cfg.System.Metrics, "/", a.log),
		collector.NewNetworkSampler(a.cfg.Network.Enabled, a.cfg.Network.Metrics, a.log),
	}

	var sources []tailer.Source
	if a.cfg.Logs.Enabled {
		sources = tailer.SourcesFromConfig(a.cfg.Logs.Sources)
	}
	tl := tailer.New(sources, a.store, a.log)

	return scheduler.BuildTasks(a.cfg, samplers, tl, a.store, a.log)
}

func (a *app) detector() *detect.Detector {
	return detect.New(a.store, a.cfg.Query.Thresholds, a.log)
}

func (a *app) analyzer() *analyze.Analyzer {
	return analyze.New(a.store, a.detector(), a.log)
}

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the daemon until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.Infow("logly starting", "version", version, "db", a.store.Path())
			sched := scheduler.New(a.tasks(), a.log, scheduler.WithSignalHandling())
			sched.Start(cmd.Context())
			return nil
		},
	}
}

func newCollectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Execute every enabled collector once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			scheduler.New(a.tasks(), a.log).RunOnce(cmd.Context())

			counts, err := a.store.Counts()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "collected; stored rows:")
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print database row counts and file size",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.store.Counts()
			if err != nil {
				return err
			}
			size, err := a.store.FileSize()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s (%s)\n", a.store.Path(), humanSize(size))
			printCounts(out, counts)
			return nil
		},
	}
}

func newDBSizeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "db-size",
		Short: "Print the database file size in B/KB/MB/GB",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			size, err := a.store.FileSize()
			if err != nil {
				return err
			}
			const unit = 1024.0
			fmt.Fprintf(cmd.OutOrStdout(), "%d B\n%.2f KB\n%.2f MB\n%.2f GB\n",
				size,
				float64(size)/unit,
				float64(size)/(unit*unit),
				float64(size)/(unit*unit*unit))
			return nil
		},
	}
}

func newExportCmd(configPath *string) *cobra.Command {
	var (
		format string
		hours  int
		days   int
		source string
		level  string
	)

	cmd := &cobra.Command{
		Use:   "export {system|network|logs} <path>",
		Short: "Write stored rows to a CSV or JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			start, end := windowBounds(hours, days, a.cfg.Query.DefaultTimeWindow)
			opts := export.Options{Format: format, Start: start, End: end, Source: source, Level: level}
			if opts.Format == "" {
				opts.Format = a.cfg.Export.DefaultFormat
			}

			e := export.New(a.store, a.cfg.Export.TimestampFormat, a.log)
			var n int
			switch args[0] {
			case "system":
				n, err = e.ExportSystem(args[1], opts)
			case "network":
				n, err = e.ExportNetwork(args[1], opts)
			case "logs":
				n, err = e.ExportLogs(args[1], opts)
			default:
				return fmt.Errorf("unknown export kind %q (want system, network, or logs)", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", n, args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv or json (default from config)")
	cmd.Flags().IntVar(&hours, "hours", 0, "Window size in hours")
	cmd.Flags().IntVar(&days, "days", 0, "Window size in days (overrides --hours)")
	cmd.Flags().StringVar(&source, "source", "", "Filter log events by source")
	cmd.Flags().StringVar(&level, "level", "", "Filter log events by level")
	return cmd
}

func newReportCmd(configPath *string) *cobra.Command {
	var (
		hours     int
		days      int
		alsoPrint bool
	)

	cmd := &cobra.Command{
		Use:   "report <path>",
		Short: "Write the plain-text summary report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			h := windowHours(hours, days, a.cfg.Query.DefaultTimeWindow)
			report := a.analyzer().SystemHealth(h)
			counts, err := a.store.Counts()
			if err != nil {
				return err
			}

			var echo io.Writer
			if alsoPrint {
				echo = cmd.OutOrStdout()
			}
			e := export.New(a.store, a.cfg.Export.TimestampFormat, a.log)
			return e.WriteReport(args[0], report, counts, echo)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Window size in hours")
	cmd.Flags().IntVar(&days, "days", 0, "Window size in days (overrides --hours)")
	cmd.Flags().BoolVarP(&alsoPrint, "print", "p", false, "Also print the report to stdout")
	return cmd
}

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		hours     int
		threshold float64
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "query {security|performance|errors|health|ips}",
		Short: "Run an analysis query and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			h := windowHours(hours, 0, a.cfg.Query.DefaultTimeWindow)

			var result any
			switch args[0] {
			case "health":
				result = a.analyzer().SystemHealth(h)
			case "security":
				result, err = a.analyzer().SecurityPosture(h)
			case "errors":
				result, err = a.analyzer().ErrorTrends(windowDays(h))
			case "performance":
				result, err = a.analyzer().ResourceTrends(windowDays(h))
			case "ips":
				q := query.New(a.store).IPs().SortByThreat()
				if threshold > 0 {
					q = q.WithThreatAbove(threshold)
				}
				result, err = q.All()
			default:
				return fmt.Errorf("unknown query %q (want security, performance, errors, health, or ips)", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printQueryResult(out, result)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Window size in hours")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum threat score (ips query)")
	cmd.Flags().BoolVarP(&jsonOut, "json", "o", false, "Dump the full result as JSON")
	return cmd
}

// windowHours resolves the --hours/--days pair; days wins when both are set,
// and the config default applies when neither is.
func windowHours(hours, days, defaultHours int) int {
	switch {
	case days > 0:
		return days * 24
	case hours > 0:
		return hours
	default:
		return defaultHours
	}
}

// windowDays converts a trailing-hours window to whole days for the day-based
// analyzers, never below one day.
func windowDays(hours int) int {
	if hours <= 24 {
		return 1
	}
	return hours / 24
}

func windowBounds(hours, days, defaultHours int) (int64, int64) {
	h := windowHours(hours, days, defaultHours)
	end := time.Now().Unix()
	return end - int64(h)*3600, end
}

// humanSize renders a byte count in the largest unit that keeps the value
// above one.
func humanSize(n int64) string {
	const unit = 1024.0
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(n)/(unit*unit*unit))
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(unit*unit))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/unit)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func printCounts(w io.Writer, counts map[string]int64) {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Fprintf(w, "  %-20s %d\n", table, counts[table])
	}
}

func printQueryResult(w io.Writer, result any) {
	switch r := result.(type) {
	case *model.HealthReport:
		fmt.Fprintf(w, "Health: %d/100 (%s), %d issue(s) in the last %d hour(s)\n",
			r.HealthScore, r.Status, r.TotalIssues, r.WindowHours)
		for i, issue := range r.TopIssues {
			fmt.Fprintf(w, "  %d. [%3.0f] %s\n", i+1, issue.Severity, issue.Title)
		}
	case *model.SecurityReport:
		fmt.Fprintf(w, "Risk: %.0f/100 (%s)\n", r.RiskScore, r.Posture)
		fmt.Fprintf(w, "  brute force groups  %d\n", r.BruteForceCount)
		fmt.Fprintf(w, "  high-threat IPs     %d\n", r.HighThreatIPCount)
		fmt.Fprintf(w, "  failed logins       %d\n", r.FailedLoginCount)
		fmt.Fprintf(w, "  bans                %d\n", r.BanCount)
	case *model.ErrorTrendReport:
		fmt.Fprintf(w, "Errors over %d day(s): %d total, trend %s\n",
			r.WindowDays, r.TotalErrors, r.Trend)
		fmt.Fprintf(w, "  first half   %d (%.2f/h)\n", r.FirstHalfCount, r.FirstHalfRate)
		fmt.Fprintf(w, "  second half  %d (%.2f/h)\n", r.SecondHalfCount, r.SecondHalfRate)
	case map[string]*model.TrendReport:
		metrics := make([]string, 0, len(r))
		for m := range r {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			t := r[m]
			fmt.Fprintf(w, "%-16s %s (slope %+.4f, strength %.2f, %d sample(s))\n",
				m, t.Direction, t.Slope, t.Strength, t.SampleCount)
		}
	case []model.IPReputation:
		if len(r) == 0 {
			fmt.Fprintln(w, "no tracked addresses")
			return
		}
		for _, rep := range r {
			fmt.Fprintf(w, "%-16s threat %3.0f  events %-6d failed %-4d bans %d\n",
				rep.IP, rep.ThreatScore, rep.TotalEvents, rep.FailedLoginCount, rep.BannedCount)
		}
	}
}
