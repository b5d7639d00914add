// Package export writes stored telemetry to CSV and JSON files and renders
// the plain-text summary report.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/store"
)

// Formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Export types.
const (
	TypeSystem  = "system_metrics"
	TypeNetwork = "network_metrics"
	TypeLogs    = "log_events"
)

// Options select what to export.
type Options struct {
	Format string
	Start  int64
	End    int64

	// Log filters; ignored for metric exports.
	Source string
	Level  string
}

// Exporter reads from the store and writes export files.
type Exporter struct {
	store           *store.Store
	timestampFormat string
	log             *zap.SugaredLogger
}

// New builds an exporter. timestampFormat is the layout for the synthetic
// timestamp_str column.
func New(s *store.Store, timestampFormat string, log *zap.SugaredLogger) *Exporter {
	if timestampFormat == "" {
		timestampFormat = "2006-01-02 15:04:05"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Exporter{store: s, timestampFormat: timestampFormat, log: log}
}

func (e *Exporter) formatTS(ts int64) string {
	return time.Unix(ts, 0).Format(e.timestampFormat)
}

// ExportSystem writes system metrics in the window to path. Returns the
// record count.
func (e *Exporter) ExportSystem(path string, opts Options) (int, error) {
	rows, err := e.store.GetSystemMetrics(opts.Start, opts.End, 0)
	if err != nil {
		return 0, err
	}
	records := make([]record, 0, len(rows))
	for i := range rows {
		records = append(records, e.systemRecord(&rows[i]))
	}
	return len(records), e.write(path, TypeSystem, opts, nil, records)
}

// ExportNetwork writes network metrics in the window to path.
func (e *Exporter) ExportNetwork(path string, opts Options) (int, error) {
	rows, err := e.store.GetNetworkMetrics(opts.Start, opts.End, 0)
	if err != nil {
		return 0, err
	}
	records := make([]record, 0, len(rows))
	for i := range rows {
		records = append(records, e.networkRecord(&rows[i]))
	}
	return len(records), e.write(path, TypeNetwork, opts, nil, records)
}

// ExportLogs writes log events in the window to path, honoring the source
// and level filters.
func (e *Exporter) ExportLogs(path string, opts Options) (int, error) {
	rows, err := e.store.GetLogEvents(opts.Start, opts.End, opts.Source, opts.Level, 0)
	if err != nil {
		return 0, err
	}
	records := make([]record, 0, len(rows))
	for i := range rows {
		records = append(records, e.logRecord(&rows[i]))
	}

	filters := map[string]string{}
	if opts.Source != "" {
		filters["source"] = opts.Source
	}
	if opts.Level != "" {
		filters["level"] = opts.Level
	}
	return len(records), e.write(path, TypeLogs, opts, filters, records)
}

func (e *Exporter) write(path, exportType string, opts Options, filters map[string]string, records []record) error {
	switch opts.Format {
	case FormatJSON:
		return e.writeJSON(path, exportType, opts, filters, records)
	case FormatCSV, "":
		return e.writeCSV(path, records)
	default:
		return fmt.Errorf("unsupported export format %q", opts.Format)
	}
}

// envelope is the JSON export document.
type envelope struct {
	Type      string            `json:"type"`
	StartTime int64             `json:"start_time"`
	EndTime   int64             `json:"end_time"`
	Filters   map[string]string `json:"filters,omitempty"`
	Count     int               `json:"count"`
	Data      []map[string]any  `json:"data"`
}

func (e *Exporter) writeJSON(path, exportType string, opts Options, filters map[string]string, records []record) error {
	data := make([]map[string]any, 0, len(records))
	for _, r := range records {
		data = append(data, r.toMap())
	}
	doc := envelope{
		Type:      exportType,
		StartTime: opts.Start,
		EndTime:   opts.End,
		Filters:   filters,
		Count:     len(records),
		Data:      data,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
