package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

func newTestExporter(t *testing.T) (*Exporter, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, "2006-01-02 15:04:05", nil), s
}

func seedSystemMetrics(t *testing.T, s *store.Store, base int64) {
	t.Helper()
	for i, v := range []float64{25.5, 50, 75.5} {
		v := v
		mem := 60.0
		if err := s.InsertSystemMetric(&model.SystemMetric{
			Timestamp:     base + int64(i)*60,
			CPUPercent:    &v,
			MemoryPercent: &mem,
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCSVExportRoundTrip(t *testing.T) {
	e, s := newTestExporter(t)
	base := time.Now().Unix() - 3600
	seedSystemMetrics(t, s, base)

	path := filepath.Join(t.TempDir(), "system.csv")
	n, err := e.ExportSystem(path, Options{Format: FormatCSV, Start: base - 60, End: base + 3600})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("exported %d records, want 3", n)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(rows))
	}

	header := rows[0]
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, want := range []string{"timestamp", "timestamp_str", "cpu_percent", "memory_percent"} {
		if _, ok := col[want]; !ok {
			t.Fatalf("header missing %s: %v", want, header)
		}
	}

	// Rows come newest first.
	if got := rows[1][col["cpu_percent"]]; got != "75.5" {
		t.Errorf("first row cpu = %q, want 75.5", got)
	}
	// Unsampled columns are empty cells.
	if got := rows[1][col["disk_percent"]]; got != "" {
		t.Errorf("disk cell = %q, want empty", got)
	}

	ts, err := strconv.ParseInt(rows[3][col["timestamp"]], 10, 64)
	if err != nil {
		t.Fatal(err)
	}
	if ts != base {
		t.Errorf("oldest row ts = %d, want %d", ts, base)
	}
}

func TestJSONExportEnvelope(t *testing.T) {
	e, s := newTestExporter(t)
	base := time.Now().Unix() - 3600
	seedSystemMetrics(t, s, base)

	path := filepath.Join(t.TempDir(), "system.json")
	if _, err := e.ExportSystem(path, Options{Format: FormatJSON, Start: base - 60, End: base + 3600}); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type      string           `json:"type"`
		StartTime int64            `json:"start_time"`
		EndTime   int64            `json:"end_time"`
		Count     int              `json:"count"`
		Data      []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Type != TypeSystem || doc.Count != 3 || len(doc.Data) != 3 {
		t.Fatalf("envelope = %+v", doc)
	}

	first := doc.Data[0]
	if _, ok := first["timestamp"].(float64); !ok {
		t.Error("record missing numeric timestamp")
	}
	if _, ok := first["timestamp_str"].(string); !ok {
		t.Error("record missing timestamp_str")
	}
	if cpu, _ := first["cpu_percent"].(float64); cpu != 75.5 {
		t.Errorf("cpu = %v, want 75.5", cpu)
	}
}

func TestLogExportFilters(t *testing.T) {
	e, s := newTestExporter(t)
	base := time.Now().Unix() - 3600

	events := []model.LogEvent{
		{Timestamp: base, Source: model.SourceAuth, Message: "a", Level: model.LevelInfo},
		{Timestamp: base + 1, Source: model.SourceDjango, Message: "b", Level: model.LevelError},
		{Timestamp: base + 2, Source: model.SourceDjango, Message: "c", Level: model.LevelInfo},
	}
	for i := range events {
		if err := s.InsertLogEvent(&events[i]); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "logs.json")
	n, err := e.ExportLogs(path, Options{
		Format: FormatJSON, Start: base - 60, End: base + 3600,
		Source: model.SourceDjango, Level: model.LevelError,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("filtered export = %d records, want 1", n)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc envelope
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Filters["source"] != model.SourceDjango || doc.Filters["level"] != model.LevelError {
		t.Errorf("filters = %v", doc.Filters)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	e, _ := newTestExporter(t)
	_, err := e.ExportSystem(filepath.Join(t.TempDir(), "x"), Options{Format: "xml"})
	if err == nil {
		t.Fatal("xml should be rejected")
	}
}

func TestReportRendering(t *testing.T) {
	e, _ := newTestExporter(t)

	report := &model.HealthReport{
		GeneratedAt: time.Now().Unix(),
		WindowHours: 24,
		HealthScore: 62,
		Status:      model.StatusDegraded,
		ComponentScores: map[string]int{
			"security": 40, "performance": 80, "errors": 70, "network": 100,
		},
		IssuesByBand: map[string]int{model.BandCritical: 1, model.BandMedium: 2},
		TotalIssues:  3,
		TopIssues: []model.Issue{
			{Severity: 95, Title: "Brute force attempt from 203.0.113.42", Description: "10 failed logins"},
		},
		Recommendations: []string{"review authentication activity"},
	}
	counts := map[string]int64{"log_events": 120, "system_metrics": 1440}

	path := filepath.Join(t.TempDir(), "report.txt")
	var echo strings.Builder
	if err := e.WriteReport(path, report, counts, &echo); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(raw)
	for _, want := range []string{
		"Health: 62/100 (degraded)",
		"Brute force attempt",
		"log_events",
		"review authentication activity",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if echo.String() != text {
		t.Error("echo output should match the file")
	}
}
