package store

import (
	"testing"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

const hourBase = int64(1_700_000_000) - 1_700_000_000%3600 // exact hour boundary

func insertSystemSamples(t *testing.T, s *Store, base int64, cpuValues []float64, step int64) {
	t.Helper()
	for i, v := range cpuValues {
		m := &model.SystemMetric{
			Timestamp:  base + int64(i)*step,
			CPUPercent: model.Float64(v),
		}
		if err := s.InsertSystemMetric(m); err != nil {
			t.Fatalf("insert sample %d: %v", i, err)
		}
	}
}

func TestHourlyAggregateIdempotent(t *testing.T) {
	s := newTestStore(t)

	// Six samples inside hour H: avg 55, max 80.
	insertSystemSamples(t, s, hourBase, []float64{30, 40, 50, 60, 70, 80}, 60)

	for i := 0; i < 2; i++ {
		if err := s.ComputeHourlyAggregates(hourBase); err != nil {
			t.Fatalf("compute #%d: %v", i+1, err)
		}
	}

	aggs, err := s.GetHourlyAggregates(hourBase, hourBase)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("rows = %d, want exactly 1 after double compute", len(aggs))
	}
	a := aggs[0]
	if a.AvgCPUPercent == nil || *a.AvgCPUPercent != 55.0 {
		t.Errorf("avg_cpu_percent = %v, want 55.0", a.AvgCPUPercent)
	}
	if a.MaxCPUPercent == nil || *a.MaxCPUPercent != 80.0 {
		t.Errorf("max_cpu_percent = %v, want 80.0", a.MaxCPUPercent)
	}
	if a.SampleCount != 6 {
		t.Errorf("sample_count = %d, want 6", a.SampleCount)
	}
}

func TestHourlyAggregateSkipsEmptyHour(t *testing.T) {
	s := newTestStore(t)

	if err := s.ComputeHourlyAggregates(hourBase); err != nil {
		t.Fatalf("compute: %v", err)
	}
	aggs, _ := s.GetHourlyAggregates(hourBase, hourBase)
	if len(aggs) != 0 {
		t.Errorf("rows = %d, want none for an empty hour", len(aggs))
	}
}

func TestHourlyAggregateCountsEvents(t *testing.T) {
	s := newTestStore(t)

	events := []*model.LogEvent{
		{Timestamp: hourBase + 10, Source: "syslog", Message: "a", Level: model.LevelError},
		{Timestamp: hourBase + 20, Source: "syslog", Message: "b", Level: model.LevelWarning},
		{Timestamp: hourBase + 30, Source: "auth", Message: "c", Action: model.ActionFailedLogin},
		{Timestamp: hourBase + 3600, Source: "syslog", Message: "next hour"},
	}
	if _, err := s.InsertLogEvents(events); err != nil {
		t.Fatalf("insert events: %v", err)
	}
	if err := s.ComputeHourlyAggregates(hourBase); err != nil {
		t.Fatalf("compute: %v", err)
	}

	aggs, _ := s.GetHourlyAggregates(hourBase, hourBase)
	if len(aggs) != 1 {
		t.Fatalf("rows = %d, want 1", len(aggs))
	}
	a := aggs[0]
	if a.TotalEvents != 3 {
		t.Errorf("total_events = %d, want 3 (next-hour event excluded)", a.TotalEvents)
	}
	if a.ErrorEvents != 1 || a.WarningEvents != 1 || a.SecurityEvents != 1 {
		t.Errorf("event classes = %d/%d/%d, want 1/1/1", a.ErrorEvents, a.WarningEvents, a.SecurityEvents)
	}
}

func TestHourlyAggregateNetworkDeltas(t *testing.T) {
	s := newTestStore(t)

	// Cumulative counters growing 1000 -> 4000, with a reset in the middle.
	values := []uint64{1000, 2500, 100, 600}
	for i, v := range values {
		m := &model.NetworkMetric{
			Timestamp: hourBase + int64(i)*60,
			BytesSent: model.Uint64(v),
			BytesRecv: model.Uint64(v * 2),
		}
		if err := s.InsertNetworkMetric(m); err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}
	if err := s.ComputeHourlyAggregates(hourBase); err != nil {
		t.Fatalf("compute: %v", err)
	}

	aggs, _ := s.GetHourlyAggregates(hourBase, hourBase)
	if len(aggs) != 1 {
		t.Fatalf("rows = %d, want 1", len(aggs))
	}
	// Deltas: +1500, reset (0), +500 = 2000. Cumulative-sum behavior would
	// have reported 4200.
	if aggs[0].BytesSent != 2000 {
		t.Errorf("bytes_sent = %d, want 2000 (reset clamped)", aggs[0].BytesSent)
	}
	if aggs[0].BytesRecv != 4000 {
		t.Errorf("bytes_recv = %d, want 4000", aggs[0].BytesRecv)
	}
}

func TestDailyAggregate(t *testing.T) {
	s := newTestStore(t)

	date := model.DateOf(hourBase)
	dayStart, _, err := model.DayBounds(date)
	if err != nil {
		t.Fatalf("day bounds: %v", err)
	}

	// Two hours of samples plus events with distinct actors.
	insertSystemSamples(t, s, dayStart, []float64{40, 60}, 60)
	insertSystemSamples(t, s, dayStart+3600, []float64{80}, 60)
	events := []*model.LogEvent{
		{Timestamp: dayStart + 5, Source: "auth", Message: "x", IP: "203.0.113.1", User: "root"},
		{Timestamp: dayStart + 6, Source: "auth", Message: "y", IP: "203.0.113.2", User: "root"},
		{Timestamp: dayStart + 7, Source: "auth", Message: "z", IP: "203.0.113.1", User: "admin"},
	}
	if _, err := s.InsertLogEvents(events); err != nil {
		t.Fatalf("insert events: %v", err)
	}

	for _, h := range []int64{dayStart, dayStart + 3600} {
		if err := s.ComputeHourlyAggregates(h); err != nil {
			t.Fatalf("hourly %d: %v", h, err)
		}
	}
	for i := 0; i < 2; i++ { // idempotent like the hourly roll-up
		if err := s.ComputeDailyAggregates(date); err != nil {
			t.Fatalf("daily #%d: %v", i+1, err)
		}
	}

	days, err := s.GetDailyAggregates(date, date)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("rows = %d, want 1", len(days))
	}
	d := days[0]
	if d.HourCount != 2 {
		t.Errorf("hour_count = %d, want 2", d.HourCount)
	}
	if d.UniqueIPs != 2 || d.UniqueUsers != 2 {
		t.Errorf("unique ips/users = %d/%d, want 2/2", d.UniqueIPs, d.UniqueUsers)
	}
	if d.MaxCPUPercent == nil || *d.MaxCPUPercent != 80 {
		t.Errorf("max_cpu_percent = %v, want 80", d.MaxCPUPercent)
	}
	if d.TotalEvents != 3 {
		t.Errorf("total_events = %d, want 3", d.TotalEvents)
	}
}

func TestRetention(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Unix()

	old := &model.SystemMetric{Timestamp: now - 100*86400, CPUPercent: model.Float64(10)}
	fresh := &model.SystemMetric{Timestamp: now - 10*86400, CPUPercent: model.Float64(20)}
	for _, m := range []*model.SystemMetric{old, fresh} {
		if err := s.InsertSystemMetric(m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	deleted, err := s.CleanupOldData(30)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	rows, _ := s.GetSystemMetrics(0, now, 0)
	if len(rows) != 1 || *rows[0].CPUPercent != 20 {
		t.Fatalf("surviving rows = %+v, want only the 10-day-old sample", rows)
	}

	// Everything older than the horizon is gone.
	stale, _ := s.GetSystemMetrics(0, now-30*86400-1, 0)
	if len(stale) != 0 {
		t.Errorf("found %d rows older than the horizon", len(stale))
	}

	// Idempotent: nothing left to delete.
	deleted, err = s.CleanupOldData(30)
	if err != nil || deleted != 0 {
		t.Errorf("second sweep = (%d, %v), want (0, nil)", deleted, err)
	}
}

func TestRetentionZeroDaysDeletesEverything(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Unix()

	if err := s.InsertSystemMetric(&model.SystemMetric{Timestamp: now - 5}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.CleanupOldData(0); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	rows, _ := s.GetSystemMetrics(0, now+10, 0)
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0 after zero-day retention", len(rows))
	}
}

func TestRetentionLongerThanDataAgeDeletesNothing(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Unix()

	if err := s.InsertSystemMetric(&model.SystemMetric{Timestamp: now - 86400}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	deleted, err := s.CleanupOldData(365)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}
