package query

import (
	"testing"
	"time"

	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

func newTestQuery(t *testing.T) (*Q, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func seedEvents(t *testing.T, s *store.Store) int64 {
	t.Helper()
	base := time.Now().Unix() - 7200
	rows := []model.LogEvent{
		{Timestamp: base, Source: model.SourceAuth, Message: "ok login", Level: model.LevelInfo},
		{Timestamp: base + 10, Source: model.SourceAuth, Message: "bad login", Level: model.LevelWarning},
		{Timestamp: base + 20, Source: model.SourceDjango, Message: "boom", Level: model.LevelError},
		{Timestamp: base + 30, Source: model.SourceDjango, Message: "bigger boom", Level: model.LevelCritical},
		{Timestamp: base + 40, Source: model.SourceSyslog, Message: "noise", Level: model.LevelInfo},
	}
	for i := range rows {
		if err := s.InsertLogEvent(&rows[i]); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func TestEventFilters(t *testing.T) {
	q, s := newTestQuery(t)
	seedEvents(t, s)

	all, err := q.Events().All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("all = %d, want 5", len(all))
	}

	django, err := q.Events().BySource(model.SourceDjango).All()
	if err != nil {
		t.Fatal(err)
	}
	if len(django) != 2 {
		t.Errorf("django = %d, want 2", len(django))
	}

	// errors_only spans both error and critical.
	errs, err := q.Events().ErrorsOnly().All()
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 {
		t.Errorf("errors = %d, want 2", len(errs))
	}

	warnings, err := q.Events().WarningsOnly().Count()
	if err != nil {
		t.Fatal(err)
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}
}

func TestEventFirstAndLatest(t *testing.T) {
	q, s := newTestQuery(t)
	seedEvents(t, s)

	first, err := q.Events().First()
	if err != nil {
		t.Fatal(err)
	}
	latest, err := q.Events().Latest()
	if err != nil {
		t.Fatal(err)
	}
	if first.Message != "ok login" {
		t.Errorf("first = %q", first.Message)
	}
	if latest.Message != "noise" {
		t.Errorf("latest = %q", latest.Message)
	}

	_, err = q.Events().WithLevel(model.LevelDebug).First()
	if !IsNoRows(err) {
		t.Errorf("empty result error = %v, want no-rows", err)
	}
}

func TestBuildersAreValues(t *testing.T) {
	q, s := newTestQuery(t)
	seedEvents(t, s)

	base := q.Events().InLastHours(3)
	django := base.BySource(model.SourceDjango)
	auth := base.BySource(model.SourceAuth)

	nd, err := django.Count()
	if err != nil {
		t.Fatal(err)
	}
	na, err := auth.Count()
	if err != nil {
		t.Fatal(err)
	}
	if nd != 2 || na != 2 {
		t.Errorf("counts = %d/%d; a shared base must not leak filters", nd, na)
	}
}

func TestOutsideWindowExcluded(t *testing.T) {
	q, s := newTestQuery(t)

	old := time.Now().Unix() - 3*86400
	if err := s.InsertLogEvent(&model.LogEvent{
		Timestamp: old, Source: model.SourceSyslog, Message: "ancient", Level: model.LevelInfo,
	}); err != nil {
		t.Fatal(err)
	}

	n, err := q.Events().Count() // default 24 h window
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("default window picked up a 3-day-old event")
	}

	n, err = q.Events().InLastDays(7).Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("7-day window = %d, want 1", n)
	}
}

func TestMetricReducers(t *testing.T) {
	q, s := newTestQuery(t)
	base := time.Now().Unix() - 3600

	for i, v := range []float64{30, 50, 70} {
		v := v
		if err := s.InsertSystemMetric(&model.SystemMetric{
			Timestamp: base + int64(i)*60, CPUPercent: &v,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// One row without the field; reducers must skip it.
	if err := s.InsertSystemMetric(&model.SystemMetric{Timestamp: base + 300}); err != nil {
		t.Fatal(err)
	}

	sys := q.Metrics().System()
	if avg, err := sys.Avg("cpu_percent"); err != nil || avg != 50 {
		t.Errorf("avg = %v (%v), want 50", avg, err)
	}
	if lo, err := sys.Min("cpu_percent"); err != nil || lo != 30 {
		t.Errorf("min = %v (%v), want 30", lo, err)
	}
	if hi, err := sys.Max("cpu_percent"); err != nil || hi != 70 {
		t.Errorf("max = %v (%v), want 70", hi, err)
	}

	if _, err := sys.Avg("no_such_field"); err == nil {
		t.Error("unknown field should error")
	}
	if _, err := sys.Avg("memory_percent"); !IsNoRows(err) {
		t.Errorf("unsampled field error = %v, want no-rows", err)
	}

	latest, err := sys.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if latest.Timestamp != base+300 {
		t.Errorf("latest ts = %d, want %d", latest.Timestamp, base+300)
	}
}

func TestIPOrdering(t *testing.T) {
	q, s := newTestQuery(t)

	seed := []model.IPReputation{
		{IP: "203.0.113.1", Type: model.IPTypePublic, FailedLoginCount: 6, BannedCount: 2, TotalEvents: 10},
		{IP: "203.0.113.2", Type: model.IPTypePublic, FailedLoginCount: 1, BannedCount: 0, TotalEvents: 500},
		{IP: "10.0.0.1", Type: model.IPTypePrivate, TotalEvents: 3},
	}
	for i := range seed {
		seed[i].Recompute()
		if err := s.UpsertIPReputation(&seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	byThreat, err := q.IPs().SortByThreat().All()
	if err != nil {
		t.Fatal(err)
	}
	if byThreat[0].IP != "203.0.113.1" {
		t.Errorf("threat order head = %s", byThreat[0].IP)
	}

	byActivity, err := q.IPs().SortByActivity().All()
	if err != nil {
		t.Fatal(err)
	}
	if byActivity[0].IP != "203.0.113.2" {
		t.Errorf("activity order head = %s", byActivity[0].IP)
	}

	// 10 + 30 + 40 = 80 for the first row; the rest sit below 70.
	high, err := q.IPs().HighThreat().Count()
	if err != nil {
		t.Fatal(err)
	}
	if high != 1 {
		t.Errorf("high threat = %d, want 1", high)
	}

	one, err := q.IPs().ForIP("10.0.0.1").First()
	if err != nil {
		t.Fatal(err)
	}
	if one.Type != model.IPTypePrivate {
		t.Errorf("for_ip type = %s", one.Type)
	}
}

func TestTraceAndErrorQueries(t *testing.T) {
	q, s := newTestQuery(t)
	base := time.Now().Unix() - 3600

	traces := []model.EventTrace{
		{Timestamp: base, Source: model.SourceAuth, SeverityScore: 50},
		{Timestamp: base + 10, Source: model.SourceAuth, SeverityScore: 85},
		{Timestamp: base + 20, Source: model.SourceDjango, SeverityScore: 95},
	}
	for i := range traces {
		if err := s.InsertEventTrace(&traces[i]); err != nil {
			t.Fatal(err)
		}
	}
	errTrace := model.ErrorTrace{
		Timestamp: base + 20, TraceID: traces[2].ID, Source: model.SourceDjango,
		ErrorType: "db_connection", Category: "database", Message: "boom",
	}
	if err := s.InsertErrorTrace(&errTrace); err != nil {
		t.Fatal(err)
	}

	critical, err := q.Traces().CriticalOnly().Count()
	if err != nil {
		t.Fatal(err)
	}
	if critical != 2 {
		t.Errorf("critical traces = %d, want 2", critical)
	}

	authHigh, err := q.Traces().BySource(model.SourceAuth).HighSeverity().Count()
	if err != nil {
		t.Fatal(err)
	}
	if authHigh != 1 {
		t.Errorf("auth high = %d, want 1", authHigh)
	}

	dbErrs, err := q.Errors().DatabaseErrors().Count()
	if err != nil {
		t.Fatal(err)
	}
	if dbErrs != 1 {
		t.Errorf("database errors = %d, want 1", dbErrs)
	}
	netErrs, err := q.Errors().NetworkErrors().Count()
	if err != nil {
		t.Fatal(err)
	}
	if netErrs != 0 {
		t.Errorf("network errors = %d, want 0", netErrs)
	}
}
