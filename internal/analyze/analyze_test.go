package analyze

import (
	"testing"
	"time"

	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/detect"
	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	d := detect.New(s, cfg.Query.Thresholds, nil)
	return New(s, d, nil), s
}

func TestHealthyOnEmptyStore(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	report := a.SystemHealth(24)
	if report.HealthScore != 100 {
		t.Errorf("health = %d, want 100", report.HealthScore)
	}
	if report.Status != model.StatusHealthy {
		t.Errorf("status = %s, want healthy", report.Status)
	}
	if report.TotalIssues != 0 {
		t.Errorf("issues = %d", report.TotalIssues)
	}
}

func TestHealthDegradesWithIssues(t *testing.T) {
	a, s := newTestAnalyzer(t)
	base := time.Now().Unix() - 1800

	// One critical disk alert drags performance down.
	pct := 100.0
	if err := s.InsertSystemMetric(&model.SystemMetric{Timestamp: base, DiskPercent: &pct}); err != nil {
		t.Fatal(err)
	}

	report := a.SystemHealth(24)
	if report.HealthScore >= 100 {
		t.Errorf("health = %d, want < 100", report.HealthScore)
	}
	if report.ComponentScores["performance"] >= 100 {
		t.Errorf("performance sub-score = %d, want < 100", report.ComponentScores["performance"])
	}
	if report.ComponentScores["security"] != 100 {
		t.Errorf("security sub-score = %d, want untouched 100", report.ComponentScores["security"])
	}
	if len(report.TopIssues) == 0 || len(report.Recommendations) == 0 {
		t.Error("report should carry top issues and recommendations")
	}
}

func TestSecurityPostureRisk(t *testing.T) {
	a, s := newTestAnalyzer(t)
	base := time.Now().Unix() - 1800

	// One brute-force group (6 failed logins) plus 4 stray failures.
	for i := 0; i < 6; i++ {
		if err := s.InsertLogEvent(&model.LogEvent{
			Timestamp: base + int64(i)*2, Source: model.SourceAuth,
			Message: "Failed password", Level: model.LevelWarning,
			Action: model.ActionFailedLogin, IP: "203.0.113.42", User: "root",
		}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 4; i++ {
		if err := s.InsertLogEvent(&model.LogEvent{
			Timestamp: base + 100 + int64(i), Source: model.SourceAuth,
			Message: "Failed password", Level: model.LevelWarning,
			Action: model.ActionFailedLogin, IP: "", User: "guest",
		}); err != nil {
			t.Fatal(err)
		}
	}

	report, err := a.SecurityPosture(24)
	if err != nil {
		t.Fatal(err)
	}
	if report.BruteForceCount != 1 {
		t.Errorf("brute force groups = %d, want 1", report.BruteForceCount)
	}
	if report.FailedLoginCount != 10 {
		t.Errorf("failed logins = %d, want 10", report.FailedLoginCount)
	}
	// 15*1 + min(30, 10/10) = 16 -> good is out of reach only at >= 20.
	if report.RiskScore != 16 {
		t.Errorf("risk = %v, want 16", report.RiskScore)
	}
	if report.Posture != model.PostureGood {
		t.Errorf("posture = %s, want good", report.Posture)
	}
}

func TestErrorTrendWorsening(t *testing.T) {
	a, s := newTestAnalyzer(t)
	now := time.Now().Unix()

	// Days 0..6 carry 10 errors, days 7..13 carry 30.
	insertDailyErrors := func(dayOffsets []int64, perDay int) {
		for _, day := range dayOffsets {
			for i := 0; i < perDay; i++ {
				ts := now - day*86400 + int64(i)*60
				if err := s.InsertLogEvent(&model.LogEvent{
					Timestamp: ts, Source: model.SourceSyslog,
					Message: "error", Level: model.LevelError,
				}); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	insertDailyErrors([]int64{13, 12, 11, 10, 9}, 2)   // first half: 10
	insertDailyErrors([]int64{6, 5, 4, 3, 2, 1}, 5)    // second half: 30

	report, err := a.ErrorTrends(14)
	if err != nil {
		t.Fatal(err)
	}
	if report.Trend != model.TrendWorsening {
		t.Errorf("trend = %s, want worsening", report.Trend)
	}
	if report.FirstHalfCount != 10 || report.SecondHalfCount != 30 {
		t.Errorf("halves = %d/%d, want 10/30", report.FirstHalfCount, report.SecondHalfCount)
	}
	if report.SecondHalfRate <= report.FirstHalfRate {
		t.Errorf("rates = %v/%v", report.FirstHalfRate, report.SecondHalfRate)
	}
}

func TestErrorTrendStableWhenQuiet(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	report, err := a.ErrorTrends(14)
	if err != nil {
		t.Fatal(err)
	}
	if report.Trend != model.TrendStable || report.TotalErrors != 0 {
		t.Errorf("report = %+v, want stable/0", report)
	}
}

func TestTrendReportStatistics(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	ts := []int64{1, 2, 3, 4, 5}
	r := trendReport("cpu_percent", 7, ts, values)

	if r.Min != 10 || r.Max != 50 || r.Avg != 30 || r.Median != 30 {
		t.Errorf("stats = min %v max %v avg %v median %v", r.Min, r.Max, r.Avg, r.Median)
	}
	if r.Slope != 10 {
		t.Errorf("slope = %v, want 10", r.Slope)
	}
	if r.Direction != model.TrendIncreasing {
		t.Errorf("direction = %s, want increasing", r.Direction)
	}
	// Perfect linear fit.
	if r.Strength != 1 {
		t.Errorf("strength = %v, want 1", r.Strength)
	}
}

func TestTrendReportStableAndAnomalies(t *testing.T) {
	values := make([]float64, 40)
	ts := make([]int64, 40)
	for i := range values {
		values[i] = 50
		ts[i] = int64(i)
	}
	// Two outliers placed symmetrically around the index mean so the fitted
	// slope stays exactly zero.
	values[10] = 500
	values[29] = 500

	r := trendReport("memory_percent", 7, ts, values)
	if r.Direction != model.TrendStable {
		t.Errorf("direction = %s, want stable for flat data", r.Direction)
	}
	if len(r.Anomalies) != 2 {
		t.Errorf("anomalies = %+v, want the two outliers", r.Anomalies)
	}
}

func TestTrendAnomaliesCapped(t *testing.T) {
	// Alternate wildly so many points sit beyond two sigmas.
	var values []float64
	var ts []int64
	for i := 0; i < 200; i++ {
		v := 50.0
		if i%10 == 0 {
			v = 5000
		}
		values = append(values, v)
		ts = append(ts, int64(i))
	}
	r := trendReport("load_1min", 7, ts, values)
	if len(r.Anomalies) > 10 {
		t.Errorf("anomalies = %d, want capped at 10", len(r.Anomalies))
	}
}
