package model

// Health statuses derived from the composite health score.
const (
	StatusHealthy  = "healthy"  // score >= 80
	StatusDegraded = "degraded" // score >= 50
	StatusCritical = "critical" // score < 50
)

// Security postures derived from the risk score.
const (
	PostureGood     = "good"     // risk < 20
	PostureFair     = "fair"     // risk < 50
	PosturePoor     = "poor"     // risk < 80
	PostureCritical = "critical" // risk >= 80
)

// Trend directions.
const (
	TrendWorsening = "worsening"
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// HealthReport is the composite scored view over all detectors.
type HealthReport struct {
	GeneratedAt     int64            `json:"generated_at"`
	WindowHours     int              `json:"window_hours"`
	HealthScore     int              `json:"health_score"`
	Status          string           `json:"status"`
	ComponentScores map[string]int   `json:"component_scores"`
	IssuesByBand    map[string]int   `json:"issues_by_band"`
	TotalIssues     int              `json:"total_issues"`
	TopIssues       []Issue          `json:"top_issues,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// HealthStatus maps a health score to its label.
func HealthStatus(score int) string {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	default:
		return StatusCritical
	}
}

// SecurityReport summarizes the security posture over a window.
type SecurityReport struct {
	GeneratedAt       int64   `json:"generated_at"`
	WindowHours       int     `json:"window_hours"`
	RiskScore         float64 `json:"risk_score"`
	Posture           string  `json:"posture"`
	BruteForceCount   int     `json:"brute_force_count"`
	HighThreatIPCount int     `json:"high_threat_ip_count"`
	FailedLoginCount  int64   `json:"failed_login_count"`
	BanCount          int64   `json:"ban_count"`
	Issues            []Issue `json:"issues,omitempty"`
}

// SecurityPosture maps a risk score to its label.
func SecurityPosture(risk float64) string {
	switch {
	case risk < 20:
		return PostureGood
	case risk < 50:
		return PostureFair
	case risk < 80:
		return PosturePoor
	default:
		return PostureCritical
	}
}

// ErrorTrendReport compares error volume across the two halves of a window.
type ErrorTrendReport struct {
	GeneratedAt     int64   `json:"generated_at"`
	WindowDays      int     `json:"window_days"`
	TotalErrors     int64   `json:"total_errors"`
	FirstHalfCount  int64   `json:"first_half_count"`
	SecondHalfCount int64   `json:"second_half_count"`
	FirstHalfRate   float64 `json:"first_half_rate"`  // errors per hour
	SecondHalfRate  float64 `json:"second_half_rate"` // errors per hour
	Trend           string  `json:"trend"`
}

// TrendAnomaly is one sample beyond two standard deviations from the mean.
type TrendAnomaly struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
	Deviation float64 `json:"deviation"` // in sigmas
}

// TrendReport describes one metric's behavior over a multi-day window.
type TrendReport struct {
	Metric      string         `json:"metric"`
	WindowDays  int            `json:"window_days"`
	SampleCount int            `json:"sample_count"`
	Min         float64        `json:"min"`
	Max         float64        `json:"max"`
	Avg         float64        `json:"avg"`
	Median      float64        `json:"median"`
	StdDev      float64        `json:"std_dev"`
	Slope       float64        `json:"slope"`
	Direction   string         `json:"direction"`
	Strength    float64        `json:"strength"` // sqrt(R^2), in [0, 1]
	Anomalies   []TrendAnomaly `json:"anomalies,omitempty"`
}
