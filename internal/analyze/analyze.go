// Package analyze composes detector output into scored reports.
package analyze

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/detect"
	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

// Component score weights for the composite health score.
const (
	weightSecurity    = 0.30
	weightPerformance = 0.25
	weightErrors      = 0.25
	weightNetwork     = 0.20
)

// Analyzer produces reports over one store.
type Analyzer struct {
	store    *store.Store
	detector *detect.Detector
	log      *zap.SugaredLogger
}

// New builds an analyzer sharing the given detector.
func New(s *store.Store, d *detect.Detector, log *zap.SugaredLogger) *Analyzer {
	if log == nil {
		log = logging.Discard()
	}
	return &Analyzer{store: s, detector: d, log: log}
}

// issueComponent buckets issue types into the four health components.
var issueComponent = map[string]string{
	model.IssueBruteForce:        "security",
	model.IssueHighThreatIP:      "security",
	model.IssueBannedIP:          "security",
	model.IssueSustainedCPU:      "performance",
	model.IssueSustainedMemory:   "performance",
	model.IssueDiskSpace:         "performance",
	model.IssueErrorSpike:        "errors",
	model.IssueRecurringError:    "errors",
	model.IssueCriticalError:     "errors",
	model.IssueConnectionAnomaly: "network",
	model.IssueNetworkErrorRate:  "network",
}

// componentRecommendations is what the report suggests when a component has
// at least one issue.
var componentRecommendations = map[string]string{
	"security":    "review authentication activity and confirm bans are effective",
	"performance": "investigate sustained resource pressure before it degrades service",
	"errors":      "triage recurring and spiking errors by source",
	"network":     "inspect interface health and connection patterns",
}

// SystemHealth runs all detectors over the trailing window and scores the
// result.
func (a *Analyzer) SystemHealth(hours int) *model.HealthReport {
	w := detect.LastHours(hours)
	issues := a.detector.DetectAll(w)

	totals := map[string]float64{}
	byBand := map[string]int{}
	for _, issue := range issues {
		component := issueComponent[issue.Type]
		totals[component] += issue.Severity
		byBand[issue.Band()]++
	}

	scores := map[string]int{}
	for _, component := range []string{"security", "performance", "errors", "network"} {
		scores[component] = subScore(totals[component])
	}

	composite := weightSecurity*float64(scores["security"]) +
		weightPerformance*float64(scores["performance"]) +
		weightErrors*float64(scores["errors"]) +
		weightNetwork*float64(scores["network"])
	health := int(composite + 0.5)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Severity > issues[j].Severity })
	top := issues
	if len(top) > 5 {
		top = top[:5]
	}

	var recs []string
	for _, component := range []string{"security", "performance", "errors", "network"} {
		if totals[component] > 0 {
			recs = append(recs, componentRecommendations[component])
		}
	}

	return &model.HealthReport{
		GeneratedAt:     time.Now().Unix(),
		WindowHours:     hours,
		HealthScore:     health,
		Status:          model.HealthStatus(health),
		ComponentScores: scores,
		IssuesByBand:    byBand,
		TotalIssues:     len(issues),
		TopIssues:       top,
		Recommendations: recs,
	}
}

// subScore converts a component's total issue severity into a [0, 100] score.
func subScore(totalSeverity float64) int {
	score := 100 - totalSeverity/5
	if score < 0 {
		score = 0
	}
	return int(score)
}

// SecurityPosture summarizes the attack surface activity in the window.
func (a *Analyzer) SecurityPosture(hours int) (*model.SecurityReport, error) {
	w := detect.LastHours(hours)

	bruteForce, err := a.detector.DetectBruteForce(w)
	if err != nil {
		return nil, err
	}
	highThreat, err := a.detector.DetectHighThreatIPs(w)
	if err != nil {
		return nil, err
	}
	failedLogins, err := a.store.CountLogEvents(w.Start, w.End, model.ActionFailedLogin)
	if err != nil {
		return nil, err
	}
	bans, err := a.store.CountLogEvents(w.Start, w.End, model.ActionBan)
	if err != nil {
		return nil, err
	}

	risk := 10*float64(len(highThreat)) + 15*float64(len(bruteForce)) + minF(30, float64(failedLogins)/10)
	if risk > 100 {
		risk = 100
	}

	issues := append(append([]model.Issue{}, bruteForce...), highThreat...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Severity > issues[j].Severity })

	return &model.SecurityReport{
		GeneratedAt:       time.Now().Unix(),
		WindowHours:       hours,
		RiskScore:         risk,
		Posture:           model.SecurityPosture(risk),
		BruteForceCount:   len(bruteForce),
		HighThreatIPCount: len(highThreat),
		FailedLoginCount:  failedLogins,
		BanCount:          bans,
		Issues:            issues,
	}, nil
}

// ErrorTrends splits the window at its midpoint and compares error volume
// between the halves.
func (a *Analyzer) ErrorTrends(days int) (*model.ErrorTrendReport, error) {
	now := time.Now().Unix()
	start := now - int64(days)*86400
	mid := (start + now) / 2

	events, err := a.store.GetLogEvents(start, now, "", "", 0)
	if err != nil {
		return nil, err
	}

	var firstHalf, secondHalf int64
	for _, e := range events {
		if !e.IsError() {
			continue
		}
		if e.Timestamp < mid {
			firstHalf++
		} else {
			secondHalf++
		}
	}

	halfHours := float64(mid-start) / 3600
	trend := model.TrendStable
	switch {
	case firstHalf == 0 && secondHalf > 0:
		trend = model.TrendWorsening
	case firstHalf > 0:
		ratio := float64(secondHalf) / float64(firstHalf)
		if ratio > 1.2 {
			trend = model.TrendWorsening
		} else if ratio < 0.8 {
			trend = model.TrendImproving
		}
	}

	return &model.ErrorTrendReport{
		GeneratedAt:     now,
		WindowDays:      days,
		TotalErrors:     firstHalf + secondHalf,
		FirstHalfCount:  firstHalf,
		SecondHalfCount: secondHalf,
		FirstHalfRate:   float64(firstHalf) / halfHours,
		SecondHalfRate:  float64(secondHalf) / halfHours,
		Trend:           trend,
	}, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
