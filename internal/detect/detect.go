// Package detect analyzes stored telemetry for operational and security
// issues. Detectors are stateless reads over the store; they never write.
package detect

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

// Window bounds a detection pass.
type Window struct {
	Start int64
	End   int64
}

// LastHours is the window covering the trailing n hours.
func LastHours(n int) Window {
	now := time.Now().Unix()
	return Window{Start: now - int64(n)*3600, End: now}
}

// Hours returns the window length in hours, at least 1.
func (w Window) Hours() float64 {
	h := float64(w.End-w.Start) / 3600
	if h < 1 {
		return 1
	}
	return h
}

// Detector runs the issue checks against one store.
type Detector struct {
	store      *store.Store
	thresholds config.Thresholds
	log        *zap.SugaredLogger
}

// New builds a detector with the configured thresholds.
func New(s *store.Store, thresholds config.Thresholds, log *zap.SugaredLogger) *Detector {
	if log == nil {
		log = logging.Discard()
	}
	return &Detector{store: s, thresholds: thresholds, log: log}
}

// DetectAll runs every detector over the window and returns the combined
// issue list. A single failing detector is logged and skipped so one bad
// query cannot blank the whole report.
func (d *Detector) DetectAll(w Window) []model.Issue {
	checks := []struct {
		name string
		fn   func(Window) ([]model.Issue, error)
	}{
		{"brute_force", d.DetectBruteForce},
		{"high_threat_ips", d.DetectHighThreatIPs},
		{"banned_ips", d.DetectBannedIPs},
		{"sustained_cpu", d.DetectSustainedCPU},
		{"sustained_memory", d.DetectSustainedMemory},
		{"disk_space", d.DetectDiskSpace},
		{"error_spikes", d.DetectErrorSpikes},
		{"recurring_errors", d.DetectRecurringErrors},
		{"critical_traces", d.DetectCriticalTraces},
		{"connection_anomalies", d.DetectConnectionAnomalies},
		{"network_error_rate", d.DetectNetworkErrorRate},
	}

	var issues []model.Issue
	for _, c := range checks {
		found, err := c.fn(w)
		if err != nil {
			d.log.Warnw("detector failed", "detector", c.name, "err", err)
			continue
		}
		issues = append(issues, found...)
	}
	return issues
}

func spanString(first, last int64) string {
	return fmt.Sprintf("%ds", last-first)
}
