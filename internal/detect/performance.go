package detect

import (
	"fmt"

	"github.com/avolkhov/logly/internal/model"
)

type point struct {
	ts    int64
	value float64
}

// run is a maximal contiguous stretch of samples at or above a threshold.
type run struct {
	points []point
}

func (r run) first() int64 { return r.points[0].ts }
func (r run) last() int64  { return r.points[len(r.points)-1].ts }

func (r run) peak() float64 {
	p := r.points[0].value
	for _, pt := range r.points[1:] {
		if pt.value > p {
			p = pt.value
		}
	}
	return p
}

// findRuns walks a time-ascending series and collects the maximal runs of
// values >= threshold.
func findRuns(series []point, threshold float64) []run {
	var runs []run
	var cur []point
	for _, p := range series {
		if p.value >= threshold {
			cur = append(cur, p)
			continue
		}
		if len(cur) > 0 {
			runs = append(runs, run{points: cur})
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, run{points: cur})
	}
	return runs
}

// DetectSustainedCPU reports runs of high CPU that are both long enough and
// dense enough to rule out a single noisy sample.
func (d *Detector) DetectSustainedCPU(w Window) ([]model.Issue, error) {
	series, err := d.systemSeries(w, func(m *model.SystemMetric) *float64 { return m.CPUPercent })
	if err != nil {
		return nil, err
	}
	return d.sustainedIssues(series, d.thresholds.HighCPUPercent, model.IssueSustainedCPU, "CPU"), nil
}

// DetectSustainedMemory is the memory counterpart of DetectSustainedCPU.
func (d *Detector) DetectSustainedMemory(w Window) ([]model.Issue, error) {
	series, err := d.systemSeries(w, func(m *model.SystemMetric) *float64 { return m.MemoryPercent })
	if err != nil {
		return nil, err
	}
	return d.sustainedIssues(series, d.thresholds.HighMemoryPercent, model.IssueSustainedMemory, "memory"), nil
}

// systemSeries extracts one field as a time-ascending series, skipping rows
// where the field was not sampled.
func (d *Detector) systemSeries(w Window, field func(*model.SystemMetric) *float64) ([]point, error) {
	metrics, err := d.store.GetSystemMetrics(w.Start, w.End, 0)
	if err != nil {
		return nil, err
	}
	// Store order is ts DESC; runs are found oldest-first.
	series := make([]point, 0, len(metrics))
	for i := len(metrics) - 1; i >= 0; i-- {
		if v := field(&metrics[i]); v != nil {
			series = append(series, point{ts: metrics[i].Timestamp, value: *v})
		}
	}
	return series, nil
}

// sustainedIssues applies the run rule: at least 3 samples and at least the
// configured duration.
func (d *Detector) sustainedIssues(series []point, threshold float64, issueType, label string) []model.Issue {
	minDuration := int64(d.thresholds.SustainedDurationMin)
	var issues []model.Issue
	for _, r := range findRuns(series, threshold) {
		duration := r.last() - r.first()
		if len(r.points) < 3 || duration < minDuration {
			continue
		}
		peak := r.peak()
		issues = append(issues, model.Issue{
			Type:     issueType,
			Severity: model.ClampScore(60 + (peak - threshold)),
			Title:    fmt.Sprintf("Sustained high %s usage", label),
			Description: fmt.Sprintf("%s at or above %.0f%% for %s (peak %.1f%%)",
				label, threshold, spanString(r.first(), r.last()), peak),
			FirstSeen:       r.first(),
			LastSeen:        r.last(),
			OccurrenceCount: int64(len(r.points)),
			Recommendations: []string{
				fmt.Sprintf("identify the processes driving %s usage", label),
				"check for a runaway workload or undersized host",
			},
			Details: map[string]any{
				"peak":               peak,
				"threshold":          threshold,
				"sustained_duration": duration,
			},
		})
	}
	return issues
}

// DetectDiskSpace checks the most recent sample only; disk usage moves slowly
// and a historical scan would just repeat the same alert.
func (d *Detector) DetectDiskSpace(w Window) ([]model.Issue, error) {
	metrics, err := d.store.GetSystemMetrics(w.Start, w.End, 1)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 || metrics[0].DiskPercent == nil {
		return nil, nil
	}
	latest := metrics[0]
	pct := *latest.DiskPercent
	threshold := d.thresholds.DiskSpaceCritical
	if pct < threshold {
		return nil, nil
	}
	return []model.Issue{{
		Type:            model.IssueDiskSpace,
		Severity:        model.ClampScore(70 + 3*(pct-threshold)),
		Title:           "Disk space critical",
		Description:     fmt.Sprintf("disk usage at %.1f%% (threshold %.0f%%)", pct, threshold),
		FirstSeen:       latest.Timestamp,
		LastSeen:        latest.Timestamp,
		OccurrenceCount: 1,
		Recommendations: []string{
			"remove or compress old logs and artifacts",
			"extend the volume before it fills",
		},
		Details: map[string]any{"disk_percent": pct, "threshold": threshold},
	}}, nil
}
