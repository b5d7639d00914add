package detect

import (
	"fmt"
	"math"

	"github.com/avolkhov/logly/internal/model"
)

// DetectConnectionAnomalies flags established-connection counts more than
// three standard deviations from the window mean. Fewer than 10 points is not
// enough signal to call anything anomalous.
func (d *Detector) DetectConnectionAnomalies(w Window) ([]model.Issue, error) {
	metrics, err := d.store.GetNetworkMetrics(w.Start, w.End, 0)
	if err != nil {
		return nil, err
	}

	var series []point
	for i := len(metrics) - 1; i >= 0; i-- {
		if v := metrics[i].ConnectionsEstablished; v != nil {
			series = append(series, point{ts: metrics[i].Timestamp, value: float64(*v)})
		}
	}
	if len(series) < 10 {
		return nil, nil
	}

	mean, stddev := meanStddev(series)
	if stddev == 0 || mean == 0 {
		return nil, nil
	}

	var issues []model.Issue
	for _, p := range series {
		dev := math.Abs(p.value - mean)
		if dev <= 3*stddev {
			continue
		}
		deviationPct := dev / mean * 100
		issues = append(issues, model.Issue{
			Type:     model.IssueConnectionAnomaly,
			Severity: model.ClampScore(40 + deviationPct/10),
			Title:    "Connection count anomaly",
			Description: fmt.Sprintf("%v established connections against a mean of %.1f (%.0f%% deviation)",
				p.value, mean, deviationPct),
			FirstSeen:       p.ts,
			LastSeen:        p.ts,
			OccurrenceCount: 1,
			Recommendations: []string{
				"check for connection floods or leaking clients",
				"correlate with traffic and deploy timing",
			},
			Details: map[string]any{
				"connections":       p.value,
				"mean":              mean,
				"deviation_percent": deviationPct,
			},
		})
	}
	return issues, nil
}

// DetectNetworkErrorRate alerts when interface errors plus drops exceed the
// configured percentage of packets for any sample in the window.
func (d *Detector) DetectNetworkErrorRate(w Window) ([]model.Issue, error) {
	metrics, err := d.store.GetNetworkMetrics(w.Start, w.End, 0)
	if err != nil {
		return nil, err
	}

	threshold := d.thresholds.NetworkErrorRate
	var issues []model.Issue
	for i := len(metrics) - 1; i >= 0; i-- {
		m := metrics[i]
		if m.PacketsSent == nil || m.PacketsRecv == nil {
			continue
		}
		packets := *m.PacketsSent + *m.PacketsRecv
		if packets == 0 {
			continue
		}
		var errs uint64
		for _, v := range []*uint64{m.ErrorsIn, m.ErrorsOut, m.DropsIn, m.DropsOut} {
			if v != nil {
				errs += *v
			}
		}
		rate := float64(errs) / float64(packets) * 100
		if rate < threshold {
			continue
		}
		issues = append(issues, model.Issue{
			Type:     model.IssueNetworkErrorRate,
			Severity: model.ClampScore(50 + 5*rate),
			Title:    "High network error rate",
			Description: fmt.Sprintf("%.2f%% of packets errored or dropped (threshold %.1f%%)",
				rate, threshold),
			FirstSeen:       m.Timestamp,
			LastSeen:        m.Timestamp,
			OccurrenceCount: 1,
			Recommendations: []string{
				"check interface statistics and cabling or virtual NIC health",
				"look for MTU mismatches and driver errors",
			},
			Details: map[string]any{"error_rate": rate, "threshold": threshold},
		})
	}
	return issues, nil
}

func meanStddev(series []point) (float64, float64) {
	var sum float64
	for _, p := range series {
		sum += p.value
	}
	mean := sum / float64(len(series))

	var sq float64
	for _, p := range series {
		d := p.value - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(series)))
}
