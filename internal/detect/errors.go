package detect

import (
	"fmt"
	"sort"

	"github.com/avolkhov/logly/internal/model"
)

// DetectErrorSpikes buckets error events by (hour, source) and flags any
// source whose latest bucket runs a multiple of its own baseline. Sources
// with no history (baseline 0) or a thin latest bucket are skipped.
func (d *Detector) DetectErrorSpikes(w Window) ([]model.Issue, error) {
	events, err := d.store.GetLogEvents(w.Start, w.End, "", "", 0)
	if err != nil {
		return nil, err
	}

	// buckets[source][hourTS] = error count
	buckets := map[string]map[int64]int{}
	for _, e := range events {
		if !e.IsError() {
			continue
		}
		hour := model.HourStart(e.Timestamp)
		if buckets[e.Source] == nil {
			buckets[e.Source] = map[int64]int{}
		}
		buckets[e.Source][hour]++
	}

	sources := make([]string, 0, len(buckets))
	for s := range buckets {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	multiplier := d.thresholds.ErrorSpikeMultiplier
	var issues []model.Issue
	for _, source := range sources {
		hours := buckets[source]
		if len(hours) < 2 {
			continue // nothing to baseline against
		}
		var latestHour int64
		for h := range hours {
			if h > latestHour {
				latestHour = h
			}
		}
		latest := hours[latestHour]

		var sum, n int
		for h, c := range hours {
			if h == latestHour {
				continue
			}
			sum += c
			n++
		}
		baseline := float64(sum) / float64(n)
		if baseline <= 0 || latest < 10 {
			continue
		}
		if float64(latest) < baseline*multiplier {
			continue
		}

		factor := float64(latest) / baseline
		issues = append(issues, model.Issue{
			Type:     model.IssueErrorSpike,
			Severity: model.ClampScore(50 + 10*factor),
			Title:    fmt.Sprintf("Error spike in %s", source),
			Description: fmt.Sprintf("%s logged %d errors in the last hour against a baseline of %.1f/h (%.1fx)",
				source, latest, baseline, factor),
			FirstSeen:         latestHour,
			LastSeen:          latestHour + 3599,
			OccurrenceCount:   int64(latest),
			AffectedResources: []string{source},
			Recommendations: []string{
				fmt.Sprintf("inspect recent %s errors for a common cause", source),
				"correlate with deploys and upstream incidents",
			},
			Details: map[string]any{
				"spike_factor": factor,
				"baseline":     baseline,
				"latest_count": latest,
			},
		})
	}
	return issues, nil
}

// DetectRecurringErrors groups error events by their source:action signature
// and reports signatures repeating past the minimum occurrence count.
func (d *Detector) DetectRecurringErrors(w Window) ([]model.Issue, error) {
	events, err := d.store.GetLogEvents(w.Start, w.End, "", "", 0)
	if err != nil {
		return nil, err
	}

	const minOccurrences = 5

	type group struct {
		count     int
		firstSeen int64
		lastSeen  int64
		sample    string
	}
	groups := map[string]*group{}
	for _, e := range events {
		if !e.IsError() {
			continue
		}
		sig := fmt.Sprintf("%s:%s", e.Source, e.Action)
		g, ok := groups[sig]
		if !ok {
			g = &group{firstSeen: e.Timestamp, lastSeen: e.Timestamp, sample: e.Message}
			groups[sig] = g
		}
		g.count++
		if e.Timestamp < g.firstSeen {
			g.firstSeen = e.Timestamp
		}
		if e.Timestamp > g.lastSeen {
			g.lastSeen = e.Timestamp
		}
	}

	sigs := make([]string, 0, len(groups))
	for s := range groups {
		sigs = append(sigs, s)
	}
	sort.Strings(sigs)

	var issues []model.Issue
	for _, sig := range sigs {
		g := groups[sig]
		if g.count < minOccurrences {
			continue
		}
		issues = append(issues, model.Issue{
			Type:     model.IssueRecurringError,
			Severity: model.ClampScore(50 + 5*float64(g.count/minOccurrences)),
			Title:    fmt.Sprintf("Recurring error pattern %s", sig),
			Description: fmt.Sprintf("pattern %s repeated %d times; sample: %s",
				sig, g.count, g.sample),
			FirstSeen:         g.firstSeen,
			LastSeen:          g.lastSeen,
			OccurrenceCount:   int64(g.count),
			AffectedResources: []string{sig},
			Recommendations:   []string{"fix the underlying fault instead of silencing the log"},
			Details:           map[string]any{"pattern": sig},
		})
	}
	return issues, nil
}

// DetectCriticalTraces surfaces persisted event traces scored 80 or above.
func (d *Detector) DetectCriticalTraces(w Window) ([]model.Issue, error) {
	traces, err := d.store.GetTraces(w.Start, w.End, "", 80, 0)
	if err != nil {
		return nil, err
	}

	var issues []model.Issue
	for _, t := range traces {
		issues = append(issues, model.Issue{
			Type:            model.IssueCriticalError,
			Severity:        t.SeverityScore,
			Title:           fmt.Sprintf("Critical event in %s", t.Source),
			Description:     fmt.Sprintf("trace scored %.0f; root cause: %s", t.SeverityScore, orUnknown(t.RootCause)),
			FirstSeen:       t.Timestamp,
			LastSeen:        t.Timestamp,
			OccurrenceCount: 1,
			Recommendations: []string{"inspect the trace context and act on the root cause hint"},
			Details: map[string]any{
				"trace_id":   t.ID,
				"root_cause": t.RootCause,
			},
		})
	}
	return issues, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "not identified"
	}
	return s
}
