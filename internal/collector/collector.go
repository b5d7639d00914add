// Package collector defines the Sampler interface implemented by the system
// and network counter samplers. Each sampler produces one snapshot per tick;
// missing platform sources degrade to nil fields, never to errors.
package collector

import (
	"context"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// probeTimeout caps every platform probe. A sampler must answer or give up
// within this budget so it can never block past its tick interval.
const probeTimeout = 2 * time.Second

// Result is the tagged output of one Sample call: exactly one field is set,
// matching the sampler that produced it.
type Result struct {
	System  *model.SystemMetric
	Network *model.NetworkMetric
}

// Sampler gathers one numeric snapshot per tick.
type Sampler interface {
	// Name returns a unique identifier, e.g. "system_metrics".
	Name() string

	// Enabled reports whether configuration has this sampler turned on.
	Enabled() bool

	// Validate probes the underlying platform sources once and reports
	// whether the sampler can run here.
	Validate(ctx context.Context) error

	// Sample collects one snapshot. Fields whose source is unavailable are
	// left nil; only a total probe failure is an error.
	Sample(ctx context.Context) (*Result, error)
}

// metricSet answers "is this metric family wanted" against the configured
// list; an empty list means everything.
type metricSet map[string]bool

func newMetricSet(metrics []string) metricSet {
	if len(metrics) == 0 {
		return nil
	}
	set := make(metricSet, len(metrics))
	for _, m := range metrics {
		set[m] = true
	}
	return set
}

func (s metricSet) wants(name string) bool {
	if s == nil {
		return true
	}
	return s[name]
}
