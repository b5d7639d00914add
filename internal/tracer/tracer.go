// Package tracer enriches log events on demand. Nothing here runs on the
// ingest path; detectors and reports request traces explicitly so enrichment
// cost stays bounded.
package tracer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
)

// TraceStore is the slice of the store the tracer persists into.
type TraceStore interface {
	InsertEventTrace(t *model.EventTrace) error
	InsertProcessTraces(traces []model.ProcessTrace) error
	InsertNetworkTraces(traces []model.NetworkTrace) error
	InsertErrorTrace(t *model.ErrorTrace) error
	GetIPReputation(ip string) (*model.IPReputation, error)
	UpsertIPReputation(rep *model.IPReputation) error
}

// TracerCollector bundles the individual tracers behind one entry point.
// Each tracer is independently usable; TraceEvent runs the ones that apply
// to the event and persists the results.
type TracerCollector struct {
	Event   *EventTracer
	Process *ProcessTracer
	Network *NetworkTracer
	IP      *IPTracer
	Error   *ErrorTracer

	store TraceStore
	log   *zap.SugaredLogger
}

// New builds a collector over the given store.
func New(store TraceStore, log *zap.SugaredLogger) *TracerCollector {
	if log == nil {
		log = logging.Discard()
	}
	return &TracerCollector{
		Event:   NewEventTracer(),
		Process: NewProcessTracer(),
		Network: NewNetworkTracer(),
		IP:      NewIPTracer(store),
		Error:   NewErrorTracer(),
		store:   store,
		log:     log,
	}
}

// TraceEvent enriches one event and persists the trace with its side records.
// Individual tracer failures degrade to a thinner trace; only the trace
// insert itself is fatal.
func (c *TracerCollector) TraceEvent(ctx context.Context, e *model.LogEvent) (*model.EventTrace, error) {
	trace := c.Event.Trace(e)

	if e.IsError() {
		if et := c.Error.Trace(e); et != nil {
			trace.SeverityScore = model.ClampScore(trace.SeverityScore + et.SeverityBump)
			if len(et.RootCauseHints) > 0 {
				trace.RootCause = et.RootCauseHints[0]
			}
			trace.TracersUsed = append(trace.TracersUsed, "error")
			defer func(et *model.ErrorTrace) {
				et.TraceID = trace.ID
				if err := c.store.InsertErrorTrace(et); err != nil {
					c.log.Warnw("error trace not persisted", "err", err)
				}
			}(et)
		}
	}

	if e.IP != "" {
		if rep, err := c.IP.Analyze(e.IP); err != nil {
			c.log.Warnw("ip analysis failed", "ip", e.IP, "err", err)
		} else if rep != nil {
			trace.TracersUsed = append(trace.TracersUsed, "ip")
			if rep.ThreatScore > trace.SeverityScore {
				trace.SeverityScore = rep.ThreatScore
			}
		}
	}

	if err := c.store.InsertEventTrace(trace); err != nil {
		return nil, fmt.Errorf("persist trace: %w", err)
	}

	if e.Service != "" {
		if procs, err := c.Process.Trace(ctx, e.Service); err != nil {
			c.log.Debugw("process trace failed", "service", e.Service, "err", err)
		} else if len(procs) > 0 {
			stampTraceID(procs, trace.ID)
			trace.TracersUsed = append(trace.TracersUsed, "process")
			if err := c.store.InsertProcessTraces(procs); err != nil {
				c.log.Warnw("process traces not persisted", "err", err)
			}
		}
	}

	if e.IP != "" {
		if conns, err := c.Network.TraceIP(ctx, e.IP); err != nil {
			c.log.Debugw("network trace failed", "ip", e.IP, "err", err)
		} else if len(conns) > 0 {
			for i := range conns {
				conns[i].TraceID = trace.ID
			}
			trace.TracersUsed = append(trace.TracersUsed, "network")
			if err := c.store.InsertNetworkTraces(conns); err != nil {
				c.log.Warnw("network traces not persisted", "err", err)
			}
		}
	}

	return trace, nil
}

// TraceBatch enriches a slice of events, skipping ones that fail.
func (c *TracerCollector) TraceBatch(ctx context.Context, events []*model.LogEvent) []*model.EventTrace {
	traces := make([]*model.EventTrace, 0, len(events))
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			break
		}
		t, err := c.TraceEvent(ctx, e)
		if err != nil {
			c.log.Warnw("trace failed", "source", e.Source, "err", err)
			continue
		}
		traces = append(traces, t)
	}
	return traces
}

func stampTraceID(procs []model.ProcessTrace, id int64) {
	now := time.Now().Unix()
	for i := range procs {
		procs[i].TraceID = id
		if procs[i].Timestamp == 0 {
			procs[i].Timestamp = now
		}
	}
}
