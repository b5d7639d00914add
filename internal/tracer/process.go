package tracer

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/avolkhov/logly/internal/model"
)

// probeTimeout caps the platform scans a tracer performs.
const probeTimeout = 2 * time.Second

// ProcessTracer resolves a service name to its live processes.
type ProcessTracer struct{}

func NewProcessTracer() *ProcessTracer { return &ProcessTracer{} }

// Trace scans the process table for processes whose name or cmdline contains
// the service name. Per-process field failures leave zero values; a process
// that disappears mid-scan is skipped.
func (t *ProcessTracer) Trace(ctx context.Context, service string) ([]model.ProcessTrace, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	needle := strings.ToLower(service)
	var out []model.ProcessTrace
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		if !strings.Contains(strings.ToLower(name), needle) &&
			!strings.Contains(strings.ToLower(cmdline), needle) {
			continue
		}

		pt := model.ProcessTrace{
			Timestamp: now,
			PID:       p.Pid,
			Name:      name,
			Cmdline:   cmdline,
		}
		if ppid, err := p.PpidWithContext(ctx); err == nil {
			pt.ParentPID = ppid
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			pt.MemoryRSS = mem.RSS
			pt.MemoryVM = mem.VMS
		}
		if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
			pt.CPUUtime = times.User
			pt.CPUStime = times.System
		}
		if threads, err := p.NumThreadsWithContext(ctx); err == nil {
			pt.Threads = threads
		}
		if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
			pt.ReadBytes = io.ReadBytes
			pt.WriteBytes = io.WriteBytes
		}
		out = append(out, pt)
	}
	return out, ctx.Err()
}
