// System sampler: CPU percent from consecutive cumulative CPU times, memory,
// root filesystem usage, disk IO counters, load averages. All via gopsutil so
// the same binary probes Linux and macOS hosts.
package collector

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
)

// SystemSampler produces one SystemMetric per tick. It keeps the previous
// cumulative CPU times so cpu_percent can be derived as a delta; the first
// call therefore reports cpu_percent as nil.
type SystemSampler struct {
	enabled  bool
	metrics  metricSet
	diskPath string
	log      *zap.SugaredLogger

	lastCPU *cpu.TimesStat
}

// NewSystemSampler builds the sampler. metrics selects the families to probe
// (cpu, memory, disk, load); empty means all. diskPath is the filesystem to
// report usage for, "/" when blank.
func NewSystemSampler(enabled bool, metrics []string, diskPath string, log *zap.SugaredLogger) *SystemSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &SystemSampler{
		enabled:  enabled,
		metrics:  newMetricSet(metrics),
		diskPath: diskPath,
		log:      log,
	}
}

func (s *SystemSampler) Name() string  { return "system_metrics" }
func (s *SystemSampler) Enabled() bool { return s.enabled }

// Validate checks that at least the CPU probe answers.
func (s *SystemSampler) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := cpu.TimesWithContext(ctx, false); err != nil {
		return errors.New("cpu probe unavailable on this host")
	}
	return nil
}

// Sample collects one snapshot. Individual probe failures are logged at
// debug and surface as nil fields.
func (s *SystemSampler) Sample(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	m := &model.SystemMetric{
		Timestamp:   time.Now().Unix(),
		ProbeMethod: "gopsutil",
	}

	if s.metrics.wants("cpu") {
		s.sampleCPU(ctx, m)
	}
	if s.metrics.wants("memory") {
		s.sampleMemory(ctx, m)
	}
	if s.metrics.wants("disk") {
		s.sampleDisk(ctx, m)
	}
	if s.metrics.wants("load") {
		s.sampleLoad(ctx, m)
	}

	return &Result{System: m}, ctx.Err()
}

func (s *SystemSampler) sampleCPU(ctx context.Context, m *model.SystemMetric) {
	count := int64(runtime.NumCPU())
	m.CPUCount = &count

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		s.log.Debugw("cpu probe failed", "err", err)
		return
	}
	cur := times[0]
	if s.lastCPU != nil {
		if pct, ok := cpuPercent(*s.lastCPU, cur); ok {
			m.CPUPercent = &pct
		}
	}
	s.lastCPU = &cur
}

// cpuPercent derives a busy percentage from two cumulative CPU time
// snapshots. Returns false when no time elapsed between them.
func cpuPercent(prev, cur cpu.TimesStat) (float64, bool) {
	prevTotal := cpuTotal(prev)
	curTotal := cpuTotal(cur)
	totalDelta := curTotal - prevTotal
	if totalDelta <= 0 {
		return 0, false
	}
	idleDelta := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	busy := (totalDelta - idleDelta) / totalDelta * 100
	if busy < 0 {
		busy = 0
	}
	if busy > 100 {
		busy = 100
	}
	return busy, true
}

func cpuTotal(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal + t.Guest + t.GuestNice
}

func (s *SystemSampler) sampleMemory(ctx context.Context, m *model.SystemMetric) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.log.Debugw("memory probe failed", "err", err)
		return
	}
	m.MemoryTotal = &vm.Total
	m.MemoryAvailable = &vm.Available
	m.MemoryPercent = &vm.UsedPercent
}

func (s *SystemSampler) sampleDisk(ctx context.Context, m *model.SystemMetric) {
	usage, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		s.log.Debugw("disk usage probe failed", "path", s.diskPath, "err", err)
	} else {
		m.DiskTotal = &usage.Total
		m.DiskUsed = &usage.Used
		m.DiskPercent = &usage.UsedPercent
	}

	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		s.log.Debugw("disk io probe failed", "err", err)
		return
	}
	var read, write uint64
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}
	m.DiskReadBytes = &read
	m.DiskWriteBytes = &write
}

func (s *SystemSampler) sampleLoad(ctx context.Context, m *model.SystemMetric) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		s.log.Debugw("load probe failed", "err", err)
		return
	}
	m.Load1Min = &avg.Load1
	m.Load5Min = &avg.Load5
	m.Load15Min = &avg.Load15
}
