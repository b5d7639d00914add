package collector

import (
	"testing"

	"github.com/shirou/gopsutil/v4/cpu"
	gopsnet "github.com/shirou/gopsutil/v4/net"
)

func TestCPUPercentFromDeltas(t *testing.T) {
	prev := cpu.TimesStat{User: 1000, System: 300, Idle: 8000, Iowait: 200}
	// 500 busy jiffies, 500 idle jiffies elapsed.
	cur := cpu.TimesStat{User: 1400, System: 400, Idle: 8450, Iowait: 250}

	pct, ok := cpuPercent(prev, cur)
	if !ok {
		t.Fatal("expected a percentage from advancing counters")
	}
	if pct != 50 {
		t.Errorf("cpu percent = %v, want 50", pct)
	}
}

func TestCPUPercentNoElapsedTime(t *testing.T) {
	same := cpu.TimesStat{User: 100, Idle: 100}
	if _, ok := cpuPercent(same, same); ok {
		t.Error("expected no percentage when no time elapsed")
	}
}

func TestCPUPercentClamped(t *testing.T) {
	// Idle counter jumping backwards (counter reset) must not escape [0, 100].
	prev := cpu.TimesStat{User: 100, Idle: 1000}
	cur := cpu.TimesStat{User: 200, Idle: 10}
	pct, ok := cpuPercent(prev, cur)
	if ok && (pct < 0 || pct > 100) {
		t.Errorf("cpu percent = %v, escaped [0, 100]", pct)
	}
}

func TestCountStates(t *testing.T) {
	conns := []gopsnet.ConnectionStat{
		{Status: "ESTABLISHED"},
		{Status: "ESTABLISHED"},
		{Status: "LISTEN"},
		{Status: "TIME_WAIT"},
		{Status: "CLOSE_WAIT"}, // not counted
	}
	est, listen, tw := countStates(conns)
	if est != 2 || listen != 1 || tw != 1 {
		t.Errorf("states = %d/%d/%d, want 2/1/1", est, listen, tw)
	}
}

func TestMetricSet(t *testing.T) {
	all := newMetricSet(nil)
	if !all.wants("cpu") || !all.wants("anything") {
		t.Error("empty set should want everything")
	}

	some := newMetricSet([]string{"cpu", "load"})
	if !some.wants("cpu") || some.wants("disk") {
		t.Error("explicit set should filter")
	}
}

func TestSamplerIdentity(t *testing.T) {
	sys := NewSystemSampler(true, nil, "", nil)
	if sys.Name() != "system_metrics" || !sys.Enabled() {
		t.Errorf("system sampler identity wrong: %s enabled=%v", sys.Name(), sys.Enabled())
	}
	netw := NewNetworkSampler(false, nil, nil)
	if netw.Name() != "network_metrics" || netw.Enabled() {
		t.Errorf("network sampler identity wrong: %s enabled=%v", netw.Name(), netw.Enabled())
	}
}
