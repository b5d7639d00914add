// Network sampler: cumulative interface counters summed across interfaces,
// plus a TCP connection-state census. Counters are stored cumulative; the
// aggregator turns them into deltas.
package collector

import (
	"context"
	"errors"
	"strings"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
)

// NetworkSampler produces one NetworkMetric per tick.
type NetworkSampler struct {
	enabled bool
	metrics metricSet
	log     *zap.SugaredLogger
}

// NewNetworkSampler builds the sampler. metrics selects the families to
// probe (io, connections); empty means all.
func NewNetworkSampler(enabled bool, metrics []string, log *zap.SugaredLogger) *NetworkSampler {
	if log == nil {
		log = logging.Discard()
	}
	return &NetworkSampler{enabled: enabled, metrics: newMetricSet(metrics), log: log}
}

func (s *NetworkSampler) Name() string  { return "network_metrics" }
func (s *NetworkSampler) Enabled() bool { return s.enabled }

// Validate checks that the interface counter probe answers.
func (s *NetworkSampler) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := gopsnet.IOCountersWithContext(ctx, false); err != nil {
		return errors.New("network counter probe unavailable on this host")
	}
	return nil
}

// Sample collects one snapshot. The connection census needs procfs access
// and may be unavailable in confined environments; it degrades to nil.
func (s *NetworkSampler) Sample(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	m := &model.NetworkMetric{
		Timestamp:   time.Now().Unix(),
		ProbeMethod: "gopsutil",
	}

	if s.metrics.wants("io") {
		s.sampleIO(ctx, m)
	}
	if s.metrics.wants("connections") {
		s.sampleConnections(ctx, m)
	}

	return &Result{Network: m}, ctx.Err()
}

func (s *NetworkSampler) sampleIO(ctx context.Context, m *model.NetworkMetric) {
	// pernic=false returns one pre-summed "all" row.
	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		s.log.Debugw("interface counter probe failed", "err", err)
		return
	}
	c := counters[0]
	m.BytesSent = &c.BytesSent
	m.BytesRecv = &c.BytesRecv
	m.PacketsSent = &c.PacketsSent
	m.PacketsRecv = &c.PacketsRecv
	m.ErrorsIn = &c.Errin
	m.ErrorsOut = &c.Errout
	m.DropsIn = &c.Dropin
	m.DropsOut = &c.Dropout
}

func (s *NetworkSampler) sampleConnections(ctx context.Context, m *model.NetworkMetric) {
	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		s.log.Debugw("connection census failed", "err", err)
		return
	}
	established, listen, timeWait := countStates(conns)
	m.ConnectionsEstablished = &established
	m.ConnectionsListen = &listen
	m.ConnectionsTimeWait = &timeWait
}

func countStates(conns []gopsnet.ConnectionStat) (established, listen, timeWait int64) {
	for _, c := range conns {
		switch strings.ToUpper(c.Status) {
		case "ESTABLISHED":
			established++
		case "LISTEN":
			listen++
		case "TIME_WAIT":
			timeWait++
		}
	}
	return established, listen, timeWait
}
