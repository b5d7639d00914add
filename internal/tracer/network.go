package tracer

import (
	"context"
	"fmt"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"

	"github.com/avolkhov/logly/internal/model"
)

// NetworkTracer snapshots live TCP connections around a traced event.
type NetworkTracer struct{}

func NewNetworkTracer() *NetworkTracer { return &NetworkTracer{} }

// TraceIP returns current TCP connections whose remote address matches ip.
func (t *NetworkTracer) TraceIP(ctx context.Context, ip string) ([]model.NetworkTrace, error) {
	return t.trace(ctx, func(c gopsnet.ConnectionStat) bool {
		return c.Raddr.IP == ip
	})
}

// TracePort returns current TCP connections bound to the local port.
func (t *NetworkTracer) TracePort(ctx context.Context, port uint32) ([]model.NetworkTrace, error) {
	return t.trace(ctx, func(c gopsnet.ConnectionStat) bool {
		return c.Laddr.Port == port
	})
}

func (t *NetworkTracer) trace(ctx context.Context, keep func(gopsnet.ConnectionStat) bool) ([]model.NetworkTrace, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("connection snapshot: %w", err)
	}

	now := time.Now().Unix()
	var out []model.NetworkTrace
	for _, c := range conns {
		if !keep(c) {
			continue
		}
		out = append(out, model.NetworkTrace{
			Timestamp:  now,
			LocalAddr:  c.Laddr.IP,
			LocalPort:  c.Laddr.Port,
			RemoteAddr: c.Raddr.IP,
			RemotePort: c.Raddr.Port,
			State:      c.Status,
			PID:        c.Pid,
		})
	}
	return out, ctx.Err()
}
