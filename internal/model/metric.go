// Package model defines the persisted entities and pure scoring functions
// shared by the collection pipeline, the store, and the analysis layer.
package model

// SystemMetric is one host resource sample. All fields except Timestamp are
// optional: a nil pointer means the counter was not sampled this tick.
type SystemMetric struct {
	ID        int64 `json:"id,omitempty"`
	Timestamp int64 `json:"timestamp"`

	CPUPercent *float64 `json:"cpu_percent,omitempty"`
	CPUCount   *int64   `json:"cpu_count,omitempty"`

	MemoryTotal     *uint64  `json:"memory_total,omitempty"`
	MemoryAvailable *uint64  `json:"memory_available,omitempty"`
	MemoryPercent   *float64 `json:"memory_percent,omitempty"`

	DiskTotal      *uint64  `json:"disk_total,omitempty"`
	DiskUsed       *uint64  `json:"disk_used,omitempty"`
	DiskPercent    *float64 `json:"disk_percent,omitempty"`
	DiskReadBytes  *uint64  `json:"disk_read_bytes,omitempty"`
	DiskWriteBytes *uint64  `json:"disk_write_bytes,omitempty"`

	Load1Min  *float64 `json:"load_1min,omitempty"`
	Load5Min  *float64 `json:"load_5min,omitempty"`
	Load15Min *float64 `json:"load_15min,omitempty"`

	// ProbeMethod records how the sample was obtained ("gopsutil", "procfs").
	// Debug only, never persisted.
	ProbeMethod string `json:"-"`
}

// NetworkMetric is one network counter sample. Byte and packet counters are
// cumulative since boot; deltas are computed at aggregation time.
type NetworkMetric struct {
	ID        int64 `json:"id,omitempty"`
	Timestamp int64 `json:"timestamp"`

	BytesSent   *uint64 `json:"bytes_sent,omitempty"`
	BytesRecv   *uint64 `json:"bytes_recv,omitempty"`
	PacketsSent *uint64 `json:"packets_sent,omitempty"`
	PacketsRecv *uint64 `json:"packets_recv,omitempty"`

	ErrorsIn  *uint64 `json:"errors_in,omitempty"`
	ErrorsOut *uint64 `json:"errors_out,omitempty"`
	DropsIn   *uint64 `json:"drops_in,omitempty"`
	DropsOut  *uint64 `json:"drops_out,omitempty"`

	ConnectionsEstablished *int64 `json:"connections_established,omitempty"`
	ConnectionsListen      *int64 `json:"connections_listen,omitempty"`
	ConnectionsTimeWait    *int64 `json:"connections_time_wait,omitempty"`

	ProbeMethod string `json:"-"`
}

// Float64 returns a pointer to v. Convenience for building optional fields.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }
