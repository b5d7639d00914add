package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/avolkhov/logly/internal/model"
)

// record is one export row with a stable column order. CSV takes the columns
// as-is; JSON turns them into an object.
type record struct {
	names  []string
	values []any
}

func (r *record) add(name string, value any) {
	r.names = append(r.names, name)
	r.values = append(r.values, value)
}

func (r *record) toMap() map[string]any {
	m := make(map[string]any, len(r.names))
	for i, name := range r.names {
		m[name] = r.values[i]
	}
	return m
}

func (r *record) cells() []string {
	out := make([]string, len(r.values))
	for i, v := range r.values {
		out[i] = cell(v)
	}
	return out
}

// cell renders one CSV value; nil pointers and nils render empty.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case *float64:
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%g", *t)
	case *int64:
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%d", *t)
	case *uint64:
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%d", *t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (e *Exporter) systemRecord(m *model.SystemMetric) record {
	var r record
	r.add("timestamp", m.Timestamp)
	r.add("timestamp_str", e.formatTS(m.Timestamp))
	r.add("cpu_percent", m.CPUPercent)
	r.add("cpu_count", m.CPUCount)
	r.add("memory_total", m.MemoryTotal)
	r.add("memory_available", m.MemoryAvailable)
	r.add("memory_percent", m.MemoryPercent)
	r.add("disk_total", m.DiskTotal)
	r.add("disk_used", m.DiskUsed)
	r.add("disk_percent", m.DiskPercent)
	r.add("disk_read_bytes", m.DiskReadBytes)
	r.add("disk_write_bytes", m.DiskWriteBytes)
	r.add("load_1min", m.Load1Min)
	r.add("load_5min", m.Load5Min)
	r.add("load_15min", m.Load15Min)
	return r
}

func (e *Exporter) networkRecord(m *model.NetworkMetric) record {
	var r record
	r.add("timestamp", m.Timestamp)
	r.add("timestamp_str", e.formatTS(m.Timestamp))
	r.add("bytes_sent", m.BytesSent)
	r.add("bytes_recv", m.BytesRecv)
	r.add("packets_sent", m.PacketsSent)
	r.add("packets_recv", m.PacketsRecv)
	r.add("errors_in", m.ErrorsIn)
	r.add("errors_out", m.ErrorsOut)
	r.add("drops_in", m.DropsIn)
	r.add("drops_out", m.DropsOut)
	r.add("connections_established", m.ConnectionsEstablished)
	r.add("connections_listen", m.ConnectionsListen)
	r.add("connections_time_wait", m.ConnectionsTimeWait)
	return r
}

func (e *Exporter) logRecord(ev *model.LogEvent) record {
	var r record
	r.add("timestamp", ev.Timestamp)
	r.add("timestamp_str", e.formatTS(ev.Timestamp))
	r.add("source", ev.Source)
	r.add("level", ev.Level)
	r.add("message", ev.Message)
	r.add("ip", ev.IP)
	r.add("user", ev.User)
	r.add("service", ev.Service)
	r.add("action", ev.Action)
	r.add("metadata", ev.MetadataJSON())
	return r
}

func (e *Exporter) writeCSV(path string, records []record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(records) > 0 {
		if err := w.Write(records[0].names); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for i := range records {
		if err := w.Write(records[i].cells()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
