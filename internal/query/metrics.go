package query

import (
	"fmt"

	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

// MetricsQuery is the unrefined metric entry point.
type MetricsQuery struct {
	store *store.Store
}

// System selects the system metric series.
func (q MetricsQuery) System() SystemMetricsQuery {
	return SystemMetricsQuery{store: q.store, window: defaultWindow()}
}

// Network selects the network metric series.
func (q MetricsQuery) Network() NetworkMetricsQuery {
	return NetworkMetricsQuery{store: q.store, window: defaultWindow()}
}

// systemFields maps reducer field names onto the optional metric columns.
var systemFields = map[string]func(*model.SystemMetric) *float64{
	"cpu_percent":    func(m *model.SystemMetric) *float64 { return m.CPUPercent },
	"memory_percent": func(m *model.SystemMetric) *float64 { return m.MemoryPercent },
	"disk_percent":   func(m *model.SystemMetric) *float64 { return m.DiskPercent },
	"load_1min":      func(m *model.SystemMetric) *float64 { return m.Load1Min },
	"load_5min":      func(m *model.SystemMetric) *float64 { return m.Load5Min },
	"load_15min":     func(m *model.SystemMetric) *float64 { return m.Load15Min },
}

// SystemMetricsQuery selects system metric rows.
type SystemMetricsQuery struct {
	store  *store.Store
	window window
	limit  int
}

func (q SystemMetricsQuery) InLastHours(n int) SystemMetricsQuery {
	q.window = lastHours(n)
	return q
}

func (q SystemMetricsQuery) InLastDays(n int) SystemMetricsQuery {
	q.window = lastDays(n)
	return q
}

func (q SystemMetricsQuery) Between(start, end int64) SystemMetricsQuery {
	q.window = window{start: start, end: end}
	return q
}

func (q SystemMetricsQuery) Limit(n int) SystemMetricsQuery {
	q.limit = n
	return q
}

// All materializes the matching rows, newest first.
func (q SystemMetricsQuery) All() ([]model.SystemMetric, error) {
	return q.store.GetSystemMetrics(q.window.start, q.window.end, q.limit)
}

func (q SystemMetricsQuery) Count() (int, error) {
	rows, err := q.All()
	return len(rows), err
}

// Latest returns the newest sample.
func (q SystemMetricsQuery) Latest() (*model.SystemMetric, error) {
	rows, err := q.store.GetSystemMetrics(q.window.start, q.window.end, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return &rows[0], nil
}

// Avg averages one field across the window, skipping unsampled rows.
func (q SystemMetricsQuery) Avg(field string) (float64, error) {
	return q.reduce(field, func(acc, v float64, n int) float64 { return acc + v },
		func(acc float64, n int) float64 { return acc / float64(n) })
}

// Min returns the smallest value of one field across the window.
func (q SystemMetricsQuery) Min(field string) (float64, error) {
	return q.reduce(field, func(acc, v float64, n int) float64 {
		if n == 1 || v < acc {
			return v
		}
		return acc
	}, nil)
}

// Max returns the largest value of one field across the window.
func (q SystemMetricsQuery) Max(field string) (float64, error) {
	return q.reduce(field, func(acc, v float64, n int) float64 {
		if n == 1 || v > acc {
			return v
		}
		return acc
	}, nil)
}

func (q SystemMetricsQuery) reduce(field string, step func(acc, v float64, n int) float64, final func(acc float64, n int) float64) (float64, error) {
	extract, ok := systemFields[field]
	if !ok {
		return 0, fmt.Errorf("unknown metric field %q", field)
	}
	rows, err := q.All()
	if err != nil {
		return 0, err
	}
	var acc float64
	n := 0
	for i := range rows {
		if v := extract(&rows[i]); v != nil {
			n++
			acc = step(acc, *v, n)
		}
	}
	if n == 0 {
		return 0, errNoRows
	}
	if final != nil {
		acc = final(acc, n)
	}
	return acc, nil
}

// NetworkMetricsQuery selects network metric rows.
type NetworkMetricsQuery struct {
	store  *store.Store
	window window
	limit  int
}

func (q NetworkMetricsQuery) InLastHours(n int) NetworkMetricsQuery {
	q.window = lastHours(n)
	return q
}

func (q NetworkMetricsQuery) InLastDays(n int) NetworkMetricsQuery {
	q.window = lastDays(n)
	return q
}

func (q NetworkMetricsQuery) Between(start, end int64) NetworkMetricsQuery {
	q.window = window{start: start, end: end}
	return q
}

func (q NetworkMetricsQuery) Limit(n int) NetworkMetricsQuery {
	q.limit = n
	return q
}

func (q NetworkMetricsQuery) All() ([]model.NetworkMetric, error) {
	return q.store.GetNetworkMetrics(q.window.start, q.window.end, q.limit)
}

func (q NetworkMetricsQuery) Count() (int, error) {
	rows, err := q.All()
	return len(rows), err
}

func (q NetworkMetricsQuery) Latest() (*model.NetworkMetric, error) {
	rows, err := q.store.GetNetworkMetrics(q.window.start, q.window.end, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return &rows[0], nil
}

// AvgConnections averages the established-connection census.
func (q NetworkMetricsQuery) AvgConnections() (float64, error) {
	rows, err := q.All()
	if err != nil {
		return 0, err
	}
	var sum float64
	n := 0
	for _, m := range rows {
		if m.ConnectionsEstablished != nil {
			sum += float64(*m.ConnectionsEstablished)
			n++
		}
	}
	if n == 0 {
		return 0, errNoRows
	}
	return sum / float64(n), nil
}
