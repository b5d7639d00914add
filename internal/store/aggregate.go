package store

import (
	"fmt"

	"github.com/avolkhov/logly/internal/model"
)

// ComputeHourlyAggregates rolls the raw rows of [hourTS, hourTS+3600) into
// one hourly_aggregates row, INSERT OR REPLACE keyed by the hour boundary so
// the operation is idempotent. No-op when the hour holds no raw data.
//
// Network totals are per-counter deltas summed across consecutive samples,
// with a decrease treated as a counter reset (that step contributes zero).
// The original implementation summed raw cumulative values, which inflates
// totals superlinearly; see DESIGN.md.
func (s *Store) ComputeHourlyAggregates(hourTS int64) error {
	hour := model.HourStart(hourTS)
	start, end := hour, hour+3600

	agg := model.HourlyAggregate{HourTS: hour}

	// System percent roll-up. AVG/MAX ignore NULL columns, clamped to the
	// [0, 100] bound that is enforced at aggregation time.
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			AVG(cpu_percent), MAX(cpu_percent),
			AVG(memory_percent), MAX(memory_percent),
			AVG(disk_percent), MAX(disk_percent)
		FROM system_metrics WHERE ts >= ? AND ts < ?`, start, end,
	).Scan(&agg.SampleCount,
		&agg.AvgCPUPercent, &agg.MaxCPUPercent,
		&agg.AvgMemoryPercent, &agg.MaxMemoryPercent,
		&agg.AvgDiskPercent, &agg.MaxDiskPercent,
	)
	if err != nil {
		return fmt.Errorf("aggregate system metrics: %w", err)
	}
	clampPercent(agg.AvgCPUPercent)
	clampPercent(agg.MaxCPUPercent)
	clampPercent(agg.AvgMemoryPercent)
	clampPercent(agg.MaxMemoryPercent)
	clampPercent(agg.AvgDiskPercent)
	clampPercent(agg.MaxDiskPercent)

	netRows, err := s.GetNetworkMetrics(start, end-1, 0)
	if err != nil {
		return err
	}
	sumNetworkDeltas(&agg, netRows)

	err = s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN level IN ('error', 'critical') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN level = 'warning' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN action IN ('ban', 'unban', 'failed_login', 'found') THEN 1 ELSE 0 END), 0)
		FROM log_events WHERE ts >= ? AND ts < ?`, start, end,
	).Scan(&agg.TotalEvents, &agg.ErrorEvents, &agg.WarningEvents, &agg.SecurityEvents)
	if err != nil {
		return fmt.Errorf("aggregate log events: %w", err)
	}

	// No samples and no events in the hour: leave no row behind.
	if agg.SampleCount == 0 && len(netRows) == 0 && agg.TotalEvents == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO hourly_aggregates (
			hour_ts, avg_cpu_percent, max_cpu_percent,
			avg_memory_percent, max_memory_percent,
			avg_disk_percent, max_disk_percent,
			bytes_sent, bytes_recv, packets_sent, packets_recv,
			total_events, error_events, warning_events, security_events, sample_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.HourTS, agg.AvgCPUPercent, agg.MaxCPUPercent,
		agg.AvgMemoryPercent, agg.MaxMemoryPercent,
		agg.AvgDiskPercent, agg.MaxDiskPercent,
		agg.BytesSent, agg.BytesRecv, agg.PacketsSent, agg.PacketsRecv,
		agg.TotalEvents, agg.ErrorEvents, agg.WarningEvents, agg.SecurityEvents, agg.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("write hourly aggregate: %w", err)
	}
	return nil
}

// sumNetworkDeltas accumulates counter growth across consecutive samples.
// rows arrive newest first; a step where the counter decreased is a reset and
// contributes nothing.
func sumNetworkDeltas(agg *model.HourlyAggregate, rows []model.NetworkMetric) {
	for i := len(rows) - 1; i > 0; i-- {
		prev, cur := rows[i], rows[i-1]
		agg.BytesSent += counterDelta(prev.BytesSent, cur.BytesSent)
		agg.BytesRecv += counterDelta(prev.BytesRecv, cur.BytesRecv)
		agg.PacketsSent += counterDelta(prev.PacketsSent, cur.PacketsSent)
		agg.PacketsRecv += counterDelta(prev.PacketsRecv, cur.PacketsRecv)
	}
}

func counterDelta(prev, cur *uint64) uint64 {
	if prev == nil || cur == nil || *cur < *prev {
		return 0
	}
	return *cur - *prev
}

func clampPercent(p *float64) {
	if p == nil {
		return
	}
	if *p < 0 {
		*p = 0
	}
	if *p > 100 {
		*p = 100
	}
}

// ComputeDailyAggregates rolls the hourly rows of a YYYY-MM-DD UTC date into
// one daily_aggregates row, adding distinct-IP and distinct-user counts from
// the raw events of that day. Idempotent like the hourly roll-up.
func (s *Store) ComputeDailyAggregates(date string) error {
	start, end, err := model.DayBounds(date)
	if err != nil {
		return fmt.Errorf("daily aggregate %q: %w", date, err)
	}

	agg := model.DailyAggregate{Date: date}

	err = s.db.QueryRow(`
		SELECT COUNT(*),
			AVG(avg_cpu_percent), MAX(max_cpu_percent),
			AVG(avg_memory_percent), MAX(max_memory_percent),
			AVG(avg_disk_percent),
			COALESCE(SUM(bytes_sent), 0), COALESCE(SUM(bytes_recv), 0),
			COALESCE(SUM(packets_sent), 0), COALESCE(SUM(packets_recv), 0),
			COALESCE(SUM(total_events), 0), COALESCE(SUM(error_events), 0),
			COALESCE(SUM(security_events), 0)
		FROM hourly_aggregates WHERE hour_ts >= ? AND hour_ts < ?`, start, end,
	).Scan(&agg.HourCount,
		&agg.AvgCPUPercent, &agg.MaxCPUPercent,
		&agg.AvgMemoryPercent, &agg.MaxMemoryPercent,
		&agg.AvgDiskPercent,
		&agg.BytesSent, &agg.BytesRecv,
		&agg.PacketsSent, &agg.PacketsRecv,
		&agg.TotalEvents, &agg.ErrorEvents,
		&agg.SecurityEvents,
	)
	if err != nil {
		return fmt.Errorf("aggregate hourly rows: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(DISTINCT CASE WHEN ip != '' THEN ip END),
			COUNT(DISTINCT CASE WHEN user != '' THEN user END)
		FROM log_events WHERE ts >= ? AND ts < ?`,
		start, end,
	).Scan(&agg.UniqueIPs, &agg.UniqueUsers)
	if err != nil {
		return fmt.Errorf("aggregate distinct actors: %w", err)
	}

	if agg.HourCount == 0 && agg.UniqueIPs == 0 && agg.UniqueUsers == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO daily_aggregates (
			date, avg_cpu_percent, max_cpu_percent,
			avg_memory_percent, max_memory_percent, avg_disk_percent,
			bytes_sent, bytes_recv, packets_sent, packets_recv,
			total_events, error_events, security_events,
			unique_ips, unique_users, hour_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.Date, agg.AvgCPUPercent, agg.MaxCPUPercent,
		agg.AvgMemoryPercent, agg.MaxMemoryPercent, agg.AvgDiskPercent,
		agg.BytesSent, agg.BytesRecv, agg.PacketsSent, agg.PacketsRecv,
		agg.TotalEvents, agg.ErrorEvents, agg.SecurityEvents,
		agg.UniqueIPs, agg.UniqueUsers, agg.HourCount,
	)
	if err != nil {
		return fmt.Errorf("write daily aggregate: %w", err)
	}
	return nil
}

// GetHourlyAggregates returns hourly rows with hour_ts in [start, end],
// oldest first (trend analysis wants chronological order).
func (s *Store) GetHourlyAggregates(start, end int64) ([]model.HourlyAggregate, error) {
	rows, err := s.db.Query(`
		SELECT hour_ts, avg_cpu_percent, max_cpu_percent,
			avg_memory_percent, max_memory_percent,
			avg_disk_percent, max_disk_percent,
			bytes_sent, bytes_recv, packets_sent, packets_recv,
			total_events, error_events, warning_events, security_events, sample_count
		FROM hourly_aggregates
		WHERE hour_ts >= ? AND hour_ts <= ?
		ORDER BY hour_ts ASC`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query hourly aggregates: %w", err)
	}
	defer rows.Close()

	var out []model.HourlyAggregate
	for rows.Next() {
		var a model.HourlyAggregate
		if err := rows.Scan(&a.HourTS, &a.AvgCPUPercent, &a.MaxCPUPercent,
			&a.AvgMemoryPercent, &a.MaxMemoryPercent,
			&a.AvgDiskPercent, &a.MaxDiskPercent,
			&a.BytesSent, &a.BytesRecv, &a.PacketsSent, &a.PacketsRecv,
			&a.TotalEvents, &a.ErrorEvents, &a.WarningEvents, &a.SecurityEvents, &a.SampleCount,
		); err != nil {
			return nil, fmt.Errorf("scan hourly aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetDailyAggregates returns daily rows with date in [startDate, endDate],
// oldest first.
func (s *Store) GetDailyAggregates(startDate, endDate string) ([]model.DailyAggregate, error) {
	rows, err := s.db.Query(`
		SELECT date, avg_cpu_percent, max_cpu_percent,
			avg_memory_percent, max_memory_percent, avg_disk_percent,
			bytes_sent, bytes_recv, packets_sent, packets_recv,
			total_events, error_events, security_events,
			unique_ips, unique_users, hour_count
		FROM daily_aggregates
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily aggregates: %w", err)
	}
	defer rows.Close()

	var out []model.DailyAggregate
	for rows.Next() {
		var a model.DailyAggregate
		if err := rows.Scan(&a.Date, &a.AvgCPUPercent, &a.MaxCPUPercent,
			&a.AvgMemoryPercent, &a.MaxMemoryPercent, &a.AvgDiskPercent,
			&a.BytesSent, &a.BytesRecv, &a.PacketsSent, &a.PacketsRecv,
			&a.TotalEvents, &a.ErrorEvents, &a.SecurityEvents,
			&a.UniqueIPs, &a.UniqueUsers, &a.HourCount,
		); err != nil {
			return nil, fmt.Errorf("scan daily aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
