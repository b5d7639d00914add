package store

import (
	"fmt"

	"github.com/avolkhov/logly/internal/model"
)

// InsertSystemMetric persists one sample in its own transaction.
func (s *Store) InsertSystemMetric(m *model.SystemMetric) error {
	if err := checkTimestamp(m.Timestamp); err != nil {
		s.log.Errorw("rejecting system metric", "ts", m.Timestamp, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO system_metrics (
			ts, cpu_percent, cpu_count,
			memory_total, memory_available, memory_percent,
			disk_total, disk_used, disk_percent, disk_read_bytes, disk_write_bytes,
			load_1min, load_5min, load_15min
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Timestamp, m.CPUPercent, m.CPUCount,
		m.MemoryTotal, m.MemoryAvailable, m.MemoryPercent,
		m.DiskTotal, m.DiskUsed, m.DiskPercent, m.DiskReadBytes, m.DiskWriteBytes,
		m.Load1Min, m.Load5Min, m.Load15Min,
	)
	if err != nil {
		return fmt.Errorf("insert system metric: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// InsertNetworkMetric persists one network sample.
func (s *Store) InsertNetworkMetric(m *model.NetworkMetric) error {
	if err := checkTimestamp(m.Timestamp); err != nil {
		s.log.Errorw("rejecting network metric", "ts", m.Timestamp, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO network_metrics (
			ts, bytes_sent, bytes_recv, packets_sent, packets_recv,
			errors_in, errors_out, drops_in, drops_out,
			connections_established, connections_listen, connections_time_wait
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Timestamp, m.BytesSent, m.BytesRecv, m.PacketsSent, m.PacketsRecv,
		m.ErrorsIn, m.ErrorsOut, m.DropsIn, m.DropsOut,
		m.ConnectionsEstablished, m.ConnectionsListen, m.ConnectionsTimeWait,
	)
	if err != nil {
		return fmt.Errorf("insert network metric: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// GetSystemMetrics returns samples with ts in [start, end], newest first.
// limit <= 0 returns everything in range.
func (s *Store) GetSystemMetrics(start, end int64, limit int) ([]model.SystemMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, cpu_percent, cpu_count,
			memory_total, memory_available, memory_percent,
			disk_total, disk_used, disk_percent, disk_read_bytes, disk_write_bytes,
			load_1min, load_5min, load_15min
		FROM system_metrics
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts DESC`+limitClause(limit),
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query system metrics: %w", err)
	}
	defer rows.Close()

	var out []model.SystemMetric
	for rows.Next() {
		var m model.SystemMetric
		if err := rows.Scan(
			&m.ID, &m.Timestamp, &m.CPUPercent, &m.CPUCount,
			&m.MemoryTotal, &m.MemoryAvailable, &m.MemoryPercent,
			&m.DiskTotal, &m.DiskUsed, &m.DiskPercent, &m.DiskReadBytes, &m.DiskWriteBytes,
			&m.Load1Min, &m.Load5Min, &m.Load15Min,
		); err != nil {
			return nil, fmt.Errorf("scan system metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetNetworkMetrics returns network samples with ts in [start, end], newest first.
func (s *Store) GetNetworkMetrics(start, end int64, limit int) ([]model.NetworkMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, bytes_sent, bytes_recv, packets_sent, packets_recv,
			errors_in, errors_out, drops_in, drops_out,
			connections_established, connections_listen, connections_time_wait
		FROM network_metrics
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts DESC`+limitClause(limit),
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query network metrics: %w", err)
	}
	defer rows.Close()

	var out []model.NetworkMetric
	for rows.Next() {
		var m model.NetworkMetric
		if err := rows.Scan(
			&m.ID, &m.Timestamp, &m.BytesSent, &m.BytesRecv, &m.PacketsSent, &m.PacketsRecv,
			&m.ErrorsIn, &m.ErrorsOut, &m.DropsIn, &m.DropsOut,
			&m.ConnectionsEstablished, &m.ConnectionsListen, &m.ConnectionsTimeWait,
		); err != nil {
			return nil, fmt.Errorf("scan network metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
