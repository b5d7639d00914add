package store

import (
	"encoding/json"
	"fmt"

	"github.com/avolkhov/logly/internal/model"
)

// InsertEventTrace persists an enrichment record and fills in its ID so side
// records can reference it.
func (s *Store) InsertEventTrace(t *model.EventTrace) error {
	if err := checkTimestamp(t.Timestamp); err != nil {
		s.log.Errorw("rejecting trace", "source", t.Source, "ts", t.Timestamp, "err", err)
		return err
	}
	if err := checkSeverity(t.SeverityScore); err != nil {
		s.log.Errorw("rejecting trace", "source", t.Source, "severity", t.SeverityScore, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO event_traces (ts, source, level, severity_score, root_cause, trigger,
			causality_chain, related_services, tracers_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Timestamp, t.Source, t.Level, t.SeverityScore, t.RootCause, t.Trigger,
		marshalList(t.CausalityChain), marshalList(t.RelatedServices), marshalList(t.TracersUsed),
	)
	if err != nil {
		return fmt.Errorf("insert event trace: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// InsertProcessTraces persists the process context rows for a trace.
func (s *Store) InsertProcessTraces(traces []model.ProcessTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range traces {
		t := &traces[i]
		res, err := s.db.Exec(`
			INSERT INTO process_traces (trace_id, ts, pid, name, cmdline, parent_pid,
				memory_rss, memory_vm, cpu_utime, cpu_stime, threads, read_bytes, write_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TraceID, t.Timestamp, t.PID, t.Name, t.Cmdline, t.ParentPID,
			t.MemoryRSS, t.MemoryVM, t.CPUUtime, t.CPUStime, t.Threads, t.ReadBytes, t.WriteBytes,
		)
		if err != nil {
			return fmt.Errorf("insert process trace: %w", err)
		}
		t.ID, _ = res.LastInsertId()
	}
	return nil
}

// InsertNetworkTraces persists the connection snapshot rows for a trace.
func (s *Store) InsertNetworkTraces(traces []model.NetworkTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range traces {
		t := &traces[i]
		res, err := s.db.Exec(`
			INSERT INTO network_traces (trace_id, ts, local_addr, local_port,
				remote_addr, remote_port, state, pid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TraceID, t.Timestamp, t.LocalAddr, t.LocalPort,
			t.RemoteAddr, t.RemotePort, t.State, t.PID,
		)
		if err != nil {
			return fmt.Errorf("insert network trace: %w", err)
		}
		t.ID, _ = res.LastInsertId()
	}
	return nil
}

// InsertErrorTrace persists the error taxonomy match for a trace.
func (s *Store) InsertErrorTrace(t *model.ErrorTrace) error {
	if err := checkTimestamp(t.Timestamp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO error_traces (trace_id, ts, source, error_type, category, message,
			severity_bump, root_cause_hints, recovery_suggestions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TraceID, t.Timestamp, t.Source, t.ErrorType, t.Category, t.Message,
		t.SeverityBump, marshalList(t.RootCauseHints), marshalList(t.RecoverySuggestions),
	)
	if err != nil {
		return fmt.Errorf("insert error trace: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// GetTraces returns enrichment records in [start, end], newest first,
// optionally filtered by source and minimum severity.
func (s *Store) GetTraces(start, end int64, source string, minSeverity float64, limit int) ([]model.EventTrace, error) {
	query := `
		SELECT id, ts, source, level, severity_score, root_cause, trigger,
			causality_chain, related_services, tracers_used
		FROM event_traces
		WHERE ts >= ? AND ts <= ? AND severity_score >= ?`
	args := []any{start, end, minSeverity}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	query += " ORDER BY ts DESC" + limitClause(limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var out []model.EventTrace
	for rows.Next() {
		var t model.EventTrace
		var chain, services, tracers string
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Source, &t.Level, &t.SeverityScore,
			&t.RootCause, &t.Trigger, &chain, &services, &tracers); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		t.CausalityChain = unmarshalList(chain)
		t.RelatedServices = unmarshalList(services)
		t.TracersUsed = unmarshalList(tracers)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetErrorTraces returns taxonomy matches in [start, end], newest first,
// optionally filtered by category.
func (s *Store) GetErrorTraces(start, end int64, category string, limit int) ([]model.ErrorTrace, error) {
	query := `
		SELECT id, trace_id, ts, source, error_type, category, message,
			severity_bump, root_cause_hints, recovery_suggestions
		FROM error_traces
		WHERE ts >= ? AND ts <= ?`
	args := []any{start, end}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY ts DESC" + limitClause(limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error traces: %w", err)
	}
	defer rows.Close()

	var out []model.ErrorTrace
	for rows.Next() {
		var t model.ErrorTrace
		var hints, recovery string
		if err := rows.Scan(&t.ID, &t.TraceID, &t.Timestamp, &t.Source, &t.ErrorType,
			&t.Category, &t.Message, &t.SeverityBump, &hints, &recovery); err != nil {
			return nil, fmt.Errorf("scan error trace: %w", err)
		}
		t.RootCauseHints = unmarshalList(hints)
		t.RecoverySuggestions = unmarshalList(recovery)
		out = append(out, t)
	}
	return out, rows.Err()
}

// PatternCount is one (value, count) pair from GetErrorPatterns.
type PatternCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// ErrorPatterns groups error traces by type and category.
type ErrorPatterns struct {
	ByType     []PatternCount `json:"by_type"`
	ByCategory []PatternCount `json:"by_category"`
}

// GetErrorPatterns returns error-trace counts grouped by error type and by
// category over [start, end], most frequent first.
func (s *Store) GetErrorPatterns(start, end int64) (*ErrorPatterns, error) {
	patterns := &ErrorPatterns{}

	byType, err := s.groupCount(`
		SELECT error_type, COUNT(*) FROM error_traces
		WHERE ts >= ? AND ts <= ? AND error_type != ''
		GROUP BY error_type ORDER BY COUNT(*) DESC`, start, end)
	if err != nil {
		return nil, err
	}
	patterns.ByType = byType

	byCategory, err := s.groupCount(`
		SELECT category, COUNT(*) FROM error_traces
		WHERE ts >= ? AND ts <= ?
		GROUP BY category ORDER BY COUNT(*) DESC`, start, end)
	if err != nil {
		return nil, err
	}
	patterns.ByCategory = byCategory

	return patterns, nil
}

func (s *Store) groupCount(query string, args ...any) ([]PatternCount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error patterns: %w", err)
	}
	defer rows.Close()

	var out []PatternCount
	for rows.Next() {
		var pc PatternCount
		if err := rows.Scan(&pc.Value, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan error pattern: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
