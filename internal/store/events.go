package store

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/avolkhov/logly/internal/model"
)

// InsertLogEvent persists one parsed log line and folds it into the IP
// reputation table when the event carries an address.
func (s *Store) InsertLogEvent(e *model.LogEvent) error {
	if err := checkTimestamp(e.Timestamp); err != nil {
		s.log.Errorw("rejecting log event", "source", e.Source, "ts", e.Timestamp, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLogEventLocked(e)
}

// InsertLogEvents persists a batch. A row that fails validation or insertion
// is logged and skipped; the rest of the batch commits. Returns the number of
// rows written and the accumulated failures.
func (s *Store) InsertLogEvents(events []*model.LogEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int
	var errs *multierror.Error
	for _, e := range events {
		if err := checkTimestamp(e.Timestamp); err != nil {
			s.log.Debugw("dropping invalid event", "source", e.Source, "ts", e.Timestamp)
			errs = multierror.Append(errs, err)
			continue
		}
		if err := s.insertLogEventLocked(e); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		inserted++
	}
	return inserted, errs.ErrorOrNil()
}

func (s *Store) insertLogEventLocked(e *model.LogEvent) error {
	res, err := s.db.Exec(`
		INSERT INTO log_events (ts, source, message, level, ip, user, service, action, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Source, e.Message, e.Level, e.IP, e.User, e.Service, e.Action, e.MetadataJSON(),
	)
	if err != nil {
		return fmt.Errorf("insert log event: %w", err)
	}
	e.ID, _ = res.LastInsertId()

	if e.IP != "" {
		if err := s.applyReputationLocked(e); err != nil {
			// Reputation accrual must not fail the event row.
			s.log.Warnw("reputation update failed", "ip", e.IP, "err", err)
		}
	}
	return nil
}

// GetLogEvents returns events in [start, end], newest first, optionally
// filtered by source and level.
func (s *Store) GetLogEvents(start, end int64, source, level string, limit int) ([]model.LogEvent, error) {
	query := `
		SELECT id, ts, source, message, level, ip, user, service, action, metadata
		FROM log_events
		WHERE ts >= ? AND ts <= ?`
	args := []any{start, end}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	if level != "" {
		query += " AND level = ?"
		args = append(args, level)
	}
	query += " ORDER BY ts DESC" + limitClause(limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log events: %w", err)
	}
	defer rows.Close()

	var out []model.LogEvent
	for rows.Next() {
		var e model.LogEvent
		var metadata string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &e.Message,
			&e.Level, &e.IP, &e.User, &e.Service, &e.Action, &metadata); err != nil {
			return nil, fmt.Errorf("scan log event: %w", err)
		}
		e.SetMetadataJSON(metadata)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountLogEvents counts events in [start, end] matching an optional action.
func (s *Store) CountLogEvents(start, end int64, action string) (int64, error) {
	query := "SELECT COUNT(*) FROM log_events WHERE ts >= ? AND ts <= ?"
	args := []any{start, end}
	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}
	var n int64
	err := s.db.QueryRow(query, args...).Scan(&n)
	return n, err
}
