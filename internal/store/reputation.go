package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// applyReputationLocked folds one event into the reputation row for its IP:
// create on first sight, then bump monotonic counters and rederive the threat
// score. Caller holds the write mutex.
func (s *Store) applyReputationLocked(e *model.LogEvent) error {
	rep, err := s.getIPReputation(e.IP)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if rep == nil {
		rep = &model.IPReputation{
			IP:        e.IP,
			Type:      model.ClassifyIP(e.IP),
			FirstSeen: e.Timestamp,
			LastSeen:  e.Timestamp,
		}
	}

	rep.TotalEvents++
	if e.Timestamp > rep.LastSeen {
		rep.LastSeen = e.Timestamp
	}
	if e.Timestamp < rep.FirstSeen {
		rep.FirstSeen = e.Timestamp
	}
	switch e.Action {
	case model.ActionFailedLogin:
		rep.FailedLoginCount++
	case model.ActionBan:
		rep.BannedCount++
	}
	rep.UpdatedAt = now
	rep.Recompute()

	return s.upsertReputationLocked(rep)
}

// UpsertIPReputation writes a reputation row verbatim after rederiving its
// threat score. Used by the IP tracer to flush its cache and by whitelist /
// blacklist edits.
func (s *Store) UpsertIPReputation(rep *model.IPReputation) error {
	if err := checkTimestamp(rep.FirstSeen); err != nil {
		return err
	}
	rep.Recompute()
	if rep.UpdatedAt == 0 {
		rep.UpdatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertReputationLocked(rep)
}

func (s *Store) upsertReputationLocked(rep *model.IPReputation) error {
	_, err := s.db.Exec(`
		INSERT INTO ip_reputation (
			ip, type, is_whitelisted, is_blacklisted, threat_score,
			first_seen, last_seen, total_events, failed_login_count, banned_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			type = excluded.type,
			is_whitelisted = excluded.is_whitelisted,
			is_blacklisted = excluded.is_blacklisted,
			threat_score = excluded.threat_score,
			first_seen = MIN(first_seen, excluded.first_seen),
			last_seen = MAX(last_seen, excluded.last_seen),
			total_events = MAX(total_events, excluded.total_events),
			failed_login_count = MAX(failed_login_count, excluded.failed_login_count),
			banned_count = MAX(banned_count, excluded.banned_count),
			updated_at = excluded.updated_at`,
		rep.IP, rep.Type, rep.IsWhitelisted, rep.IsBlacklisted, rep.ThreatScore,
		rep.FirstSeen, rep.LastSeen, rep.TotalEvents, rep.FailedLoginCount, rep.BannedCount, rep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert ip reputation: %w", err)
	}
	return nil
}

// GetIPReputation returns the reputation row for an IP, or nil when the IP
// has never been observed.
func (s *Store) GetIPReputation(ip string) (*model.IPReputation, error) {
	return s.getIPReputation(ip)
}

func (s *Store) getIPReputation(ip string) (*model.IPReputation, error) {
	var rep model.IPReputation
	err := s.db.QueryRow(`
		SELECT ip, type, is_whitelisted, is_blacklisted, threat_score,
			first_seen, last_seen, total_events, failed_login_count, banned_count, updated_at
		FROM ip_reputation WHERE ip = ?`, ip,
	).Scan(
		&rep.IP, &rep.Type, &rep.IsWhitelisted, &rep.IsBlacklisted, &rep.ThreatScore,
		&rep.FirstSeen, &rep.LastSeen, &rep.TotalEvents, &rep.FailedLoginCount, &rep.BannedCount, &rep.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ip reputation: %w", err)
	}
	return &rep, nil
}

// GetHighThreatIPs returns all reputations at or above the threshold, highest
// threat first.
func (s *Store) GetHighThreatIPs(threshold float64) ([]model.IPReputation, error) {
	rows, err := s.db.Query(`
		SELECT ip, type, is_whitelisted, is_blacklisted, threat_score,
			first_seen, last_seen, total_events, failed_login_count, banned_count, updated_at
		FROM ip_reputation
		WHERE threat_score >= ?
		ORDER BY threat_score DESC, last_seen DESC`, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("query high threat ips: %w", err)
	}
	defer rows.Close()
	return scanReputations(rows)
}

// GetAllIPReputations returns every reputation row, most recently seen first.
func (s *Store) GetAllIPReputations() ([]model.IPReputation, error) {
	rows, err := s.db.Query(`
		SELECT ip, type, is_whitelisted, is_blacklisted, threat_score,
			first_seen, last_seen, total_events, failed_login_count, banned_count, updated_at
		FROM ip_reputation
		ORDER BY last_seen DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ip reputations: %w", err)
	}
	defer rows.Close()
	return scanReputations(rows)
}

func scanReputations(rows *sql.Rows) ([]model.IPReputation, error) {
	var out []model.IPReputation
	for rows.Next() {
		var rep model.IPReputation
		if err := rows.Scan(
			&rep.IP, &rep.Type, &rep.IsWhitelisted, &rep.IsBlacklisted, &rep.ThreatScore,
			&rep.FirstSeen, &rep.LastSeen, &rep.TotalEvents, &rep.FailedLoginCount, &rep.BannedCount, &rep.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ip reputation: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
