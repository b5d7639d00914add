package store

import (
	"fmt"
	"time"
)

// CleanupOldData deletes raw samples and events older than the retention
// horizon. Aggregate rows are never deleted. Idempotent; retention_days of 0
// deletes every raw row.
func (s *Store) CleanupOldData(retentionDays int) (int64, error) {
	cutoff := time.Now().Unix() - int64(retentionDays)*86400

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, table := range []string{"system_metrics", "network_metrics", "log_events"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE ts < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		s.log.Infow("retention sweep complete", "deleted", total, "retention_days", retentionDays)
	}
	return total, nil
}
