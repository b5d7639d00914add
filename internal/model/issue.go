package model

// Issue types emitted by the detector family.
const (
	IssueBruteForce        = "brute_force"
	IssueHighThreatIP      = "high_threat_ip"
	IssueBannedIP          = "banned_ip"
	IssueSustainedCPU      = "sustained_high_cpu"
	IssueSustainedMemory   = "sustained_high_memory"
	IssueDiskSpace         = "disk_space"
	IssueErrorSpike        = "error_spike"
	IssueRecurringError    = "recurring_error"
	IssueCriticalError     = "critical_error"
	IssueConnectionAnomaly = "connection_anomaly"
	IssueNetworkErrorRate  = "network_error_rate"
)

// Issue is one detected operational or security problem. Details carries the
// type-specific fields (attempt_count, spike_factor, sustained_duration, ...).
type Issue struct {
	Type              string         `json:"type"`
	Severity          float64        `json:"severity"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	FirstSeen         int64          `json:"first_seen"`
	LastSeen          int64          `json:"last_seen"`
	OccurrenceCount   int64          `json:"occurrence_count"`
	AffectedResources []string       `json:"affected_resources,omitempty"`
	Recommendations   []string       `json:"recommendations,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
}

// Band returns the discretized severity band of the issue.
func (i *Issue) Band() string { return SeverityBand(i.Severity) }

// Detail reads a numeric value out of the type-specific details bag.
func (i *Issue) Detail(key string) (float64, bool) {
	v, ok := i.Details[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
