package model

// Severity bands. Scores are clamped to [0, 100] everywhere.
const (
	BandLow      = "low"      // [0, 30]
	BandMedium   = "medium"   // [31, 60]
	BandHigh     = "high"     // [61, 80]
	BandCritical = "critical" // [81, 100]
)

// SeverityBand discretizes a severity score into its band label.
func SeverityBand(score float64) string {
	switch {
	case score > 80:
		return BandCritical
	case score > 60:
		return BandHigh
	case score > 30:
		return BandMedium
	default:
		return BandLow
	}
}

// ClampScore bounds a score to [0, 100].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// EventTrace is the enrichment record attached on demand to a LogEvent.
// Process, network, and error context live in side records keyed by TraceID.
type EventTrace struct {
	ID              int64    `json:"id,omitempty"`
	Timestamp       int64    `json:"timestamp"`
	Source          string   `json:"source"`
	Level           string   `json:"level,omitempty"`
	SeverityScore   float64  `json:"severity_score"`
	RootCause       string   `json:"root_cause,omitempty"`
	Trigger         string   `json:"trigger,omitempty"`
	CausalityChain  []string `json:"causality_chain,omitempty"`
	RelatedServices []string `json:"related_services,omitempty"`
	TracersUsed     []string `json:"tracers_used,omitempty"`
}

// Band returns the severity band of the trace.
func (t *EventTrace) Band() string { return SeverityBand(t.SeverityScore) }

// ProcessTrace captures the live processes backing a traced service.
type ProcessTrace struct {
	ID         int64  `json:"id,omitempty"`
	TraceID    int64  `json:"trace_id"`
	Timestamp  int64  `json:"timestamp"`
	PID        int32  `json:"pid"`
	Name       string `json:"name"`
	Cmdline    string `json:"cmdline,omitempty"`
	ParentPID  int32  `json:"parent_pid,omitempty"`
	MemoryRSS  uint64 `json:"memory_rss,omitempty"`
	MemoryVM   uint64 `json:"memory_vm,omitempty"`
	CPUUtime   float64 `json:"cpu_utime,omitempty"`
	CPUStime   float64 `json:"cpu_stime,omitempty"`
	Threads    int32  `json:"threads,omitempty"`
	ReadBytes  uint64 `json:"read_bytes,omitempty"`
	WriteBytes uint64 `json:"write_bytes,omitempty"`
}

// NetworkTrace is one TCP connection observed while tracing an event.
type NetworkTrace struct {
	ID         int64  `json:"id,omitempty"`
	TraceID    int64  `json:"trace_id"`
	Timestamp  int64  `json:"timestamp"`
	LocalAddr  string `json:"local_addr"`
	LocalPort  uint32 `json:"local_port"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	RemotePort uint32 `json:"remote_port,omitempty"`
	State      string `json:"state"`
	PID        int32  `json:"pid,omitempty"`
}

// ErrorTrace is the taxonomy match for an error-class event.
type ErrorTrace struct {
	ID                  int64    `json:"id,omitempty"`
	TraceID             int64    `json:"trace_id"`
	Timestamp           int64    `json:"timestamp"`
	Source              string   `json:"source"`
	ErrorType           string   `json:"error_type,omitempty"`
	Category            string   `json:"category"`
	Message             string   `json:"message,omitempty"`
	SeverityBump        float64  `json:"severity_bump,omitempty"`
	RootCauseHints      []string `json:"root_cause_hints,omitempty"`
	RecoverySuggestions []string `json:"recovery_suggestions,omitempty"`
}
