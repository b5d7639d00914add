package model

import "encoding/json"

// Log source families with dedicated parsers. Anything else goes through the
// generic parser.
const (
	SourceFail2ban = "fail2ban"
	SourceAuth     = "auth"
	SourceSyslog   = "syslog"
	SourceNginx    = "nginx"
	SourceDjango   = "django"
)

// Actions extracted from log lines.
const (
	ActionBan             = "ban"
	ActionUnban           = "unban"
	ActionFound           = "found"
	ActionFailedLogin     = "failed_login"
	ActionSuccessfulLogin = "successful_login"
	ActionHTTPRequest     = "http_request"
)

// Log levels, lowercase.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// LogEvent is one parsed log line. Events are immutable once written; the
// retention sweep is the only thing that deletes them.
type LogEvent struct {
	ID        int64  `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	Level     string `json:"level,omitempty"`
	IP        string `json:"ip,omitempty"`
	User      string `json:"user,omitempty"`
	Service   string `json:"service,omitempty"`
	Action    string `json:"action,omitempty"`

	// Metadata is an opaque bag persisted as a JSON text blob. Consumers
	// treat missing keys as absent.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MetadataJSON serializes the metadata bag for storage. Returns "" for an
// empty bag.
func (e *LogEvent) MetadataJSON() string {
	if len(e.Metadata) == 0 {
		return ""
	}
	b, err := json.Marshal(e.Metadata)
	if err != nil {
		return ""
	}
	return string(b)
}

// SetMetadataJSON restores the metadata bag from its stored form. A blank or
// malformed blob leaves the bag nil.
func (e *LogEvent) SetMetadataJSON(s string) {
	if s == "" {
		return
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return
	}
	e.Metadata = m
}

// MetadataInt reads an integer-valued metadata key, tolerating the float64
// representation JSON decoding produces.
func (e *LogEvent) MetadataInt(key string) (int, bool) {
	v, ok := e.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// IsError reports whether the event is at error level or above.
func (e *LogEvent) IsError() bool {
	return e.Level == LevelError || e.Level == LevelCritical
}
