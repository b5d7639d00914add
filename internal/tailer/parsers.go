// Source-specific line parsers. Each is a pure function line -> event;
// returning nil discards the line. Fixed regex anchors, no backtracking
// surprises.
package tailer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// Parser turns one raw line into an event, or nil to drop it. now anchors
// year inference for syslog-style timestamps.
type Parser func(line string, now time.Time) *model.LogEvent

// ParserFor returns the parser registered for a source family; unknown
// sources get the generic parser.
func ParserFor(source string) Parser {
	if p, ok := parsers[source]; ok {
		return p
	}
	return parseGeneric
}

var parsers = map[string]Parser{
	model.SourceFail2ban: parseFail2ban,
	model.SourceAuth:     parseAuth,
	model.SourceSyslog:   parseSyslog,
	model.SourceNginx:    parseNginx,
	model.SourceDjango:   parseDjango,
}

var (
	// 2024-01-15 10:30:45,123 fail2ban.actions [123]: NOTICE [sshd] Ban 203.0.113.42
	fail2banRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}),\d+ fail2ban\.\S+\s*(?:\[\d+\])?:\s+\S+\s+\[(\S+)\]\s+(Ban|Unban|Found)\s+(\S+)`)

	// Jan 15 10:30:45 host sshd[1234]: Failed password for [invalid user] root from 203.0.113.42 port 54321 ssh2
	authFailedRe   = regexp.MustCompile(`^(\w{3}\s+\d+ \d{2}:\d{2}:\d{2}) \S+ sshd(?:\[\d+\])?: Failed password for (?:invalid user )?(\S+) from (\S+) port \d+`)
	authAcceptedRe = regexp.MustCompile(`^(\w{3}\s+\d+ \d{2}:\d{2}:\d{2}) \S+ sshd(?:\[\d+\])?: Accepted (?:password|publickey) for (\S+) from (\S+) port \d+`)

	// 203.0.113.42 - frank [15/Jan/2024:10:30:45 +0000] "GET /index.html HTTP/1.1" 200 612 "-" "curl/8.0"
	nginxRe = regexp.MustCompile(`^(\S+) \S+ (\S+) \[([^\]]+)\] "(\S+) (\S+)[^"]*" (\d{3}) (\d+|-)`)

	// [ERROR] something went wrong  /  ERROR 2024-01-15 10:30:45 module message
	djangoBracketRe = regexp.MustCompile(`^\[(DEBUG|INFO|WARNING|ERROR|CRITICAL)\]\s+(.*)`)
	djangoPlainRe   = regexp.MustCompile(`^(DEBUG|INFO|WARNING|ERROR|CRITICAL) (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})(?:,\d+)? (.*)`)

	// Jan 15 10:30:45 host service[pid]: message
	syslogRe = regexp.MustCompile(`^(\w{3}\s+\d+ \d{2}:\d{2}:\d{2}) (\S+) ([\w\-./]+?)(?:\[(\d+)\])?: (.*)`)

	ipv4Re = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
)

func parseFail2ban(line string, now time.Time) *model.LogEvent {
	m := fail2banRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	e := &model.LogEvent{
		Timestamp: parseFullTime(m[1], now),
		Source:    model.SourceFail2ban,
		Message:   line,
		Level:     model.LevelWarning,
		Service:   m[2],
		IP:        m[4],
		Metadata:  map[string]any{"jail": m[2]},
	}
	switch m[3] {
	case "Ban":
		e.Action = model.ActionBan
		e.Level = model.LevelError
	case "Unban":
		e.Action = model.ActionUnban
		e.Level = model.LevelInfo
	case "Found":
		e.Action = model.ActionFound
	}
	return e
}

func parseAuth(line string, now time.Time) *model.LogEvent {
	if m := authFailedRe.FindStringSubmatch(line); m != nil {
		return &model.LogEvent{
			Timestamp: parseSyslogTime(m[1], now),
			Source:    model.SourceAuth,
			Message:   line,
			Level:     model.LevelWarning,
			Service:   "sshd",
			Action:    model.ActionFailedLogin,
			User:      m[2],
			IP:        m[3],
		}
	}
	if m := authAcceptedRe.FindStringSubmatch(line); m != nil {
		return &model.LogEvent{
			Timestamp: parseSyslogTime(m[1], now),
			Source:    model.SourceAuth,
			Message:   line,
			Level:     model.LevelInfo,
			Service:   "sshd",
			Action:    model.ActionSuccessfulLogin,
			User:      m[2],
			IP:        m[3],
		}
	}
	return nil
}

func parseNginx(line string, now time.Time) *model.LogEvent {
	m := nginxRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	status, _ := strconv.Atoi(m[6])
	level := model.LevelInfo
	switch {
	case status >= 500:
		level = model.LevelError
	case status >= 400:
		level = model.LevelWarning
	}
	meta := map[string]any{"method": m[4], "path": m[5], "status": status}
	if m[7] != "-" {
		if size, err := strconv.Atoi(m[7]); err == nil {
			meta["bytes"] = size
		}
	}
	e := &model.LogEvent{
		Timestamp: parseNginxTime(m[3], now),
		Source:    model.SourceNginx,
		Message:   line,
		Level:     level,
		Service:   "nginx",
		Action:    model.ActionHTTPRequest,
		IP:        m[1],
		Metadata:  meta,
	}
	if m[2] != "-" {
		e.User = m[2]
	}
	return e
}

func parseDjango(line string, now time.Time) *model.LogEvent {
	if m := djangoBracketRe.FindStringSubmatch(line); m != nil {
		return &model.LogEvent{
			Timestamp: now.Unix(),
			Source:    model.SourceDjango,
			Message:   m[2],
			Level:     normalizeLevel(m[1]),
			Service:   "django",
			IP:        extractIP(m[2]),
		}
	}
	if m := djangoPlainRe.FindStringSubmatch(line); m != nil {
		return &model.LogEvent{
			Timestamp: parseFullTime(m[2], now),
			Source:    model.SourceDjango,
			Message:   m[3],
			Level:     normalizeLevel(m[1]),
			Service:   "django",
			IP:        extractIP(m[3]),
		}
	}
	return nil
}

func parseSyslog(line string, now time.Time) *model.LogEvent {
	m := syslogRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	msg := m[5]
	e := &model.LogEvent{
		Timestamp: parseSyslogTime(m[1], now),
		Source:    model.SourceSyslog,
		Message:   msg,
		Level:     levelFromKeywords(msg),
		Service:   m[3],
		IP:        extractIP(msg),
	}
	if m[4] != "" {
		if pid, err := strconv.Atoi(m[4]); err == nil {
			e.Metadata = map[string]any{"pid": pid}
		}
	}
	return e
}

// parseGeneric accepts every line, mapping error keywords to a level and
// defaulting to info.
func parseGeneric(line string, now time.Time) *model.LogEvent {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	return &model.LogEvent{
		Timestamp: now.Unix(),
		Source:    "generic",
		Message:   trimmed,
		Level:     levelFromKeywords(trimmed),
		IP:        extractIP(trimmed),
	}
}

func levelFromKeywords(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "fatal"):
		return model.LevelCritical
	case strings.Contains(lower, "error"):
		return model.LevelError
	case strings.Contains(lower, "warn"):
		return model.LevelWarning
	default:
		return model.LevelInfo
	}
}

func normalizeLevel(level string) string {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return model.LevelDebug
	case "WARNING", "WARN":
		return model.LevelWarning
	case "ERROR":
		return model.LevelError
	case "CRITICAL", "FATAL":
		return model.LevelCritical
	default:
		return model.LevelInfo
	}
}

// extractIP pulls the first IPv4 literal out of a message, if any. Some
// upstream formats bury the address mid-sentence; a miss is fine and callers
// must tolerate an empty IP.
func extractIP(msg string) string {
	return ipv4Re.FindString(msg)
}

// parseFullTime parses "2006-01-02 15:04:05" in local time.
func parseFullTime(s string, now time.Time) int64 {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	if err != nil {
		return now.Unix()
	}
	return t.Unix()
}

// parseSyslogTime parses the year-less "Jan 2 15:04:05" header, assuming the
// current year; a result in the future by more than a day rolls back a year
// (log written in December, read in January).
func parseSyslogTime(s string, now time.Time) int64 {
	s = strings.Join(strings.Fields(s), " ")
	t, err := time.ParseInLocation("Jan 2 15:04:05", s, time.Local)
	if err != nil {
		return now.Unix()
	}
	t = t.AddDate(now.Year(), 0, 0)
	if t.After(now.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return t.Unix()
}

// parseNginxTime parses "02/Jan/2006:15:04:05 -0700".
func parseNginxTime(s string, now time.Time) int64 {
	t, err := time.Parse("02/Jan/2006:15:04:05 -0700", s)
	if err != nil {
		return now.Unix()
	}
	return t.Unix()
}
