package tracer

import (
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// serviceAdjacency names the services that commonly sit next to each other
// on the hosts this daemon watches. Static on purpose: discovery would need
// privileged probes the tracer should not depend on.
var serviceAdjacency = map[string][]string{
	"sshd":     {"fail2ban", "systemd-logind"},
	"fail2ban": {"sshd", "iptables"},
	"nginx":    {"gunicorn", "php-fpm", "django"},
	"django":   {"gunicorn", "nginx", "postgres", "redis"},
	"gunicorn": {"django", "nginx"},
	"postgres": {"django"},
	"redis":    {"django"},
	"systemd":  {},
	"kernel":   {},
}

// causalityChains maps a recognized action to its canned chain.
var causalityChains = map[string][]string{
	model.ActionFailedLogin: {
		"repeated failed logins from remote host",
		"authentication threshold at risk",
		"fail2ban ban likely if pattern continues",
	},
	model.ActionBan: {
		"failed logins crossed the jail threshold",
		"fail2ban issued a ban",
		"source address blocked at the firewall",
	},
}

// severity bases per log level.
var levelSeverity = map[string]float64{
	model.LevelDebug:    5,
	model.LevelInfo:     10,
	model.LevelWarning:  40,
	model.LevelError:    70,
	model.LevelCritical: 90,
}

// action bumps on top of the level base.
var actionSeverity = map[string]float64{
	model.ActionBan:         15,
	model.ActionFailedLogin: 10,
	model.ActionFound:       5,
}

// EventTracer scores events and attaches static service context. Pure; no
// platform probes.
type EventTracer struct{}

func NewEventTracer() *EventTracer { return &EventTracer{} }

// Trace builds the base EventTrace for an event.
func (t *EventTracer) Trace(e *model.LogEvent) *model.EventTrace {
	trace := &model.EventTrace{
		Timestamp:       e.Timestamp,
		Source:          e.Source,
		Level:           e.Level,
		SeverityScore:   t.Severity(e),
		Trigger:         e.Action,
		CausalityChain:  causalityChains[e.Action],
		RelatedServices: serviceAdjacency[e.Service],
		TracersUsed:     []string{"event"},
	}
	if trace.Timestamp == 0 {
		trace.Timestamp = time.Now().Unix()
	}
	return trace
}

// Severity derives a score from level, action, and the optional metadata
// count (each repeat adds 2, capped at 10 repeats).
func (t *EventTracer) Severity(e *model.LogEvent) float64 {
	score := levelSeverity[e.Level]
	score += actionSeverity[e.Action]
	if count, ok := e.MetadataInt("count"); ok && count > 1 {
		repeats := count
		if repeats > 10 {
			repeats = 10
		}
		score += 2 * float64(repeats)
	}
	return model.ClampScore(score)
}

// RelatedServices exposes the adjacency lookup.
func (t *EventTracer) RelatedServices(service string) []string {
	return serviceAdjacency[service]
}
