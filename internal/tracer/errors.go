package tracer

import (
	"regexp"
	"strings"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// Error categories.
const (
	CategoryDatabase    = "database"
	CategoryResource    = "resource"
	CategoryNetwork     = "network"
	CategorySecurity    = "security"
	CategoryApplication = "application"
)

type errorPattern struct {
	errorType string
	category  string
	re        *regexp.Regexp
	bump      float64
	hints     []string
	recovery  []string
}

// taxonomy is ordered; the first match wins. Patterns are matched against the
// lowercased message.
var taxonomy = []errorPattern{
	{
		errorType: "db_connection",
		category:  CategoryDatabase,
		re:        regexp.MustCompile(`(connection refused|could not connect|connection reset).*(database|postgres|mysql|db)|(database|postgres|mysql).*(connection refused|could not connect|unreachable)`),
		bump:      20,
		hints:     []string{"database server down or not accepting connections", "connection pool exhausted"},
		recovery:  []string{"check the database service status", "verify connection limits and pool size"},
	},
	{
		errorType: "oom",
		category:  CategoryResource,
		re:        regexp.MustCompile(`out of memory|oom[-_]?kill|cannot allocate memory|memoryerror`),
		bump:      25,
		hints:     []string{"process exceeded available memory", "memory leak or undersized host"},
		recovery:  []string{"inspect recent memory growth", "raise limits or add swap", "restart the affected service"},
	},
	{
		errorType: "disk_full",
		category:  CategoryResource,
		re:        regexp.MustCompile(`no space left on device|disk (is )?full|write error.*space`),
		bump:      25,
		hints:     []string{"filesystem at capacity"},
		recovery:  []string{"remove or compress old logs", "extend the volume"},
	},
	{
		errorType: "connection_timeout",
		category:  CategoryNetwork,
		re:        regexp.MustCompile(`(connection|request|read|write) timed? ?out|timeout (exceeded|expired)|deadline exceeded`),
		bump:      15,
		hints:     []string{"upstream slow or unreachable", "network path degraded"},
		recovery:  []string{"check upstream health", "review timeout budgets"},
	},
	{
		errorType: "connection_refused",
		category:  CategoryNetwork,
		re:        regexp.MustCompile(`connection refused|no route to host|network (is )?unreachable`),
		bump:      15,
		hints:     []string{"target service not listening", "firewall rejecting traffic"},
		recovery:  []string{"confirm the service is running and bound", "check firewall rules"},
	},
	{
		errorType: "permission_denied",
		category:  CategorySecurity,
		re:        regexp.MustCompile(`permission denied|access denied|operation not permitted|unauthorized`),
		bump:      10,
		hints:     []string{"process lacks required privileges", "possible probing of protected paths"},
		recovery:  []string{"audit file ownership and modes", "review the requesting principal"},
	},
	{
		errorType: "auth_failure",
		category:  CategorySecurity,
		re:        regexp.MustCompile(`authentication fail|invalid (password|credentials)|failed password|login failed`),
		bump:      10,
		hints:     []string{"bad credentials or credential stuffing"},
		recovery:  []string{"check the source address reputation", "rotate affected credentials"},
	},
	{
		errorType: "segfault",
		category:  CategoryApplication,
		re:        regexp.MustCompile(`segfault|segmentation fault|core dumped|panic:`),
		bump:      20,
		hints:     []string{"process crashed"},
		recovery:  []string{"collect the core or stack trace", "check for a recent deploy"},
	},
}

// ErrorTracer classifies error messages against the fixed taxonomy.
type ErrorTracer struct{}

func NewErrorTracer() *ErrorTracer { return &ErrorTracer{} }

// Trace matches an event's message. Unmatched error events still get a trace
// in the application category with no bump; non-error events return nil.
func (t *ErrorTracer) Trace(e *model.LogEvent) *model.ErrorTrace {
	if !e.IsError() {
		return nil
	}
	ts := e.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	lower := strings.ToLower(e.Message)
	for _, p := range taxonomy {
		if p.re.MatchString(lower) {
			return &model.ErrorTrace{
				Timestamp:           ts,
				Source:              e.Source,
				ErrorType:           p.errorType,
				Category:            p.category,
				Message:             e.Message,
				SeverityBump:        p.bump,
				RootCauseHints:      p.hints,
				RecoverySuggestions: p.recovery,
			}
		}
	}
	return &model.ErrorTrace{
		Timestamp: ts,
		Source:    e.Source,
		ErrorType: "unclassified",
		Category:  CategoryApplication,
		Message:   e.Message,
	}
}

// Categorize returns just the (error_type, category) pair for a message.
func (t *ErrorTracer) Categorize(message string) (string, string) {
	lower := strings.ToLower(message)
	for _, p := range taxonomy {
		if p.re.MatchString(lower) {
			return p.errorType, p.category
		}
	}
	return "unclassified", CategoryApplication
}
