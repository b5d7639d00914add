// Package query is the fluent read surface over the store. Builders are
// plain values; every chained call copies, so a partially built query can be
// reused and terminators never mutate shared state.
package query

import (
	"fmt"
	"time"

	"github.com/avolkhov/logly/internal/store"
)

// DefaultWindowHours is the lookback applied when a builder sets no time
// range.
const DefaultWindowHours = 24

// Q is the entry point; one per store.
type Q struct {
	store *store.Store
}

// New builds the query surface.
func New(s *store.Store) *Q {
	return &Q{store: s}
}

// Events starts an event query.
func (q *Q) Events() EventsQuery {
	return EventsQuery{store: q.store, window: defaultWindow()}
}

// Metrics starts a metric query; refine with System or Network.
func (q *Q) Metrics() MetricsQuery {
	return MetricsQuery{store: q.store}
}

// Traces starts an event-trace query.
func (q *Q) Traces() TracesQuery {
	return TracesQuery{store: q.store, window: defaultWindow()}
}

// Errors starts an error-trace query.
func (q *Q) Errors() ErrorsQuery {
	return ErrorsQuery{store: q.store, window: defaultWindow()}
}

// IPs starts a reputation query. Reputation rows are not time-scoped.
func (q *Q) IPs() IPsQuery {
	return IPsQuery{store: q.store}
}

type window struct {
	start int64
	end   int64
}

func defaultWindow() window {
	now := time.Now().Unix()
	return window{start: now - DefaultWindowHours*3600, end: now}
}

func lastHours(n int) window {
	now := time.Now().Unix()
	return window{start: now - int64(n)*3600, end: now}
}

func lastDays(n int) window {
	now := time.Now().Unix()
	return window{start: now - int64(n)*86400, end: now}
}

// errNoRows is returned by First/Latest/reducers on an empty result.
var errNoRows = fmt.Errorf("query matched no rows")

// IsNoRows reports whether an error means the query matched nothing.
func IsNoRows(err error) bool { return err == errNoRows }
