package query

import (
	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

// EventsQuery selects log events.
type EventsQuery struct {
	store  *store.Store
	window window
	source string
	level  string

	// errorClass widens the single-level filter to error and critical.
	errorClass bool
	limit      int
}

// InLastHours scopes the query to the trailing n hours.
func (q EventsQuery) InLastHours(n int) EventsQuery {
	q.window = lastHours(n)
	return q
}

// InLastDays scopes the query to the trailing n days.
func (q EventsQuery) InLastDays(n int) EventsQuery {
	q.window = lastDays(n)
	return q
}

// Between scopes the query to [start, end].
func (q EventsQuery) Between(start, end int64) EventsQuery {
	q.window = window{start: start, end: end}
	return q
}

// WithLevel keeps only events at the given level.
func (q EventsQuery) WithLevel(level string) EventsQuery {
	q.level = level
	q.errorClass = false
	return q
}

// BySource keeps only events from the given source.
func (q EventsQuery) BySource(source string) EventsQuery {
	q.source = source
	return q
}

// ErrorsOnly keeps error and critical events.
func (q EventsQuery) ErrorsOnly() EventsQuery {
	q.level = ""
	q.errorClass = true
	return q
}

// WarningsOnly keeps warning events.
func (q EventsQuery) WarningsOnly() EventsQuery {
	return q.WithLevel(model.LevelWarning)
}

// Limit caps the result size; 0 means unlimited.
func (q EventsQuery) Limit(n int) EventsQuery {
	q.limit = n
	return q
}

// All materializes the matching events, newest first.
func (q EventsQuery) All() ([]model.LogEvent, error) {
	events, err := q.store.GetLogEvents(q.window.start, q.window.end, q.source, q.level, q.limit)
	if err != nil {
		return nil, err
	}
	if !q.errorClass {
		return events, nil
	}
	out := events[:0]
	for _, e := range events {
		if e.IsError() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count returns the number of matching events.
func (q EventsQuery) Count() (int, error) {
	events, err := q.All()
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// Latest returns the newest matching event.
func (q EventsQuery) Latest() (*model.LogEvent, error) {
	events, err := q.All()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errNoRows
	}
	return &events[0], nil
}

// First returns the oldest matching event.
func (q EventsQuery) First() (*model.LogEvent, error) {
	events, err := q.All()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errNoRows
	}
	return &events[len(events)-1], nil
}
