package query

import (
	"sort"

	"github.com/avolkhov/logly/internal/model"
	"github.com/avolkhov/logly/internal/store"
)

// TracesQuery selects event traces.
type TracesQuery struct {
	store       *store.Store
	window      window
	source      string
	minSeverity float64
	limit       int
}

func (q TracesQuery) InLastHours(n int) TracesQuery {
	q.window = lastHours(n)
	return q
}

func (q TracesQuery) InLastDays(n int) TracesQuery {
	q.window = lastDays(n)
	return q
}

func (q TracesQuery) Between(start, end int64) TracesQuery {
	q.window = window{start: start, end: end}
	return q
}

func (q TracesQuery) BySource(source string) TracesQuery {
	q.source = source
	return q
}

// WithSeverity keeps traces scored at or above min.
func (q TracesQuery) WithSeverity(min float64) TracesQuery {
	q.minSeverity = min
	return q
}

// CriticalOnly keeps traces in the critical band.
func (q TracesQuery) CriticalOnly() TracesQuery {
	return q.WithSeverity(81)
}

// HighSeverity keeps traces in the high band and above.
func (q TracesQuery) HighSeverity() TracesQuery {
	return q.WithSeverity(61)
}

func (q TracesQuery) Limit(n int) TracesQuery {
	q.limit = n
	return q
}

func (q TracesQuery) All() ([]model.EventTrace, error) {
	return q.store.GetTraces(q.window.start, q.window.end, q.source, q.minSeverity, q.limit)
}

func (q TracesQuery) Count() (int, error) {
	rows, err := q.All()
	return len(rows), err
}

func (q TracesQuery) Latest() (*model.EventTrace, error) {
	rows, err := q.All()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return &rows[0], nil
}

// ErrorsQuery selects error traces.
type ErrorsQuery struct {
	store    *store.Store
	window   window
	category string
	limit    int
}

func (q ErrorsQuery) InLastHours(n int) ErrorsQuery {
	q.window = lastHours(n)
	return q
}

func (q ErrorsQuery) InLastDays(n int) ErrorsQuery {
	q.window = lastDays(n)
	return q
}

func (q ErrorsQuery) Between(start, end int64) ErrorsQuery {
	q.window = window{start: start, end: end}
	return q
}

// ByCategory keeps traces in one taxonomy category.
func (q ErrorsQuery) ByCategory(category string) ErrorsQuery {
	q.category = category
	return q
}

// DatabaseErrors keeps database-category traces.
func (q ErrorsQuery) DatabaseErrors() ErrorsQuery { return q.ByCategory("database") }

// ResourceErrors keeps resource-category traces (memory, disk).
func (q ErrorsQuery) ResourceErrors() ErrorsQuery { return q.ByCategory("resource") }

// NetworkErrors keeps network-category traces.
func (q ErrorsQuery) NetworkErrors() ErrorsQuery { return q.ByCategory("network") }

func (q ErrorsQuery) Limit(n int) ErrorsQuery {
	q.limit = n
	return q
}

func (q ErrorsQuery) All() ([]model.ErrorTrace, error) {
	return q.store.GetErrorTraces(q.window.start, q.window.end, q.category, q.limit)
}

func (q ErrorsQuery) Count() (int, error) {
	rows, err := q.All()
	return len(rows), err
}

// Patterns returns the grouped error pattern counts for the window.
func (q ErrorsQuery) Patterns() (*store.ErrorPatterns, error) {
	return q.store.GetErrorPatterns(q.window.start, q.window.end)
}

// IPsQuery selects reputation rows.
type IPsQuery struct {
	store      *store.Store
	ip         string
	minThreat  float64
	byActivity bool
}

// ForIP narrows to one address.
func (q IPsQuery) ForIP(ip string) IPsQuery {
	q.ip = ip
	return q
}

// HighThreat keeps addresses at or above the conventional threshold of 70.
func (q IPsQuery) HighThreat() IPsQuery {
	if q.minThreat < 70 {
		q.minThreat = 70
	}
	return q
}

// WithThreatAbove keeps addresses scored above n.
func (q IPsQuery) WithThreatAbove(n float64) IPsQuery {
	q.minThreat = n
	return q
}

// SortByThreat orders results by threat score descending (the default).
func (q IPsQuery) SortByThreat() IPsQuery {
	q.byActivity = false
	return q
}

// SortByActivity orders results by total event count descending.
func (q IPsQuery) SortByActivity() IPsQuery {
	q.byActivity = true
	return q
}

func (q IPsQuery) All() ([]model.IPReputation, error) {
	if q.ip != "" {
		rep, err := q.store.GetIPReputation(q.ip)
		if err != nil {
			return nil, err
		}
		if rep == nil || rep.ThreatScore < q.minThreat {
			return nil, nil
		}
		return []model.IPReputation{*rep}, nil
	}

	var rows []model.IPReputation
	var err error
	if q.minThreat > 0 {
		rows, err = q.store.GetHighThreatIPs(q.minThreat)
	} else {
		rows, err = q.store.GetAllIPReputations()
	}
	if err != nil {
		return nil, err
	}
	if q.byActivity {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].TotalEvents > rows[j].TotalEvents
		})
	} else {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ThreatScore > rows[j].ThreatScore
		})
	}
	return rows, nil
}

func (q IPsQuery) Count() (int, error) {
	rows, err := q.All()
	return len(rows), err
}

// First returns the top row under the current ordering.
func (q IPsQuery) First() (*model.IPReputation, error) {
	rows, err := q.All()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return &rows[0], nil
}
