package model

import "time"

// HourlyAggregate is the roll-up of one hour of raw samples and events,
// keyed uniquely by the hour boundary timestamp. Recomputed idempotently.
type HourlyAggregate struct {
	HourTS int64 `json:"hour_ts"`

	AvgCPUPercent    *float64 `json:"avg_cpu_percent,omitempty"`
	MaxCPUPercent    *float64 `json:"max_cpu_percent,omitempty"`
	AvgMemoryPercent *float64 `json:"avg_memory_percent,omitempty"`
	MaxMemoryPercent *float64 `json:"max_memory_percent,omitempty"`
	AvgDiskPercent   *float64 `json:"avg_disk_percent,omitempty"`
	MaxDiskPercent   *float64 `json:"max_disk_percent,omitempty"`

	// Network totals are window deltas (last - first per cumulative counter,
	// clamped to zero on counter reset), not sums of raw cumulative values.
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`

	TotalEvents    int64 `json:"total_events"`
	ErrorEvents    int64 `json:"error_events"`
	WarningEvents  int64 `json:"warning_events"`
	SecurityEvents int64 `json:"security_events"`
	SampleCount    int64 `json:"sample_count"`
}

// DailyAggregate rolls hourly rows into one row per UTC date, plus
// distinct-IP/user counts taken from the raw events of that day.
type DailyAggregate struct {
	Date string `json:"date"` // YYYY-MM-DD UTC

	AvgCPUPercent    *float64 `json:"avg_cpu_percent,omitempty"`
	MaxCPUPercent    *float64 `json:"max_cpu_percent,omitempty"`
	AvgMemoryPercent *float64 `json:"avg_memory_percent,omitempty"`
	MaxMemoryPercent *float64 `json:"max_memory_percent,omitempty"`
	AvgDiskPercent   *float64 `json:"avg_disk_percent,omitempty"`

	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`

	TotalEvents    int64 `json:"total_events"`
	ErrorEvents    int64 `json:"error_events"`
	SecurityEvents int64 `json:"security_events"`
	UniqueIPs      int64 `json:"unique_ips"`
	UniqueUsers    int64 `json:"unique_users"`
	HourCount      int64 `json:"hour_count"`
}

// HourStart truncates a unix timestamp to its hour boundary.
func HourStart(ts int64) int64 {
	return ts - ts%3600
}

// DateOf formats a unix timestamp as its YYYY-MM-DD UTC date.
func DateOf(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// DayBounds returns the [start, end) unix range covering a YYYY-MM-DD UTC date.
func DayBounds(date string) (int64, int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, err
	}
	start := t.UTC().Unix()
	return start, start + 86400, nil
}
