package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/collector"
	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/model"
)

// MetricWriter is the store slice the sample tasks write through.
type MetricWriter interface {
	InsertSystemMetric(m *model.SystemMetric) error
	InsertNetworkMetric(m *model.NetworkMetric) error
}

// Maintainer is the store slice the roll-up and retention tasks use.
type Maintainer interface {
	ComputeHourlyAggregates(hourTS int64) error
	ComputeDailyAggregates(date string) error
	CleanupOldData(retentionDays int) (int64, error)
}

// LogTailer ingests new log lines.
type LogTailer interface {
	TailAll(ctx context.Context) (int, error)
}

// BuildTasks assembles the standard task set from configuration. Declaration
// order here is the RunOnce order: samples, then tail, then roll-ups, then
// retention, so a one-shot run aggregates what it just collected.
func BuildTasks(cfg *config.Config, samplers []collector.Sampler, tailer LogTailer, store interface {
	MetricWriter
	Maintainer
}, log *zap.SugaredLogger) []Task {
	var tasks []Task

	intervals := map[string]time.Duration{
		"system_metrics":  time.Duration(cfg.Collection.SystemMetrics) * time.Second,
		"network_metrics": time.Duration(cfg.Collection.NetworkMetrics) * time.Second,
	}
	for _, s := range samplers {
		if !s.Enabled() {
			continue
		}
		interval, ok := intervals[s.Name()]
		if !ok {
			interval = time.Minute
		}
		tasks = append(tasks, Task{
			Name:     s.Name(),
			Interval: interval,
			Fn:       sampleTask(s, store),
		})
	}

	if cfg.Logs.Enabled && tailer != nil {
		tasks = append(tasks, Task{
			Name:     "log_tail",
			Interval: time.Duration(cfg.Collection.LogParsing) * time.Second,
			Fn: func(ctx context.Context) error {
				n, err := tailer.TailAll(ctx)
				if n > 0 {
					log.Debugw("log lines ingested", "events", n)
				}
				return err
			},
		})
	}

	if cfg.Aggregation.Enabled {
		tasks = append(tasks, Task{
			Name:     "rollup",
			Interval: time.Hour,
			Fn:       rollupTask(store, time.Now),
		})
	}

	tasks = append(tasks, Task{
		Name:     "retention",
		Interval: 24 * time.Hour,
		Fn: func(ctx context.Context) error {
			deleted, err := store.CleanupOldData(cfg.Database.RetentionDays)
			if deleted > 0 {
				log.Infow("retention sweep", "deleted", deleted)
			}
			return err
		},
	})

	return tasks
}

func sampleTask(s collector.Sampler, w MetricWriter) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		res, err := s.Sample(ctx)
		if err != nil {
			return err
		}
		switch {
		case res == nil:
			return errors.New("sampler returned nothing")
		case res.System != nil:
			return w.InsertSystemMetric(res.System)
		case res.Network != nil:
			return w.InsertNetworkMetric(res.Network)
		}
		return nil
	}
}

// rollupTask aggregates the last completed hour on every run and, in the
// first hour after midnight, yesterday's daily roll-up as well. Both
// operations replace their row, so repeated runs are harmless.
func rollupTask(m Maintainer, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		t := now()
		prevHour := model.HourStart(t.Unix()) - 3600
		if err := m.ComputeHourlyAggregates(prevHour); err != nil {
			return err
		}
		if t.Hour() == 0 {
			yesterday := model.DateOf(t.AddDate(0, 0, -1).Unix())
			return m.ComputeDailyAggregates(yesterday)
		}
		return nil
	}
}
