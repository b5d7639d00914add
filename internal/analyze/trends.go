package analyze

import (
	"math"
	"sort"
	"time"

	"github.com/avolkhov/logly/internal/model"
)

// ResourceTrends computes per-metric trend reports over the trailing window.
// Metrics with no samples are omitted.
func (a *Analyzer) ResourceTrends(days int) (map[string]*model.TrendReport, error) {
	now := time.Now().Unix()
	start := now - int64(days)*86400

	metrics, err := a.store.GetSystemMetrics(start, now, 0)
	if err != nil {
		return nil, err
	}

	type series struct {
		ts     []int64
		values []float64
	}
	byMetric := map[string]*series{}
	add := func(name string, ts int64, v *float64) {
		if v == nil {
			return
		}
		s, ok := byMetric[name]
		if !ok {
			s = &series{}
			byMetric[name] = s
		}
		s.ts = append(s.ts, ts)
		s.values = append(s.values, *v)
	}

	// Store order is ts DESC; series are built oldest-first for the slope.
	for i := len(metrics) - 1; i >= 0; i-- {
		m := metrics[i]
		add("cpu_percent", m.Timestamp, m.CPUPercent)
		add("memory_percent", m.Timestamp, m.MemoryPercent)
		add("disk_percent", m.Timestamp, m.DiskPercent)
		add("load_1min", m.Timestamp, m.Load1Min)
	}

	out := map[string]*model.TrendReport{}
	for name, s := range byMetric {
		out[name] = trendReport(name, days, s.ts, s.values)
	}
	return out, nil
}

// trendReport derives the descriptive statistics and least-squares trend for
// one metric series.
func trendReport(metric string, days int, ts []int64, values []float64) *model.TrendReport {
	n := len(values)
	report := &model.TrendReport{Metric: metric, WindowDays: days, SampleCount: n}
	if n == 0 {
		report.Direction = model.TrendStable
		return report
	}

	report.Min, report.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < report.Min {
			report.Min = v
		}
		if v > report.Max {
			report.Max = v
		}
		sum += v
	}
	report.Avg = sum / float64(n)
	report.Median = median(values)

	var sq float64
	for _, v := range values {
		d := v - report.Avg
		sq += d * d
	}
	report.StdDev = math.Sqrt(sq / float64(n))

	report.Slope, report.Strength = leastSquares(values)
	switch {
	case math.Abs(report.Slope) < 0.01:
		report.Direction = model.TrendStable
	case report.Slope > 0:
		report.Direction = model.TrendIncreasing
	default:
		report.Direction = model.TrendDecreasing
	}

	if report.StdDev > 0 {
		for i, v := range values {
			dev := math.Abs(v-report.Avg) / report.StdDev
			if dev <= 2 {
				continue
			}
			report.Anomalies = append(report.Anomalies, model.TrendAnomaly{
				Timestamp: ts[i],
				Value:     v,
				Deviation: dev,
			})
			if len(report.Anomalies) == 10 {
				break
			}
		}
	}
	return report
}

// leastSquares fits y = a + b*i over the sample index and returns the slope
// and the fit strength sqrt(R^2) clamped to [0, 1].
func leastSquares(values []float64) (slope, strength float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fit := intercept + slope*float64(i)
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		return slope, 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	strength = math.Sqrt(r2)
	if strength > 1 {
		strength = 1
	}
	return slope, strength
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
