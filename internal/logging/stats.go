package logging

import (
	"maps"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
)

// StatsReporter is a tally reporter that logs every reported metric at
// debug level and keeps running counter totals for display.
type StatsReporter struct {
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
}

var _ tally.StatsReporter = (*StatsReporter)(nil)

// NewStatsReporter creates a reporter logging to logger.
func NewStatsReporter(logger *zap.Logger) *StatsReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsReporter{
		logger:   logger,
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// Counters returns the counter totals reported so far.
func (r *StatsReporter) Counters() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.counters)
}

// Gauges returns the last reported gauge values.
func (r *StatsReporter) Gauges() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.gauges)
}

// ReportCounter implements tally.StatsReporter. value is the change since
// the previous report.
func (r *StatsReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.mu.Lock()
	r.counters[name] += value
	total := r.counters[name]
	r.mu.Unlock()

	r.logger.Debug("counter",
		zap.String("name", name),
		zap.Int64("delta", value),
		zap.Int64("total", total),
		zap.Any("tags", tags))
}

// ReportGauge implements tally.StatsReporter.
func (r *StatsReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()

	r.logger.Debug("gauge",
		zap.String("name", name),
		zap.Float64("value", value),
		zap.Any("tags", tags))
}

// ReportTimer implements tally.StatsReporter.
func (r *StatsReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.logger.Debug("timer",
		zap.String("name", name),
		zap.Duration("value", interval),
		zap.Any("tags", tags))
}

// ReportHistogramValueSamples implements tally.StatsReporter.
func (r *StatsReporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	bucketLowerBound,
	bucketUpperBound float64,
	samples int64,
) {
	r.logger.Debug("histogram",
		zap.String("name", name),
		zap.Float64("lower", bucketLowerBound),
		zap.Float64("upper", bucketUpperBound),
		zap.Int64("samples", samples),
		zap.Any("tags", tags))
}

// ReportHistogramDurationSamples implements tally.StatsReporter.
func (r *StatsReporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	bucketLowerBound,
	bucketUpperBound time.Duration,
	samples int64,
) {
	r.logger.Debug("histogram",
		zap.String("name", name),
		zap.Duration("lower", bucketLowerBound),
		zap.Duration("upper", bucketUpperBound),
		zap.Int64("samples", samples),
		zap.Any("tags", tags))
}

// Capabilities implements tally.StatsReporter.
func (r *StatsReporter) Capabilities() tally.Capabilities {
	return reporterCapabilities{}
}

// Flush implements tally.StatsReporter.
func (r *StatsReporter) Flush() {}

type reporterCapabilities struct{}

func (reporterCapabilities) Reporting() bool { return true }
func (reporterCapabilities) Tagging() bool   { return true }
