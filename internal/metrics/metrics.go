// Package metrics exposes Prometheus collectors describing batch decode runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CauseDecoded labels files that produced a value.
const CauseDecoded = "Decoded"

// Collector records per-file outcomes. A nil *Collector is valid and records nothing.
type Collector struct {
	filesTotal    *prometheus.CounterVec
	fileDuration  prometheus.Histogram
	inkCoverage   prometheus.Histogram
	invertedTotal prometheus.Counter
}

// New registers the qrscan collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrscan_files_total",
				Help: "Total number of processed files by outcome cause",
			},
			[]string{"cause"}, // Decoded, LoadError, NormalizationError, NoCodeFound, DecodeError
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qrscan_file_duration_seconds",
				Help:    "Time spent loading, normalizing and decoding a single file",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		inkCoverage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qrscan_ink_coverage_percent",
				Help:    "Ink coverage of the binarized image before the polarity decision",
				Buckets: prometheus.LinearBuckets(10, 10, 9),
			},
		),
		invertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qrscan_inverted_total",
				Help: "Total number of images whose polarity was inverted",
			},
		),
	}
}

// Observe records one file outcome. Coverage and inversion are only recorded
// when the image reached the polarity step.
func (c *Collector) Observe(cause string, normalized bool, coverage float64, inverted bool, d time.Duration) {
	if c == nil {
		return
	}
	if cause == "" {
		cause = CauseDecoded
	}
	c.filesTotal.WithLabelValues(cause).Inc()
	c.fileDuration.Observe(d.Seconds())
	if !normalized {
		return
	}
	c.inkCoverage.Observe(coverage)
	if inverted {
		c.invertedTotal.Inc()
	}
}

// WriteTextfile writes everything gathered from g to path in the node exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
