package tm

import (
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Engine Metrics
// --------------------------------------------------------------------------

// Counters are process-wide and aggregated over all regions. They are
// exported in Prometheus format via metrics.WritePrometheus by whoever
// embeds the engine.
var (
	metricCommitsRO = metrics.NewCounter(`gotm_commits_total{mode="ro"}`)
	metricCommitsRW = metrics.NewCounter(`gotm_commits_total{mode="rw"}`)

	metricAbortsStaleRead      = metrics.NewCounter(`gotm_aborts_total{reason="stale_read"}`)
	metricAbortsLockContention = metrics.NewCounter(`gotm_aborts_total{reason="lock_contention"}`)
	metricAbortsValidation     = metrics.NewCounter(`gotm_aborts_total{reason="validation"}`)
	metricAbortsBadAddress     = metrics.NewCounter(`gotm_aborts_total{reason="bad_address"}`)

	metricSegmentsAllocated = metrics.NewCounter("gotm_segments_allocated_total")
	metricSegmentsFreed     = metrics.NewCounter("gotm_segments_freed_total")
)

// abortReason classifies why a transaction was aborted, for metrics only;
// callers of the public API just see the boolean.
type abortReason int

const (
	abortStaleRead abortReason = iota
	abortLockContention
	abortValidation
	abortBadAddress
)

func countAbort(reason abortReason) {
	switch reason {
	case abortStaleRead:
		metricAbortsStaleRead.Inc()
	case abortLockContention:
		metricAbortsLockContention.Inc()
	case abortValidation:
		metricAbortsValidation.Inc()
	case abortBadAddress:
		metricAbortsBadAddress.Inc()
	}
}
