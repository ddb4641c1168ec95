package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	tempResumesStagedTotal    atomic.Uint64
	tempResumesSavedTotal     atomic.Uint64
	tempResumesDiscardedTotal atomic.Uint64
	tempResumesExpiredTotal   atomic.Uint64
	orphanFilesRemovedTotal   atomic.Uint64
	sweepFailuresTotal        atomic.Uint64
	sweepsTotal               atomic.Uint64
	sweepsSkippedTotal        atomic.Uint64

	analysisStartedTotal       atomic.Uint64
	analysisCompletedTotal     atomic.Uint64
	analysisFailedTotal        atomic.Uint64
	analysisParseFallbackTotal atomic.Uint64

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	sweepDuration    = newHistogram([]float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000})

	failuresMu sync.Mutex
	failures   = map[string]uint64{}
)

func IncTempResumeStaged()    { tempResumesStagedTotal.Add(1) }
func IncTempResumeSaved()     { tempResumesSavedTotal.Add(1) }
func IncTempResumeDiscarded() { tempResumesDiscardedTotal.Add(1) }

// AddExpired adds n reclaimed expired records.
func AddExpired(n int) { tempResumesExpiredTotal.Add(uint64(max(n, 0))) }

// AddOrphansRemoved adds n removed orphan staged files.
func AddOrphansRemoved(n int) { orphanFilesRemovedTotal.Add(uint64(max(n, 0))) }

// AddSweepFailures adds n per-item sweep failures.
func AddSweepFailures(n int) { sweepFailuresTotal.Add(uint64(max(n, 0))) }

// IncSweepSkipped counts a tick dropped because the previous sweep was still running.
func IncSweepSkipped() { sweepsSkippedTotal.Add(1) }

// ObserveSweepDurationMs records one completed sweep.
func ObserveSweepDurationMs(value float64) {
	sweepsTotal.Add(1)
	sweepDuration.Observe(clamp(value))
}

func IncAnalysisStarted()       { analysisStartedTotal.Add(1) }
func IncAnalysisCompleted()     { analysisCompletedTotal.Add(1) }
func IncAnalysisParseFallback() { analysisParseFallbackTotal.Add(1) }

// IncAnalysisFailed increments the failed counter and its per-kind breakdown.
func IncAnalysisFailed(kind string) {
	analysisFailedTotal.Add(1)
	if kind == "" {
		kind = "unknown"
	}
	failuresMu.Lock()
	failures[kind]++
	failuresMu.Unlock()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	analysisDuration.Observe(clamp(value))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "temp_resumes_staged_total", "Temporary resumes staged", tempResumesStagedTotal.Load())
	writeCounter(&buf, "temp_resumes_saved_total", "Temporary resumes promoted to permanent storage", tempResumesSavedTotal.Load())
	writeCounter(&buf, "temp_resumes_discarded_total", "Temporary resumes discarded by their owner", tempResumesDiscardedTotal.Load())
	writeCounter(&buf, "temp_resumes_expired_total", "Expired temporary resumes reclaimed", tempResumesExpiredTotal.Load())
	writeCounter(&buf, "staged_orphans_removed_total", "Staged files removed without a live record", orphanFilesRemovedTotal.Load())
	writeCounter(&buf, "sweep_failures_total", "Per-item failures during sweeps", sweepFailuresTotal.Load())
	writeCounter(&buf, "sweeps_total", "Completed sweeps", sweepsTotal.Load())
	writeCounter(&buf, "sweeps_skipped_total", "Sweep ticks skipped while a sweep was running", sweepsSkippedTotal.Load())
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "analysis_parse_fallback_total", "Analyses recovered by substring extraction", analysisParseFallbackTotal.Load())
	writeLabeledCounter(&buf, "analysis_failed_by_kind_total", "Failed analyses by kind", "kind", snapshotFailures())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "sweep_duration_ms", "Sweep duration in milliseconds", sweepDuration.Snapshot())
	return buf.String()
}

func snapshotFailures() map[string]uint64 {
	failuresMu.Lock()
	defer failuresMu.Unlock()
	out := make(map[string]uint64, len(failures))
	for k, v := range failures {
		out[k] = v
	}
	return out
}

func clamp(value float64) float64 {
	if value < 0 {
		return 0
	}
	return value
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe places value in the first bucket whose bound is not below it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	if len(values) == 0 {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
