package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	offersSentTotal        atomic.Uint64
	attemptsScheduledTotal atomic.Uint64
	attemptsCancelledTotal atomic.Uint64
	reconcileCyclesTotal   atomic.Uint64

	reconcileCycleDuration = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 5000, 30000})
)

// IncOfferSent increments the offers-sent counter.
func IncOfferSent() {
	offersSentTotal.Add(1)
}

// IncAttemptScheduled increments the scheduled counter.
func IncAttemptScheduled() {
	attemptsScheduledTotal.Add(1)
}

// IncAttemptCancelled increments the cancelled counter.
func IncAttemptCancelled() {
	attemptsCancelledTotal.Add(1)
}

// IncReconcileCycle increments the reconciliation cycle counter.
func IncReconcileCycle() {
	reconcileCyclesTotal.Add(1)
}

// ObserveReconcileCycleMs records a reconciliation cycle duration in milliseconds.
func ObserveReconcileCycleMs(value float64) {
	if value < 0 {
		value = 0
	}
	reconcileCycleDuration.Observe(value)
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
	writeCounter(&buf, "offers_sent_total", "Total scheduling offers sent", offersSentTotal.Load())
	writeCounter(&buf, "attempts_scheduled_total", "Total attempts that reached scheduled", attemptsScheduledTotal.Load())
	writeCounter(&buf, "attempts_cancelled_total", "Total attempts cancelled", attemptsCancelledTotal.Load())
	writeCounter(&buf, "reconcile_cycles_total", "Total reconciliation cycles executed", reconcileCyclesTotal.Load())
	writeHistogram(&buf, "reconcile_cycle_duration_ms", "Reconciliation cycle duration in milliseconds", reconcileCycleDuration.Snapshot())
	return buf.String()
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

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
