// Package metrics declares the prometheus collectors for domain events and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "foodcore"

var (
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_orders_placed_total",
			Help: "Orders placed, by order type",
		},
		[]string{"type"},
	)

	OrderStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_status_changes_total",
			Help: "Order status changes, by resulting status",
		},
		[]string{"status"},
	)

	ActivationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_activation_attempts_total",
			Help: "Activation code redemptions, by result",
		},
		[]string{"result"},
	)

	PurchasesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_purchases_recorded_total",
			Help: "Purchases recorded into the inventory ledger",
		},
	)

	PurchaseLinesUnmatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_purchase_lines_unmatched_total",
			Help: "Purchase lines skipped because no inventory item matched",
		},
	)

	Backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_backups_total",
			Help: "Backups taken, by kind (auto, manual) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	BackupsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_backups_pruned_total",
			Help: "Auto-backup snapshots deleted by the retention sweep",
		},
	)

	BackupStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_backup_stale",
			Help: "1 when no recent manual backup exists",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OrdersPlaced,
			OrderStatusChanges,
			ActivationAttempts,
			PurchasesRecorded,
			PurchaseLinesUnmatched,
			Backups,
			BackupsPruned,
			BackupStale,
			RequestCounter,
			RequestDuration,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency. The route label is the
// ServeMux pattern, so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
