// Package metrics provides Prometheus instrumentation for sharecrypt
// operations. Metrics live in a private registry and are written to a
// node_exporter textfile rather than served over HTTP.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all sharecrypt metrics
	Namespace = "sharecrypt"

	// Label names
	LabelOperation = "operation"
	LabelScheme    = "scheme"
	LabelStatus    = "status"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSplit    = "split"
	OpCombine  = "combine"
	OpNewShare = "newshare"
	OpVerify   = "verify"
	OpHash     = "hash"
	OpRandom   = "random"
	OpStore    = "store"
	OpLoad     = "load"
	OpExport   = "export"
	OpImport   = "import"
)

var (
	// Registry holds every sharecrypt collector.
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	// OperationsTotal tracks operations by name, scheme and status.
	OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of sharecrypt operations by type, scheme, and status",
		},
		[]string{LabelOperation, LabelScheme, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of sharecrypt operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{LabelOperation, LabelScheme},
	)

	// SharesAcceptedTotal counts shares that passed robust verification.
	SharesAcceptedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_accepted_total",
			Help:      "Shares accepted by tag verification",
		},
		[]string{LabelScheme},
	)

	// SharesRejectedTotal counts shares that failed robust verification.
	SharesRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_rejected_total",
			Help:      "Shares rejected by tag verification",
		},
		[]string{LabelScheme},
	)

	// SecretBytes observes the size of split or reconstructed secrets.
	SecretBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "secret_bytes",
			Help:      "Size of processed secrets in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 6),
		},
		[]string{LabelOperation},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and outcome.
//
//	start := time.Now()
//	shares, err := secretsharing.Split(secret, cfg)
//	metrics.RecordOperation(metrics.OpSplit, string(cfg.Scheme), metrics.Status(err), time.Since(start))
func RecordOperation(operation, scheme, status string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, scheme, status).Inc()
	OperationDuration.WithLabelValues(operation, scheme).Observe(duration.Seconds())
}

// RecordVerification records the outcome of verifying each share.
func RecordVerification(scheme string, accepted []bool) {
	if !enabled.Load() {
		return
	}
	for _, ok := range accepted {
		if ok {
			SharesAcceptedTotal.WithLabelValues(scheme).Inc()
		} else {
			SharesRejectedTotal.WithLabelValues(scheme).Inc()
		}
	}
}

// RecordSecretSize observes the size of a processed secret.
func RecordSecretSize(operation string, size int) {
	if !enabled.Load() {
		return
	}
	SecretBytes.WithLabelValues(operation).Observe(float64(size))
}

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// WriteTextfile atomically writes the registry in the text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
