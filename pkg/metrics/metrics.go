// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustkit.
//
// go-trustkit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for go-trustkit
// operations: JOSE encrypt/decrypt/sign/verify counts and latencies, error
// counters, delegation decisions and token store activity.
package metrics

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	// Namespace is the Prometheus namespace for all trustkit metrics
	Namespace = "trustkit"

	// Label names
	LabelOperation = "operation"
	LabelAlgorithm = "algorithm"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelHandler   = "handler"
	LabelOutcome   = "outcome"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Delegation outcomes
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"

	// Operation names
	OpEncrypt  = "encrypt"
	OpDecrypt  = "decrypt"
	OpSign     = "sign"
	OpVerify   = "verify"
	OpGenerate = "generate"
	OpImport   = "import"
	OpStore    = "store"
	OpGet      = "get"
	OpDelete   = "delete"
	OpDelegate = "delegate"
)

var (
	// OperationsTotal tracks JOSE operations by type, algorithm, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jose_operations_total",
			Help:      "Total number of JOSE operations by type, algorithm, and status",
		},
		[]string{LabelOperation, LabelAlgorithm, LabelStatus},
	)

	// OperationDuration tracks the duration of JOSE operations in seconds.
	// Buckets cover symmetric operations through RSA private-key work.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "jose_operation_duration_seconds",
			Help:      "Duration of JOSE operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelOperation, LabelAlgorithm},
	)

	// ErrorsTotal tracks JOSE errors by operation and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jose_errors_total",
			Help:      "Total number of JOSE errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// DelegationDecisionsTotal tracks STS delegation decisions by handler and outcome.
	DelegationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delegation_decisions_total",
			Help:      "Total number of token delegation decisions by handler and outcome",
		},
		[]string{LabelHandler, LabelOutcome},
	)

	// TokenStoreOperationsTotal tracks token store operations by type and status.
	TokenStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokenstore",
			Name:      "operations_total",
			Help:      "Total number of token store operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a JOSE operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	token, err := enc.Encrypt(payload)
//	metrics.RecordOperation(metrics.OpEncrypt, "RSA-OAEP-256", metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, algorithm, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, algorithm, status).Inc()
	OperationDuration.WithLabelValues(operation, algorithm).Observe(duration)
}

// ObserveOperation records an operation that started at start and finished
// with err.
func ObserveOperation(operation, algorithm string, start time.Time, err error) {
	RecordOperation(operation, algorithm, Status(err), time.Since(start).Seconds())
}

// RecordError records an error event. Error types should be short and
// stable, e.g. "unsupported_algorithm" or "security".
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordDelegation records a delegation decision.
func RecordDelegation(handler, outcome string) {
	if !enabled.Load() {
		return
	}
	DelegationDecisionsTotal.WithLabelValues(handler, outcome).Inc()
}

// RecordTokenStore records a token store operation.
func RecordTokenStore(operation string, err error) {
	if !enabled.Load() {
		return
	}
	TokenStoreOperationsTotal.WithLabelValues(operation, Status(err)).Inc()
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// WriteText gathers every metric registered with the default registry and
// writes it to w in the Prometheus text exposition format.
func WriteText(w io.Writer) error {
	return writeText(w, prometheus.DefaultGatherer)
}

func writeText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
