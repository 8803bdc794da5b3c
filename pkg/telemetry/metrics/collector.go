// Package metrics exposes Prometheus metrics for the autonomy control
// plane: decision outcomes, risk scores, executions, approval activity,
// queue depth, and audit log growth.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/config"
)

// Collector manages all Prometheus metrics for the control plane. Metric
// instances are pre-allocated at construction; recording is label-lookup
// plus an atomic update.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decisionsTotal    *prometheus.CounterVec
	riskScore         prometheus.Histogram
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
	approvalsTotal    *prometheus.CounterVec
	auditEntriesTotal *prometheus.CounterVec

	queuePending prometheus.Gauge
	executing    prometheus.Gauge
	typesCooling prometheus.Gauge
}

// NewCollector creates a collector registered against the given registry.
// If registry is nil, a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "gicm"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "autonomy"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "decisions_total",
			Help:      "Routed decisions by outcome and action category.",
		}, []string{"outcome", "category"}),

		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "risk_score",
			Help:      "Risk scores assigned to submitted actions.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "executions_total",
			Help:      "Completed executions by status and action category.",
		}, []string{"status", "category"}),

		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of execution attempts, including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		approvalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "approvals_total",
			Help:      "Approval request resolutions by final status.",
		}, []string{"status"}),

		auditEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_entries_total",
			Help:      "Audit log entries appended, by entry type.",
		}, []string{"type"}),

		queuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_pending",
			Help:      "Approval requests currently pending review.",
		}),

		executing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "executing",
			Help:      "Actions currently executing.",
		}),

		typesCooling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "types_cooling",
			Help:      "Action types currently in post-failure cooldown.",
		}),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.riskScore,
		c.executionsTotal,
		c.executionDuration,
		c.approvalsTotal,
		c.auditEntriesTotal,
		c.queuePending,
		c.executing,
		c.typesCooling,
	)

	return c
}

// RecordDecision records one routed decision.
func (c *Collector) RecordDecision(outcome, category string, riskScore float64) {
	c.decisionsTotal.WithLabelValues(outcome, category).Inc()
	c.riskScore.Observe(riskScore)
}

// RecordExecution records one completed execution chain.
func (c *Collector) RecordExecution(status, category string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(status, category).Inc()
	c.executionDuration.Observe(duration.Seconds())
}

// RecordApproval records one approval request resolution.
func (c *Collector) RecordApproval(status string) {
	c.approvalsTotal.WithLabelValues(status).Inc()
}

// AuditHook returns an audit logger hook that counts appended entries by
// type. Install it with audit.Logger.SetHook.
func (c *Collector) AuditHook() audit.Hook {
	return func(entry *audit.Entry) {
		c.auditEntriesTotal.WithLabelValues(string(entry.Type)).Inc()
	}
}

// SetQueuePending updates the pending-request gauge.
func (c *Collector) SetQueuePending(n int) {
	c.queuePending.Set(float64(n))
}

// SetExecuting updates the currently-executing gauge.
func (c *Collector) SetExecuting(n int) {
	c.executing.Set(float64(n))
}

// SetTypesCooling updates the cooling-types gauge.
func (c *Collector) SetTypesCooling(n int) {
	c.typesCooling.Set(float64(n))
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
