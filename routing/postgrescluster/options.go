package postgrescluster

import (
	"github.com/bestie/active-record-shards/routing"
)

// Option defines a functional option for configuring a Cluster.
type Option func(*Cluster) error

// WithLogger sets the logger for the Cluster.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: routed SQL statements with execution timing (development use)
// Error level: execution failures and missing-adapter configuration errors.
func WithLogger(logger routing.Logger) Option {
	return func(c *Cluster) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Cluster.
// The collector will receive per-statement durations and error counters.
func WithMetrics(collector routing.MetricsCollector) Option {
	return func(c *Cluster) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Cluster.
// The collector will receive one span per routed statement, carrying the
// model, operation, shard, role and handle of the decision.
func WithTracing(collector routing.TracingCollector) Option {
	return func(c *Cluster) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Cluster.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger routing.ContextualLogger) Option {
	return func(c *Cluster) error {
		c.contextualLogger = logger
		return nil
	}
}
