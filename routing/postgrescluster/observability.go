package postgrescluster

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bestie/active-record-shards/routing"
)

// logQueryWithDuration logs routed SQL with execution time at debug level if a logger is configured.
func (c *Cluster) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if c.logger != nil {
		c.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (c *Cluster) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if c.logger != nil {
		c.logger.Error(message, allArgs...)
	}
}

// recordDuration records a statement duration if a metrics collector is configured.
func (c *Cluster) recordDuration(ctx context.Context, metricName string, duration time.Duration, status string) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{"status": status}

	if contextualCollector, ok := c.metricsCollector.(routing.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		return
	}

	c.metricsCollector.RecordDuration(metricName, duration, labels)
}

// countError records an error counter if a metrics collector is configured.
func (c *Cluster) countError(ctx context.Context, errorType string) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrErrorType: errorType}

	if contextualCollector, ok := c.metricsCollector.(routing.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricClusterErrors, labels)
		return
	}

	c.metricsCollector.IncrementCounter(metricClusterErrors, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// executionTracingObserver encapsulates tracing span lifecycle management
// for routed statement executions.
type executionTracingObserver struct {
	cluster *Cluster
	span    routing.SpanContext
}

// startTracing creates a tracing observer for one routed statement if a
// tracing collector is configured; otherwise the observer is inert.
func (c *Cluster) startTracing(ctx context.Context, spanName string, model string, op routing.OperationKind) (*executionTracingObserver, context.Context) {
	observer := &executionTracingObserver{cluster: c}

	if c.tracingCollector == nil {
		return observer, ctx
	}

	newCtx, span := c.tracingCollector.StartSpan(ctx, spanName, map[string]string{
		spanAttrModel:     model,
		spanAttrOperation: op.String(),
	})
	observer.span = span

	return observer, newCtx
}

// finishSuccess completes the span with the decided placement.
func (o *executionTracingObserver) finishSuccess(handle routing.Handle, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.AddAttribute(spanAttrShard, string(handle.Shard()))
	o.span.AddAttribute(spanAttrRole, handle.Role().String())
	o.span.AddAttribute(logAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	o.cluster.tracingCollector.FinishSpan(o.span, statusSuccess, nil)
}

// finishSuccessWithRows completes the span with placement and row count.
func (o *executionTracingObserver) finishSuccessWithRows(handle routing.Handle, duration time.Duration, rowsAffected int64) {
	if o.span == nil {
		return
	}

	o.span.AddAttribute(spanAttrShard, string(handle.Shard()))
	o.span.AddAttribute(spanAttrRole, handle.Role().String())
	o.span.AddAttribute(logAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	o.cluster.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrRowsAffected: fmt.Sprintf("%d", rowsAffected),
	})
}

// finishError completes the span with error details.
func (o *executionTracingObserver) finishError(errorType string) {
	if o.span == nil {
		return
	}

	o.cluster.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
		spanAttrErrorType: errorType,
	})
}
