package routing

import (
	"context"
)

// logDecision logs a routing decision at debug level if a logger is configured.
// The contextual logger is preferred so decisions correlate with active traces.
func (r *Router) logDecision(ctx context.Context, model string, op OperationKind, reason string, handle Handle) {
	args := []any{
		logAttrModel, model,
		logAttrOperation, op.String(),
		logAttrRole, handle.Role().String(),
		logAttrShard, string(handle.Shard()),
		logAttrHandleID, handle.ID(),
		logAttrReason, reason,
	}

	if r.contextualLogger != nil {
		r.contextualLogger.DebugContext(ctx, logMsgDecisionMade, args...)
		return
	}

	if r.logger != nil {
		r.logger.Debug(logMsgDecisionMade, args...)
	}
}

// logDecisionError logs a failed decision at error level if a logger is configured.
func (r *Router) logDecisionError(ctx context.Context, message string, err error, model string, op OperationKind) {
	args := []any{
		logAttrError, err.Error(),
		logAttrModel, model,
		logAttrOperation, op.String(),
	}

	if r.contextualLogger != nil {
		r.contextualLogger.ErrorContext(ctx, message, args...)
		return
	}

	if r.logger != nil {
		r.logger.Error(message, args...)
	}
}

// countDecision records a decision counter if a metrics collector is configured.
func (r *Router) countDecision(ctx context.Context, op OperationKind, reason string, handle Handle) {
	if r.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: op.String(),
		labelRole:      handle.Role().String(),
		labelShard:     string(handle.Shard()),
		labelReason:    reason,
	}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricRoutingDecisions, labels)
		return
	}

	r.metricsCollector.IncrementCounter(metricRoutingDecisions, labels)
}

// countDecisionError records an error counter if a metrics collector is configured.
func (r *Router) countDecisionError(ctx context.Context, errorType string) {
	if r.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelErrorType: errorType,
	}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricRoutingErrors, labels)
		return
	}

	r.metricsCollector.IncrementCounter(metricRoutingErrors, labels)
}
