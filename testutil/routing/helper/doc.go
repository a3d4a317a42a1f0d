// Package helper provides test doubles for the routing observability interfaces.
//
// The spies record every log entry, metric, and span they receive so tests can
// assert on the observable side effects of routing decisions without wiring a
// real logging, metrics, or tracing backend.
package helper
