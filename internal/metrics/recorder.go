// Package metrics ships gateway call measurements to CloudWatch and
// exposes them to Prometheus.
package metrics

import "time"

// Recorder receives per-call measurements from the gateway.
type Recorder interface {
	RecordCall(exchange, operation string, latency time.Duration, errorKind string)
	RecordRateLimitWait(exchange, operation string, wait time.Duration)
	RecordHealth(exchange string, connected bool)
}

// Fanout forwards every measurement to each recorder in order.
type Fanout []Recorder

func (f Fanout) RecordCall(exchange, operation string, latency time.Duration, errorKind string) {
	for _, r := range f {
		r.RecordCall(exchange, operation, latency, errorKind)
	}
}

func (f Fanout) RecordRateLimitWait(exchange, operation string, wait time.Duration) {
	for _, r := range f {
		r.RecordRateLimitWait(exchange, operation, wait)
	}
}

func (f Fanout) RecordHealth(exchange string, connected bool) {
	for _, r := range f {
		r.RecordHealth(exchange, connected)
	}
}
