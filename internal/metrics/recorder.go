package metrics

import "time"

// ResultLabel enumerates append result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for ledger operations. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for
// nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveAppendDuration(kind string, d time.Duration)
	IncAppendResult(kind string, result ResultLabel)
	IncAppendRetry(kind string)
	SetAppliancesInState(state string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveAppendDuration(string, time.Duration) {}
func (NoopRecorder) IncAppendResult(string, ResultLabel)         {}
func (NoopRecorder) IncAppendRetry(string)                       {}
func (NoopRecorder) SetAppliancesInState(string, int)            {}
