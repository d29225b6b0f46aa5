package session

import "time"

// Save results reported to Metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics receives save measurements. adapters/metrics provides a
// Prometheus implementation.
type Metrics interface {
	ObserveSave(trigger Trigger, result string, elapsed time.Duration)
	ObserveRollback()
}

type nopMetrics struct{}

func (nopMetrics) ObserveSave(Trigger, string, time.Duration) {}
func (nopMetrics) ObserveRollback()                            {}
