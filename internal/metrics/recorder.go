// internal/metrics/recorder.go
package metrics

import "time"

// Outcome labels a finished pipeline run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder receives build observations. The builder and the rebuild
// coordinator only talk to this interface so metrics stay optional.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObservePhaseDuration(phase string, d time.Duration)
	IncBuildOutcome(outcome Outcome)
	SetPagesLoaded(n int)
	IncPagesSkipped()
	IncRebuildTriggered()
}

// NoopRecorder drops everything. It is the default when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(Outcome)                    {}
func (NoopRecorder) SetPagesLoaded(int)                         {}
func (NoopRecorder) IncPagesSkipped()                           {}
func (NoopRecorder) IncRebuildTriggered()                       {}
