package pump

import "time"

// MetricsHook lets services bridge pump metrics to their observability stack
// without the pump depending on it.
type MetricsHook interface {
	OnMessageReceived()
	OnMessageProcessed(outcome string, duration time.Duration)
	OnVisibilityReset()
	OnWorkerRestart()
	OnCleanupFailed()
}

type noopMetrics struct{}

func (noopMetrics) OnMessageReceived()                       {}
func (noopMetrics) OnMessageProcessed(string, time.Duration) {}
func (noopMetrics) OnVisibilityReset()                       {}
func (noopMetrics) OnWorkerRestart()                         {}
func (noopMetrics) OnCleanupFailed()                         {}
