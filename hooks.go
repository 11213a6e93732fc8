package dispatchz

import "github.com/zoobzio/hookz"

// Hook event keys external tools can subscribe to via Scheduler.OnResult
// and Scheduler.OnShutdown, following the teacher's convention (see
// backoff.go/switch.go) of exposing hookz.Hooks alongside capitan
// signals: signals are for the structured log stream, hooks are for
// programmatic subscribers that want typed callbacks.
const (
	HookTaskResult     = hookz.Key("scheduler.task-result")
	HookRunShutdown    = hookz.Key("scheduler.run-shutdown")
)

// ShutdownSummary is delivered to HookRunShutdown subscribers once a run
// completes, mirroring the original's final timing summary line
// ("Combined computing time" / "Total execution time").
type ShutdownSummary struct {
	TasksDispatched  int
	TasksFailed      int
	CombinedCPUTime  float64 // Σ worker_lifetime_s across all slots.
	WallClockSeconds float64
}
