package dispatchz

import "github.com/zoobzio/metricz"

// Metric keys for scheduler/worker observability, registered on a
// metricz.Registry owned by the Scheduler for the life of one run.
const (
	MetricTasksDispatched = metricz.Key("dispatch.tasks.dispatched")
	MetricTasksCompleted  = metricz.Key("dispatch.tasks.completed")
	MetricTasksKilled     = metricz.Key("dispatch.tasks.killed")
	MetricTasksMemErr     = metricz.Key("dispatch.tasks.mem_err")
	MetricTasksForkErr    = metricz.Key("dispatch.tasks.fork_err")
	MetricActiveSlots     = metricz.Key("dispatch.slots.active")
	MetricCombinedCPUTime = metricz.Key("dispatch.combined_cpu_time_ms")
)

// newMetricsRegistry builds a registry with every dispatchz counter/gauge
// pre-registered, mirroring the teacher's convention of registering all
// metrics up front in the constructor rather than lazily.
func newMetricsRegistry() *metricz.Registry {
	r := metricz.New()
	r.Counter(MetricTasksDispatched)
	r.Counter(MetricTasksCompleted)
	r.Counter(MetricTasksKilled)
	r.Counter(MetricTasksMemErr)
	r.Counter(MetricTasksForkErr)
	r.Gauge(MetricActiveSlots)
	r.Gauge(MetricCombinedCPUTime)
	return r
}
