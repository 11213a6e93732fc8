package dispatchz

import "github.com/zoobzio/capitan"

// Signal constants for dispatchz events.
// Signals follow the pattern: <component>.<event>.
const (
	// Scheduler lifecycle signals.
	SignalSchedulerStarted  capitan.Signal = "scheduler.started"
	SignalSchedulerShutdown capitan.Signal = "scheduler.shutdown"

	// Fleet construction signals.
	SignalSlotSpawned   capitan.Signal = "fleet.slot-spawned"
	SignalSlotGreeted   capitan.Signal = "fleet.slot-greeted"
	SignalFleetComplete capitan.Signal = "fleet.complete"

	// Transport signals.
	SignalTransportStarted      capitan.Signal = "transport.started"
	SignalTransportDupHostRetry capitan.Signal = "transport.duphost-retry"
	SignalTransportHalted       capitan.Signal = "transport.halted"

	// Task dispatch signals.
	SignalTaskSent      capitan.Signal = "dispatch.task-sent"
	SignalTaskCompleted capitan.Signal = "dispatch.task-completed"
	SignalTaskFailed    capitan.Signal = "dispatch.task-failed"
	SignalScriptCreated capitan.Signal = "dispatch.script-created"

	// Memory gate signals.
	SignalMemoryGateAccepted capitan.Signal = "memorygate.accepted"
	SignalMemoryGateDeferred capitan.Signal = "memorygate.deferred"

	// Worker signals.
	SignalWorkerForkErr capitan.Signal = "worker.fork-error"
	SignalWorkerStopped capitan.Signal = "worker.stopped"
)

// Common field keys using capitan primitive types.
var (
	FieldName      = capitan.NewStringKey("name")
	FieldError     = capitan.NewStringKey("error")
	FieldTimestamp = capitan.NewFloat64Key("timestamp")
	FieldDuration  = capitan.NewFloat64Key("duration")

	// Fleet/slot fields.
	FieldSlot        = capitan.NewIntKey("slot")
	FieldNode        = capitan.NewStringKey("node")
	FieldCores       = capitan.NewIntKey("cores")
	FieldSlotCount   = capitan.NewIntKey("slot_count")
	FieldAttempt     = capitan.NewIntKey("attempt")
	FieldMaxAttempts = capitan.NewIntKey("max_attempts")

	// Task fields.
	FieldTaskID     = capitan.NewIntKey("task_id")
	FieldStatus     = capitan.NewStringKey("status")
	FieldExecTime   = capitan.NewFloat64Key("exec_time_s")
	FieldDiagnostic = capitan.NewStringKey("diagnostic")

	// Memory gate fields.
	FieldMode        = capitan.NewStringKey("mode")
	FieldMaxTaskKB   = capitan.NewIntKey("max_task_size_kb")
	FieldAvailableKB = capitan.NewIntKey("available_kb")
)
