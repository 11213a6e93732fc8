package dispatchz

import "github.com/zoobzio/tracez"

// Span names for scheduler/transport observability.
const (
	TraceTaskSpan      = tracez.Key("dispatch.task")
	TraceTaskWaitSpan  = tracez.Key("dispatch.task.wait")
	TraceTransportSpan = tracez.Key("dispatch.transport.bringup")
)

// Span tags.
const (
	TraceTagTaskID  = tracez.Tag("dispatch.task_id")
	TraceTagSlot    = tracez.Tag("dispatch.slot")
	TraceTagStatus  = tracez.Tag("dispatch.status")
	TraceTagAttempt = tracez.Tag("dispatch.attempt")
)
