package main

import (
	"context"
	"fmt"
	"io"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/dispatchz"
)

// consoleSink renders a run's capitan signals to the human-readable
// stdout/stderr lines spec.md's testable scenarios assert on and
// SPEC_FULL.md's CREATED_SLAVE/TASK_SENT/CREATED_SCRIPT/INFO lines commit
// to. capitan itself is a pure pub/sub bus with no default rendering — this
// is the only place a dispatch run prints anything beyond the startup
// banner and the final summary, the Go analogue of PBala.c's own scattered fprintf(stdout, ...)
// calls at each of these same milestones.
type consoleSink struct {
	listeners []interface{ Close() }
}

// installConsoleSink wires one hook per rendered signal. Call Close on the
// returned sink when the run finishes to stop draining further events.
func installConsoleSink(out, errOut io.Writer) *consoleSink {
	s := &consoleSink{}

	s.hook(dispatchz.SignalSlotSpawned, func(_ context.Context, e *capitan.Event) {
		slot, _ := dispatchz.FieldSlot.From(e)
		node, _ := dispatchz.FieldNode.From(e)
		fmt.Fprintf(out, "CREATED_SLAVE - created slave %d on %s\n", slot, node)
	})

	s.hook(dispatchz.SignalFleetComplete, func(_ context.Context, e *capitan.Event) {
		count, _ := dispatchz.FieldSlotCount.From(e)
		fmt.Fprintf(out, "INFO - all %d slaves created successfully\n", count)
	})

	s.hook(dispatchz.SignalScriptCreated, func(_ context.Context, e *capitan.Event) {
		taskID, _ := dispatchz.FieldTaskID.From(e)
		fmt.Fprintf(out, "CREATED_SCRIPT - wrote auxiliary script for task %d\n", taskID)
	})

	s.hook(dispatchz.SignalTaskSent, func(_ context.Context, e *capitan.Event) {
		slot, _ := dispatchz.FieldSlot.From(e)
		taskID, _ := dispatchz.FieldTaskID.From(e)
		fmt.Fprintf(out, "TASK_SENT - sent task %4d for execution on slot %d\n", taskID, slot)
	})

	s.hook(dispatchz.SignalSchedulerStarted, func(_ context.Context, e *capitan.Event) {
		count, _ := dispatchz.FieldSlotCount.From(e)
		fmt.Fprintf(out, "INFO - scheduler started, %d cores available\n", count)
	})

	s.hook(dispatchz.SignalTaskCompleted, func(_ context.Context, e *capitan.Event) {
		taskID, _ := dispatchz.FieldTaskID.From(e)
		execTime, _ := dispatchz.FieldExecTime.From(e)
		fmt.Fprintf(out, "TASK_COMPLETED - task %d finished in %.3fs\n", taskID, execTime)
	})

	s.hook(dispatchz.SignalTaskFailed, func(_ context.Context, e *capitan.Event) {
		taskID, _ := dispatchz.FieldTaskID.From(e)
		status, _ := dispatchz.FieldStatus.From(e)
		fmt.Fprintf(errOut, "ERROR - %s\n", taskFailureMessage(taskID, status))
	})

	return s
}

func (s *consoleSink) hook(signal capitan.Signal, handler func(context.Context, *capitan.Event)) {
	s.listeners = append(s.listeners, capitan.Hook(signal, handler))
}

// Close stops every hook this sink registered.
func (s *consoleSink) Close() {
	for _, l := range s.listeners {
		l.Close()
	}
}

// taskFailureMessage renders a Status into the wording spec.md §8's
// scenarios assert on: "task N was stopped or killed" for TASK_KILLED,
// and a status-specific line for the other failure classes.
func taskFailureMessage(taskID int, status string) string {
	switch status {
	case "TASK_KILLED":
		return fmt.Sprintf("task %d was stopped or killed", taskID)
	case "MEM_ERR":
		return fmt.Sprintf("task %d exceeded its memory budget", taskID)
	case "FORK_ERR":
		return fmt.Sprintf("task %d could not be started", taskID)
	default:
		return fmt.Sprintf("task %d failed (%s)", taskID, status)
	}
}
