package dispatchz

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Worker is the long-lived, single-threaded process running one slot's
// lifecycle: gate → pull work → fork child → wait → report, per spec.md
// §4.2. Exactly one Worker exists per Slot for the life of a run.
type Worker struct {
	transport Transport
	preparer  *Preparer
	gate      *MemoryGate
	clock     clockz.Clock

	slot           int
	taskClass      TaskClass
	maxTaskSizeKB  int
	createErrFiles bool
	scheduler      EndpointID

	startedAt time.Time
}

// NewWorker builds a Worker for one slot from its greeting. scheduler is
// the endpoint to send results to.
func NewWorker(transport Transport, preparer *Preparer, gate *MemoryGate, scheduler EndpointID, greeting Greeting) *Worker {
	return &Worker{
		transport:      transport,
		preparer:       preparer,
		gate:           gate,
		clock:          clockz.RealClock,
		slot:           greeting.Slot,
		taskClass:      greeting.TaskClass,
		maxTaskSizeKB:  greeting.MaxTaskSizeKB,
		createErrFiles: greeting.CreateErrFiles,
		scheduler:      scheduler,
	}
}

// WithClock overrides the clock used for worker-lifetime accounting, for
// deterministic tests.
func (w *Worker) WithClock(clock clockz.Clock) *Worker {
	w.clock = clock
	return w
}

// Run drives the worker loop until it receives STOP or ctx is canceled.
// It never returns an error for a single task's failure — those surface
// as a reported Result with a non-OK status — only for transport or
// context failures that make continuing impossible.
func (w *Worker) Run(ctx context.Context) error {
	w.startedAt = w.clock.Now()
	mode := MemoryModeFor(w.maxTaskSizeKB)

	for {
		if err := w.gate.WaitForAccept(ctx, mode, w.maxTaskSizeKB); err != nil {
			return err
		}

		src, kind, payload, err := w.transport.Recv(ctx)
		if err != nil {
			return err
		}
		_ = src

		if kind == MsgStop {
			stop, err := Decode[Stop](payload)
			if err != nil {
				return err
			}
			w.handleStop(ctx, stop)
			return nil
		}

		work, err := Decode[Work](payload)
		if err != nil {
			return err
		}

		if err := w.runOne(ctx, work); err != nil {
			return err
		}
	}
}

// runOne executes one task end to end: prepare, fork/exec/wait, report.
func (w *Worker) runOne(ctx context.Context, work Work) error {
	execPath, err := w.preparer.Prepare(w.taskClass, work.TaskID, work.RawArgs, work.ProgramFile, work.OutDir)
	if err != nil {
		return w.reportResult(ctx, Result{
			TaskID:  work.TaskID,
			Slot:    w.slot,
			Status:  StatusForkErr,
			RawArgs: work.RawArgs,
		}, "")
	}

	result, errPath, runErr := RunChild(w.taskClass, work.TaskID, work.RawArgs, execPath, work.OutDir)
	if runErr != nil {
		capitan.Error(ctx, SignalWorkerForkErr,
			FieldSlot.Field(w.slot),
			FieldTaskID.Field(work.TaskID),
			FieldError.Field(runErr.Error()),
		)
		result = Result{TaskID: work.TaskID, Slot: w.slot, Status: StatusForkErr, RawArgs: work.RawArgs}
	} else {
		result.Slot = w.slot
	}

	diagnostic := ""
	if w.createErrFiles && result.Failed() {
		diagnostic = readDiagnosticTail(errPath)
	}

	return w.reportResult(ctx, result, diagnostic)
}

// readDiagnosticTail reads back a failed task's stderr capture so it can
// ride along on the failure signal instead of requiring a separate grep
// of <task_id>_err.txt, the createErrFiles verbosity this worker's
// greeting requested. Best-effort: a read failure just means no
// diagnostic, never a reason to fail the task a second time.
func readDiagnosticTail(path string) string {
	if path == "" {
		return ""
	}
	const maxDiagnosticBytes = 2048
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > maxDiagnosticBytes {
		data = data[len(data)-maxDiagnosticBytes:]
	}
	return strings.TrimSpace(string(data))
}

// reportResult sends a Result to the scheduler. Every result carries the
// worker's cumulative lifetime so far: whichever one turns out to be the
// slot's last (the one the scheduler receives during drain, right before
// sending STOP) is the one the scheduler folds into the run's combined-time
// summary, per spec.md §4.1's "the final result from each slot carries
// worker_lifetime_s."
func (w *Worker) reportResult(ctx context.Context, result Result, diagnostic string) error {
	result.WorkerLifetime = w.clock.Now().Sub(w.startedAt)

	if result.Failed() {
		if diagnostic != "" {
			capitan.Warn(ctx, SignalTaskFailed,
				FieldSlot.Field(result.Slot),
				FieldTaskID.Field(result.TaskID),
				FieldStatus.Field(result.Status.String()),
				FieldExecTime.Field(result.ExecTime.Seconds()),
				FieldDiagnostic.Field(diagnostic),
			)
		} else {
			capitan.Warn(ctx, SignalTaskFailed,
				FieldSlot.Field(result.Slot),
				FieldTaskID.Field(result.TaskID),
				FieldStatus.Field(result.Status.String()),
				FieldExecTime.Field(result.ExecTime.Seconds()),
			)
		}
	} else {
		capitan.Info(ctx, SignalTaskCompleted,
			FieldSlot.Field(result.Slot),
			FieldTaskID.Field(result.TaskID),
			FieldStatus.Field(result.Status.String()),
			FieldExecTime.Field(result.ExecTime.Seconds()),
		)
	}

	payload, err := Encode(ResultMsgFromResult(result))
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, w.scheduler, MsgResult, payload)
}

// handleStop logs the worker's shutdown per §4.2 step 3. The lifetime the
// scheduler needs was already carried on the last reported Result, so
// there is nothing left to send.
func (w *Worker) handleStop(ctx context.Context, _ Stop) {
	lifetime := w.clock.Now().Sub(w.startedAt)
	capitan.Info(ctx, SignalWorkerStopped,
		FieldSlot.Field(w.slot),
		FieldDuration.Field(lifetime.Seconds()),
	)
}
