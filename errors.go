package dispatchz

import (
	"errors"
	"fmt"
	"time"
)

// ExitCode identifies a distinct master-side failure class. Values are
// carried from the original implementation's error-code header so that
// operators scripting around this tool see stable, documented exit codes.
type ExitCode int

// Exit codes for master-side failures. A successful run exits 0.
const (
	ExitArgs             ExitCode = 10 // malformed argv
	ExitNodeLines        ExitCode = 11 // cannot count lines in node file
	ExitNodeOpen         ExitCode = 12 // cannot open node file
	ExitNodeRead         ExitCode = 13 // cannot read/parse node file
	ExitCWD              ExitCode = 14 // cannot resolve current working directory
	ExitTransportSelfID  ExitCode = 15 // transport failed to report our own endpoint id
	ExitTransportParent  ExitCode = 16 // transport reported an invalid parent id
	ExitDataFileLines    ExitCode = 17 // cannot count lines in data file
	ExitOutfileOpen      ExitCode = 18 // cannot open outfile.txt
	ExitWorkerSpawn      ExitCode = 19 // worker process spawn failed
	ExitDataFileFirstCol ExitCode = 20 // data file line's first column is not an integer task id
	ExitOutDir           ExitCode = 21 // output directory is unusable
	ExitWrongTaskClass   ExitCode = 22 // program_flag does not map to a known TaskClass
	ExitDupHost          ExitCode = 23 // transport bring-up failed after retries (duplicate host)
	ExitIO               ExitCode = 24 // a Task Preparer I/O error aborted the run
)

// InputError reports a malformed or unusable input: bad argv, an
// unreadable node/data file, a bad task class, or an unwritable output
// directory, all discovered before the transport is brought up, and a Task
// Preparer I/O error (ExitIO) discovered during dispatch.
type InputError struct {
	Err  error
	Code ExitCode
}

func (e *InputError) Error() string {
	return fmt.Sprintf("exit %d: %v", e.Code, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps err as an InputError with the given exit code.
func NewInputError(code ExitCode, err error) *InputError {
	return &InputError{Err: err, Code: code}
}

// TransportError reports a failure bringing up or using the transport:
// self-id/parent-id sanity checks, spawn failures, or duplicate-host
// bring-up exhaustion.
type TransportError struct {
	Err  error
	Code ExitCode
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("exit %d: transport: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError with the given exit code.
func NewTransportError(code ExitCode, err error) *TransportError {
	return &TransportError{Err: err, Code: code}
}

// TaskError carries rich context about a single task's failure: what slot
// reported it, when, and how long it ran before the failure surfaced.
// Unlike InputError/TransportError it never aborts the run — the scheduler
// logs it and continues, appending the task to the unfinished-tasks file.
type TaskError struct {
	Timestamp time.Time
	Err       error
	TaskID    int
	Slot      int
	Status    Status
	Duration  time.Duration
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (slot %d) %s after %v: %v", e.TaskID, e.Slot, e.Status, e.Duration, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// IsKilled reports whether the underlying status is TASK_KILLED.
func (e *TaskError) IsKilled() bool {
	return e != nil && e.Status == StatusTaskKilled
}

// Sentinel errors for narrow, reusable failure conditions.
var (
	ErrWrongTaskClass   = errors.New("program_flag must be one of 0..5")
	ErrDataFileFirstCol = errors.New("first column of data file line must be an integer task id")
	ErrSlotIndexRange   = errors.New("slot index out of range")
	ErrPreparerIO       = errors.New("task preparer: i/o error writing wrapper script")
	ErrMemoryDeferred   = errors.New("memory gate: deferred, insufficient headroom")
)
