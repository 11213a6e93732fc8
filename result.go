package dispatchz

import (
	"fmt"
	"syscall"
	"time"
)

// Status classifies the outcome of one task execution, reported by the
// worker alongside the Result message.
type Status int

// Status values, carried from the original worker status codes.
const (
	StatusOK         Status = 0
	StatusMemErr     Status = 1
	StatusForkErr    Status = 10
	StatusTaskKilled Status = 11
)

// String renders the status name used in log lines and the
// unfinished-tasks file.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMemErr:
		return "MEM_ERR"
	case StatusForkErr:
		return "FORK_ERR"
	case StatusTaskKilled:
		return "TASK_KILLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ResourceProfile carries the rusage accounting a worker samples for the
// task's child process from os.ProcessState.SysUsage once it exits, the
// counterpart of the original's getrusage(RUSAGE_CHILDREN) prtusage report.
type ResourceProfile struct {
	UserTime   time.Duration
	SystemTime time.Duration
	MaxRSSKB   int64
}

// ResourceProfileFromRusage converts a syscall.Rusage sample (as returned
// by os.ProcessState.SysUsage() on the worker's child) into a
// ResourceProfile. Ru_maxrss units are platform-dependent (KB on Linux);
// dispatchz only runs where that holds, matching the original tool's
// Linux-only deployment target.
func ResourceProfileFromRusage(ru *syscall.Rusage) ResourceProfile {
	return ResourceProfile{
		UserTime:   time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond,
		SystemTime: time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond,
		MaxRSSKB:   int64(ru.Maxrss),
	}
}

// Result is what a worker reports back to the scheduler after running one
// task: its outcome, wall-clock execution time, and (when the child ran)
// the resource profile sampled from its exit status. RawArgs is echoed
// back so the scheduler can append it to unfinished_tasks.txt without
// having to keep the original task around. WorkerLifetime is the worker's
// time alive so far, set on every result; the scheduler only accumulates
// the one on each slot's final drain result into the run's combined-time
// summary.
type Result struct {
	TaskID         int
	Slot           int
	Status         Status
	RawArgs        string
	ExecTime       time.Duration
	Profile        ResourceProfile
	WorkerLifetime time.Duration
}

// Failed reports whether this result should be appended to the
// unfinished-tasks file and counted against the run's failure tally.
func (r Result) Failed() bool {
	return r.Status != StatusOK
}
