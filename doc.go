// Package dispatchz distributes a batch of independent task invocations
// across worker slots on a set of remote compute nodes.
//
// # Overview
//
// Given a node inventory (host + core count), a task inventory (a tabular
// data file, one task per line), and a program to run, a Scheduler fans
// tasks out to remote Worker processes over a pluggable Transport,
// monitors per-task completion and resource usage, records outputs and
// timings under an output directory, and reports the set of tasks that
// failed to complete so they can be retried in a later run.
//
// # Core Concepts
//
//   - Node: a host plus a core count, read from the node file.
//   - Slot: one unit of concurrency, bound to a node for the life of a run.
//   - Task: one row of the data file, dispatched as one Work message.
//   - Worker: the long-lived process that owns a Slot, pulling work and
//     supervising the user program's execution.
//   - MemoryGate: a worker-side predicate consulted before every task
//     pickup, gating acceptance on host memory pressure.
//   - Preparer: a per-task-class hook that may materialize an interpreter
//     wrapper script before a task is dispatched.
//   - Transport: the message-passing contract between master and workers;
//     see the internal/transport package for the default implementation.
//
// Everything observable happens through capitan signals, metricz
// counters/gauges, and tracez spans; a Scheduler (OnResult, OnShutdown)
// and a Bringup (OnRetry) expose hookz registration points for external
// monitoring. A Worker exposes none.
package dispatchz
