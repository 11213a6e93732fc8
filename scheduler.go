package dispatchz

import (
	"context"
	"fmt"
	"io"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// SchedulerConfig bundles everything the Master Scheduler needs to drive
// one run, gathered from CLI/config parsing (out of scope per spec.md
// §1 — dispatchz depends only on this struct, not on how it was built).
type SchedulerConfig struct {
	NodeFile       string
	DataFile       string
	OutDir         string
	ProgramPath    string
	TaskClass      TaskClass
	MaxTaskSizeKB  int
	CreateSlavefile bool
	CreateErrFiles bool
	CreateMemFiles bool
	CustomProgram  bool
	WorkerProgram  string
}

// Scheduler is the Master Scheduler: it owns the task queue, the slot
// table, the output writer, and the unfinished-task log, and it
// orchestrates fleet construction, the queue drive/drain cycle, and
// shutdown, per spec.md §4.1.
type Scheduler struct {
	cfg       SchedulerConfig
	transport Transport
	preparer  *Preparer
	clock     clockz.Clock
	tracer    *tracez.Tracer
	metrics   *metricz.Registry
	hooks     *hookz.Hooks[Result]
	shutdownHooks *hookz.Hooks[ShutdownSummary]
}

// Metrics exposes the run's metricz.Registry so callers can bridge it to
// an external scrape endpoint (e.g. a Prometheus handler).
func (s *Scheduler) Metrics() *metricz.Registry { return s.metrics }

// NewScheduler builds a Scheduler ready to Run once its Transport is
// brought up by the caller (see Bringup).
func NewScheduler(cfg SchedulerConfig, transport Transport, preparer *Preparer) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		transport:     transport,
		preparer:      preparer,
		clock:         clockz.RealClock,
		tracer:        tracez.New(),
		metrics:       newMetricsRegistry(),
		hooks:         hookz.New[Result](),
		shutdownHooks: hookz.New[ShutdownSummary](),
	}
}

// WithClock overrides the scheduler's clock, for deterministic tests of
// the wall-clock summary.
func (s *Scheduler) WithClock(clock clockz.Clock) *Scheduler {
	s.clock = clock
	return s
}

// OnResult registers a handler invoked for every task Result the
// scheduler classifies, OK or not.
func (s *Scheduler) OnResult(handler func(context.Context, Result) error) error {
	_, err := s.hooks.Hook(HookTaskResult, handler)
	return err
}

// OnShutdown registers a handler invoked once with the run's final
// summary.
func (s *Scheduler) OnShutdown(handler func(context.Context, ShutdownSummary) error) error {
	_, err := s.shutdownHooks.Hook(HookRunShutdown, handler)
	return err
}

// Run executes one full dispatch run: load inputs, build the fleet,
// drive the queue to exhaustion, drain, and shut down. It returns the
// run's final summary on success.
func (s *Scheduler) Run(ctx context.Context) (ShutdownSummary, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.StartSpan(ctx, TraceTaskSpan)
	defer span.Finish()

	nodes, err := LoadNodes(s.cfg.NodeFile)
	if err != nil {
		return ShutdownSummary{}, err
	}

	outputs, err := NewOutputWriter(s.cfg.OutDir)
	if err != nil {
		return ShutdownSummary{}, err
	}
	defer outputs.Close()

	taskSource, err := OpenTaskSource(s.cfg.DataFile)
	if err != nil {
		return ShutdownSummary{}, err
	}
	defer taskSource.Close()

	capitan.Info(ctx, SignalSchedulerStarted,
		FieldSlotCount.Field(TotalCores(nodes)),
	)

	slots, err := SpawnFleet(ctx, s.transport, nodes, FleetConfig{
		TaskClass:      s.cfg.TaskClass,
		MaxTaskSizeKB:  s.cfg.MaxTaskSizeKB,
		CreateErrFiles: s.cfg.CreateErrFiles,
		CreateMemFiles: s.cfg.CreateMemFiles,
		CustomProgram:  s.cfg.CustomProgram,
		ProgramPath:    s.cfg.ProgramPath,
		WorkerProgram:  s.cfg.WorkerProgram,
	})
	if err != nil {
		return ShutdownSummary{}, err
	}
	s.metrics.Gauge(MetricActiveSlots).Set(float64(len(slots)))

	if s.cfg.CreateSlavefile {
		if err := outputs.WriteNodeInfo(slots); err != nil {
			return ShutdownSummary{}, err
		}
	}

	nTasks := taskSource.NTasks()
	n := nTasks
	if len(slots) < n {
		n = len(slots)
	}

	summary := ShutdownSummary{}

	// First batch: one task per slot, up to N = min(nTasks, Σcores).
	for i := 0; i < n; i++ {
		if err := s.dispatchNext(ctx, taskSource, slots[i], outputs, &summary); err != nil {
			return ShutdownSummary{}, err
		}
	}

	// Steady state: for each of the remaining nTasks-N tasks, wait for
	// any slot to report, classify, then feed it the next task.
	remaining := nTasks - n
	for i := 0; i < remaining; i++ {
		slot, result, err := s.recvResultFrom(ctx, slots)
		if err != nil {
			return ShutdownSummary{}, err
		}
		s.classify(ctx, result, outputs, &summary)
		if err := s.dispatchNext(ctx, taskSource, slot, outputs, &summary); err != nil {
			return ShutdownSummary{}, err
		}
	}

	// Drain: receive exactly one more (final) result per live slot, then
	// send STOP.
	for i := 0; i < n; i++ {
		slot, result, err := s.recvResultFrom(ctx, slots)
		if err != nil {
			return ShutdownSummary{}, err
		}
		s.classify(ctx, result, outputs, &summary)
		summary.CombinedCPUTime += result.WorkerLifetime.Seconds()

		stopPayload, err := Encode(Stop{FinalTotalTime: summary.CombinedCPUTime})
		if err != nil {
			return ShutdownSummary{}, err
		}
		if err := s.transport.Send(ctx, slot.Handle, MsgStop, stopPayload); err != nil {
			return ShutdownSummary{}, err
		}
	}

	summary.WallClockSeconds = s.clock.Now().Sub(start).Seconds()
	s.metrics.Gauge(MetricCombinedCPUTime).Set(summary.CombinedCPUTime * 1000)
	s.metrics.Gauge(MetricActiveSlots).Set(0)

	if err := s.shutdown(ctx, slots); err != nil {
		return summary, err
	}

	capitan.Info(ctx, SignalSchedulerShutdown,
		FieldDuration.Field(summary.WallClockSeconds),
	)
	_ = s.shutdownHooks.Emit(ctx, HookRunShutdown, summary) //nolint:errcheck

	return summary, nil
}

// slotByHandle finds the live Slot for an endpoint, used to resolve the
// sender of a steady-state/drain result back to a dispatch target.
func slotByHandle(slots []Slot, handle EndpointID) (Slot, bool) {
	for _, s := range slots {
		if s.Handle == handle {
			return s, true
		}
	}
	return Slot{}, false
}

// dispatchNext reads the next task from source, runs it through the Task
// Preparer, and sends it as Work to slot. At end of stream this is a
// silent no-op: the caller's loop bounds (n, remaining) already account
// for exactly nTasks dispatches.
func (s *Scheduler) dispatchNext(ctx context.Context, source *TaskSource, slot Slot, outputs *OutputWriter, summary *ShutdownSummary) error {
	task, err := source.Next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	execPath, err := s.preparer.Prepare(s.cfg.TaskClass, task.ID, task.RawArgs, s.cfg.ProgramPath, s.cfg.OutDir)
	if err != nil {
		return NewInputError(ExitIO, err)
	}
	if execPath != s.cfg.ProgramPath {
		capitan.Info(ctx, SignalScriptCreated,
			FieldTaskID.Field(task.ID),
		)
	}

	work := Work{TaskID: task.ID, ProgramFile: execPath, OutDir: s.cfg.OutDir, RawArgs: task.RawArgs}
	payload, err := Encode(work)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, slot.Handle, MsgWork, payload); err != nil {
		return err
	}

	if err := outputs.AppendDispatch(slot.Index, task.ID); err != nil {
		return err
	}

	summary.TasksDispatched++
	s.metrics.Counter(MetricTasksDispatched).Inc()
	capitan.Info(ctx, SignalTaskSent,
		FieldSlot.Field(slot.Index),
		FieldTaskID.Field(task.ID),
	)
	return nil
}

// recvResultFrom blocks on Transport.Recv for the next MsgResult from any
// slot and resolves the sender back to its Slot, per §5's ordering
// guarantee: "the master receives results in completion order, not
// dispatch order."
func (s *Scheduler) recvResultFrom(ctx context.Context, slots []Slot) (Slot, Result, error) {
	src, kind, payload, err := s.transport.Recv(ctx)
	if err != nil {
		return Slot{}, Result{}, err
	}
	if kind != MsgResult {
		return Slot{}, Result{}, fmt.Errorf("scheduler: expected MsgResult, got %v", kind)
	}
	msg, err := Decode[ResultMsg](payload)
	if err != nil {
		return Slot{}, Result{}, err
	}
	slot, ok := slotByHandle(slots, src)
	if !ok {
		return Slot{}, Result{}, fmt.Errorf("scheduler: result from unknown endpoint %q", src)
	}
	return slot, msg.ToResult(), nil
}

// classify logs and records a task result per §4.1's steady-state
// classification rule, and emits it to any HookTaskResult subscribers.
func (s *Scheduler) classify(ctx context.Context, result Result, outputs *OutputWriter, summary *ShutdownSummary) {
	if result.Failed() {
		summary.TasksFailed++
		switch result.Status {
		case StatusTaskKilled:
			s.metrics.Counter(MetricTasksKilled).Inc()
		case StatusMemErr:
			s.metrics.Counter(MetricTasksMemErr).Inc()
		case StatusForkErr:
			s.metrics.Counter(MetricTasksForkErr).Inc()
		}
		capitan.Warn(ctx, SignalTaskFailed,
			FieldTaskID.Field(result.TaskID),
			FieldStatus.Field(result.Status.String()),
		)
	} else {
		s.metrics.Counter(MetricTasksCompleted).Inc()
		capitan.Info(ctx, SignalTaskCompleted,
			FieldTaskID.Field(result.TaskID),
			FieldExecTime.Field(result.ExecTime.Seconds()),
		)
	}
	_ = outputs.RecordResult(result)
	_ = s.hooks.Emit(ctx, HookTaskResult, result) //nolint:errcheck
}

// shutdown implements §4.1's shutdown sequence: sweep auxprog files if
// this task class used a Task Preparer, then halt the transport.
func (s *Scheduler) shutdown(ctx context.Context, _ []Slot) error {
	if s.cfg.TaskClass.NeedsWrapper() {
		if err := SweepAuxprogFiles(s.cfg.OutDir); err != nil {
			return err
		}
	}
	return s.transport.Halt(ctx)
}
