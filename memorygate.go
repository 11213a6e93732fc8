package dispatchz

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// MemoryMode selects which heuristic the Memory Gate applies before a
// worker picks up its next task.
type MemoryMode int

// Memory gate modes. A worker runs in SPECIFIC mode whenever its greeting
// carries a positive MaxTaskSizeKB, GENERIC otherwise.
const (
	MemoryModeGeneric MemoryMode = iota
	MemoryModeSpecific
)

func (m MemoryMode) String() string {
	if m == MemoryModeSpecific {
		return "SPECIFIC"
	}
	return "GENERIC"
}

// MemoryModeFor derives the gate mode from a greeting's max task size,
// matching the worker lifecycle's step 1: "Set memcheck_mode =
// (max_task_size_kb > 0) ? SPECIFIC : GENERIC".
func MemoryModeFor(maxTaskSizeKB int) MemoryMode {
	if maxTaskSizeKB > 0 {
		return MemoryModeSpecific
	}
	return MemoryModeGeneric
}

// GateDecision is the Memory Gate's verdict.
type GateDecision int

// Gate decisions.
const (
	GateAccept GateDecision = iota
	GateDefer
)

// AvailableMemoryFunc reports current available system memory in KB. It
// is a pluggable predicate: spec.md treats the memory-inspection routine
// itself as an external collaborator, so dispatchz depends only on this
// narrow signature and never reads /proc or any platform API directly.
type AvailableMemoryFunc func() (availableKB int, err error)

// MemoryGate is the worker-side predicate consulted before each task
// pickup. It is intentionally best-effort and racy across workers on the
// same host: two workers may both observe sufficient headroom and both
// accept, because the true cost of GENERIC is an implementation-defined
// safety margin and SPECIFIC only bounds from above. Infeasible accepts
// surface downstream as FORK_ERR or a killed child, not as a gate defer.
type MemoryGate struct {
	available    AvailableMemoryFunc
	clock        clockz.Clock
	safetyMarginKB int
}

// NewMemoryGate builds a gate backed by the given memory-inspection
// function and a safety margin: GENERIC mode defers below the margin
// alone, SPECIFIC mode below maxTaskSizeKB plus the margin.
func NewMemoryGate(available AvailableMemoryFunc, safetyMarginKB int) *MemoryGate {
	return &MemoryGate{
		available:      available,
		safetyMarginKB: safetyMarginKB,
		clock:          clockz.RealClock,
	}
}

// WithClock overrides the gate's clock, for deterministic tests of the
// defer/retry loop.
func (g *MemoryGate) WithClock(clock clockz.Clock) *MemoryGate {
	g.clock = clock
	return g
}

// Check consults the gate once and returns its decision without sleeping.
func (g *MemoryGate) Check(ctx context.Context, mode MemoryMode, maxTaskSizeKB int) (GateDecision, error) {
	availableKB, err := g.available()
	if err != nil {
		return GateDefer, err
	}

	var decision GateDecision
	switch mode {
	case MemoryModeSpecific:
		if availableKB < maxTaskSizeKB+g.safetyMarginKB {
			decision = GateDefer
		} else {
			decision = GateAccept
		}
	default:
		if availableKB < g.safetyMarginKB {
			decision = GateDefer
		} else {
			decision = GateAccept
		}
	}

	if decision == GateAccept {
		capitan.Info(ctx, SignalMemoryGateAccepted,
			FieldMode.Field(mode.String()),
			FieldMaxTaskKB.Field(maxTaskSizeKB),
			FieldAvailableKB.Field(availableKB),
		)
	} else {
		capitan.Warn(ctx, SignalMemoryGateDeferred,
			FieldMode.Field(mode.String()),
			FieldMaxTaskKB.Field(maxTaskSizeKB),
			FieldAvailableKB.Field(availableKB),
		)
	}
	return decision, nil
}

// memoryGateRetryInterval is the fixed backoff between deferred gate
// checks, carried from the original worker's sleep(60) between memcheck
// attempts.
const memoryGateRetryInterval = 60 * time.Second

// WaitForAccept blocks, retrying the gate on a fixed interval, until it
// returns GateAccept or ctx is canceled. This is step 2a of the worker
// lifecycle: gating happens before the worker pulls its next work item,
// so a deferred worker never holds a task it cannot yet start.
func (g *MemoryGate) WaitForAccept(ctx context.Context, mode MemoryMode, maxTaskSizeKB int) error {
	for {
		decision, err := g.Check(ctx, mode, maxTaskSizeKB)
		if err != nil {
			return err
		}
		if decision == GateAccept {
			return nil
		}
		select {
		case <-g.clock.After(memoryGateRetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
