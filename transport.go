package dispatchz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// EndpointID names one side of a Transport connection — the scheduler or
// one spawned worker. Concrete transports are free to choose their own
// representation (a yamux session id, an ssh-tunnel handle); dispatchz
// only depends on it being a comparable, loggable value.
type EndpointID string

// Transport is the narrow collaborator spec.md §2 calls "reliable typed
// message passing between named endpoints": spawn-on-host, framed
// send/recv, and bulk teardown. dispatchz depends only on this interface;
// the concrete implementation (internal/transport) is wired up by the
// CLI layer, not by the scheduler or worker packages.
type Transport interface {
	// SelfID reports this process's own endpoint id.
	SelfID(ctx context.Context) (EndpointID, error)
	// ParentID reports the id of the endpoint that spawned this process,
	// or "" if this process has no parent (it is the scheduler).
	ParentID(ctx context.Context) (EndpointID, error)
	// Spawn starts a worker process on node's host running program, and
	// returns the new endpoint's id.
	Spawn(ctx context.Context, node Node, program string) (EndpointID, error)
	// Send frames and delivers payload to dst.
	Send(ctx context.Context, dst EndpointID, kind MsgKind, payload []byte) error
	// Recv blocks for the next frame addressed to this endpoint from any
	// sender, returning the sender's id alongside the frame.
	Recv(ctx context.Context) (src EndpointID, kind MsgKind, payload []byte, err error)
	// Halt tears down the transport daemon and any scratch state it owns.
	Halt(ctx context.Context) error
}

// ErrDupHost is returned by a Transport's bring-up when the underlying
// daemon reports that a host is already running an instance, per
// original_source PBala.c's pvm_start_pvmd duplicate-host handling.
var ErrDupHost = errors.New("transport: duplicate host detected during bring-up")

// Starter is implemented by transports that need an explicit bring-up
// step before Spawn/Send/Recv are usable — reading a host-config file and
// launching the daemon, the Go analogue of pvm_start_pvmd.
type Starter interface {
	Start(ctx context.Context, hostConfigPath string) error
	ClearScratch(ctx context.Context) error
}

const maxDupHostRetries = 3

// bringupMetrics/Spans/Hooks mirror the teacher's backoff.go observability
// triad (metricz counters, a tracez span per attempt, hookz events) for
// the one retry loop dispatchz actually needs: duplicate-host recovery
// at transport bring-up.
const (
	MetricTransportBringupAttempts = metricz.Key("transport.bringup.attempts")
	MetricTransportBringupFailures = metricz.Key("transport.bringup.failures")

	TraceBringupAttemptSpan = tracez.Key("transport.bringup.attempt")
	TraceTagBringupAttempt  = tracez.Tag("transport.bringup.attempt_num")

	HookBringupRetry = hookz.Key("transport.bringup.retry")
)

// BringupRetryEvent is emitted via hookz on every duplicate-host retry so
// an operator-facing tool can surface bring-up flakiness without parsing
// logs.
type BringupRetryEvent struct {
	Attempt   int
	Err       error
	Timestamp time.Time
}

// Bringup drives a Starter through spec.md §4.1 step 5: start the
// transport daemon; on a duplicate-host report, halt it, clear scratch
// state, and retry up to maxDupHostRetries times before failing with
// ExitDupHost.
type Bringup struct {
	starter Starter
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[BringupRetryEvent]
}

// NewBringup wires a Starter with its own observability, following the
// teacher's convention of each connector owning its metrics/tracer/hooks.
func NewBringup(starter Starter) *Bringup {
	metrics := metricz.New()
	metrics.Counter(MetricTransportBringupAttempts)
	metrics.Counter(MetricTransportBringupFailures)

	return &Bringup{
		starter: starter,
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[BringupRetryEvent](),
	}
}

// WithClock overrides the clock, for deterministic retry tests.
func (b *Bringup) WithClock(clock clockz.Clock) *Bringup {
	b.clock = clock
	return b
}

// OnRetry registers a handler invoked after each duplicate-host retry.
func (b *Bringup) OnRetry(handler func(context.Context, BringupRetryEvent) error) error {
	_, err := b.hooks.Hook(HookBringupRetry, handler)
	return err
}

// Run executes the bring-up/retry sequence and returns a *TransportError
// with ExitDupHost once retries are exhausted.
func (b *Bringup) Run(ctx context.Context, hostConfigPath string) error {
	ctx, span := b.tracer.StartSpan(ctx, TraceTransportSpan)
	defer span.Finish()

	var lastErr error
	for attempt := 1; attempt <= maxDupHostRetries+1; attempt++ {
		b.metrics.Counter(MetricTransportBringupAttempts).Inc()

		_, attemptSpan := b.tracer.StartSpan(ctx, TraceBringupAttemptSpan)
		attemptSpan.SetTag(TraceTagBringupAttempt, fmt.Sprintf("%d", attempt))

		err := b.starter.Start(ctx, hostConfigPath)
		if err == nil {
			attemptSpan.Finish()
			capitan.Info(ctx, SignalTransportStarted, FieldAttempt.Field(attempt))
			return nil
		}
		attemptSpan.Finish()

		if !errors.Is(err, ErrDupHost) {
			b.metrics.Counter(MetricTransportBringupFailures).Inc()
			return NewTransportError(ExitDupHost, err)
		}

		lastErr = err
		if attempt > maxDupHostRetries {
			break
		}

		capitan.Warn(ctx, SignalTransportDupHostRetry,
			FieldAttempt.Field(attempt),
			FieldMaxAttempts.Field(maxDupHostRetries),
		)
		_ = b.hooks.Emit(ctx, HookBringupRetry, BringupRetryEvent{ //nolint:errcheck
			Attempt:   attempt,
			Err:       err,
			Timestamp: b.clock.Now(),
		})

		if err := b.starter.ClearScratch(ctx); err != nil {
			return NewTransportError(ExitDupHost, fmt.Errorf("clearing scratch state: %w", err))
		}
	}

	b.metrics.Counter(MetricTransportBringupFailures).Inc()
	capitan.Error(ctx, SignalTransportHalted, FieldMaxAttempts.Field(maxDupHostRetries))
	return NewTransportError(ExitDupHost, fmt.Errorf("bring-up failed after %d attempts: %w", maxDupHostRetries+1, lastErr))
}
