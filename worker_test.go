package dispatchz

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func alwaysAcceptGate() *MemoryGate {
	return NewMemoryGate(func() (int, error) { return 1 << 30, nil }, 0)
}

func TestWorkerRunsTaskAndReportsResult(t *testing.T) {
	transport := newFakeTransport("scheduler")
	schedulerSide := transport
	workerSide := transport.endpointFor("worker-1")

	preparer := NewPreparer()
	gate := alwaysAcceptGate()

	greeting := Greeting{Slot: 0, TaskClass: ClassCBinary, MaxTaskSizeKB: 0}
	worker := NewWorker(workerSide, preparer, gate, "scheduler", greeting)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- worker.Run(ctx) }()

	outDir := t.TempDir()
	workPayload, err := Encode(Work{TaskID: 1, ProgramFile: "/bin/true", OutDir: outDir, RawArgs: ""})
	if err != nil {
		t.Fatal(err)
	}
	if err := schedulerSide.Send(ctx, "worker-1", MsgWork, workPayload); err != nil {
		t.Fatal(err)
	}

	_, kind, payload, err := schedulerSide.Recv(ctx)
	if err != nil {
		t.Fatalf("recv result: %v", err)
	}
	if kind != MsgResult {
		t.Fatalf("expected MsgResult, got %v", kind)
	}
	msg, err := Decode[ResultMsg](payload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != StatusOK {
		t.Errorf("expected StatusOK, got %v", msg.Status)
	}
	if msg.TaskID != 1 {
		t.Errorf("expected task id 1, got %d", msg.TaskID)
	}
	if msg.WorkerLifetimeMS < 0 {
		t.Errorf("expected non-negative worker lifetime, got %d", msg.WorkerLifetimeMS)
	}

	stopPayload, err := Encode(Stop{FinalTotalTime: 1.0})
	if err != nil {
		t.Fatal(err)
	}
	if err := schedulerSide.Send(ctx, "worker-1", MsgStop, stopPayload); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("worker.Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after STOP")
	}
}

func TestWorkerReportsForkErrOnBadExecutable(t *testing.T) {
	transport := newFakeTransport("scheduler")
	schedulerSide := transport
	workerSide := transport.endpointFor("worker-1")

	worker := NewWorker(workerSide, NewPreparer(), alwaysAcceptGate(), "scheduler", Greeting{Slot: 2, TaskClass: ClassCBinary})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go worker.Run(ctx)

	workPayload, _ := Encode(Work{TaskID: 5, ProgramFile: "/nonexistent/nope", OutDir: t.TempDir()})
	if err := schedulerSide.Send(ctx, "worker-1", MsgWork, workPayload); err != nil {
		t.Fatal(err)
	}

	_, kind, payload, err := schedulerSide.Recv(ctx)
	if err != nil {
		t.Fatalf("recv result: %v", err)
	}
	if kind != MsgResult {
		t.Fatalf("expected MsgResult, got %v", kind)
	}
	msg, err := Decode[ResultMsg](payload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != StatusForkErr {
		t.Errorf("expected StatusForkErr, got %v", msg.Status)
	}
}

func TestWorkerWaitsOnMemoryGateBeforePulling(t *testing.T) {
	transport := newFakeTransport("scheduler")
	workerSide := transport.endpointFor("worker-1")

	clock := clockz.NewFakeClock()
	deferCount := 0
	gate := NewMemoryGate(func() (int, error) {
		deferCount++
		if deferCount < 2 {
			return 0, nil
		}
		return 1 << 30, nil
	}, 1024).WithClock(clock)

	worker := NewWorker(workerSide, NewPreparer(), gate, "scheduler", Greeting{Slot: 0, TaskClass: ClassCBinary, MaxTaskSizeKB: 512}).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	clock.BlockUntilReady()
	clock.Advance(memoryGateRetryInterval)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after cancellation")
	}
	if deferCount < 2 {
		t.Errorf("expected at least 2 gate checks (one defer, one accept), got %d", deferCount)
	}
}
