package dispatchz

import (
	"context"
	"testing"
)

func TestSpawnFleetAssignsSlotsNodeMajor(t *testing.T) {
	transport := newFakeTransport("scheduler")
	nodes := []Node{
		{Hostname: "node-a", Cores: 2},
		{Hostname: "node-b", Cores: 3},
	}

	slots, err := SpawnFleet(context.Background(), transport, nodes, FleetConfig{
		TaskClass:     ClassCBinary,
		WorkerProgram: "worker",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}

	for i, s := range slots {
		if s.Index != i {
			t.Errorf("slot %d has Index %d", i, s.Index)
		}
	}
	for i := 0; i < 2; i++ {
		if slots[i].Node.Hostname != "node-a" {
			t.Errorf("slot %d expected node-a, got %s", i, slots[i].Node.Hostname)
		}
	}
	for i := 2; i < 5; i++ {
		if slots[i].Node.Hostname != "node-b" {
			t.Errorf("slot %d expected node-b, got %s", i, slots[i].Node.Hostname)
		}
	}
}

func TestSpawnFleetSendsGreetingPerSlot(t *testing.T) {
	transport := newFakeTransport("scheduler")
	nodes := []Node{{Hostname: "node-a", Cores: 2}}

	slots, err := SpawnFleet(context.Background(), transport, nodes, FleetConfig{
		TaskClass:     ClassPython,
		MaxTaskSizeKB: 4096,
		WorkerProgram: "worker",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range slots {
		workerSide := transport.endpointFor(s.Handle)
		_, kind, payload, err := workerSide.Recv(context.Background())
		if err != nil {
			t.Fatalf("slot %d: recv greeting: %v", s.Index, err)
		}
		if kind != MsgGreeting {
			t.Fatalf("slot %d: expected MsgGreeting, got %v", s.Index, kind)
		}
		greeting, err := Decode[Greeting](payload)
		if err != nil {
			t.Fatal(err)
		}
		if greeting.Slot != s.Index {
			t.Errorf("greeting slot mismatch: got %d, want %d", greeting.Slot, s.Index)
		}
		if greeting.TaskClass != ClassPython {
			t.Errorf("expected ClassPython, got %v", greeting.TaskClass)
		}
		if greeting.MaxTaskSizeKB != 4096 {
			t.Errorf("expected MaxTaskSizeKB 4096, got %d", greeting.MaxTaskSizeKB)
		}
	}
}

func TestSpawnFleetEmptyNodes(t *testing.T) {
	transport := newFakeTransport("scheduler")
	slots, err := SpawnFleet(context.Background(), transport, nil, FleetConfig{WorkerProgram: "worker"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected 0 slots, got %d", len(slots))
	}
}
