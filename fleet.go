package dispatchz

import (
	"context"

	"github.com/zoobzio/capitan"
	"golang.org/x/sync/errgroup"
)

// Slot is a single unit of worker concurrency, bound to one node and one
// remote worker process for the entire run.
type Slot struct {
	Index   int
	Node    Node
	Handle  EndpointID
}

// FleetConfig carries the per-greeting parameters every spawned worker in
// a run shares, aside from its slot index.
type FleetConfig struct {
	TaskClass      TaskClass
	MaxTaskSizeKB  int
	CreateErrFiles bool
	CreateMemFiles bool
	CustomProgram  bool
	ProgramPath    string
	WorkerProgram  string // the binary name passed to Transport.Spawn, conventionally "worker".
}

// SpawnFleet builds one Slot per core across the node roster, spawning
// workers concurrently across nodes (via errgroup) but sequentially
// within a node, per SPEC_FULL.md's concurrency model: a node's own
// worker processes start one at a time against that host, while separate
// hosts are dialed in parallel. Slot indices are assigned densely,
// node-major, so they stay reproducible across runs with the same node
// file. A spawn failure anywhere is fatal and aborts the whole fleet,
// mirroring §4.1's "A spawn failure is fatal."
func SpawnFleet(ctx context.Context, transport Transport, nodes []Node, cfg FleetConfig) ([]Slot, error) {
	slots := make([]Slot, TotalCores(nodes))
	baseIndex := 0
	offsets := make([]int, len(nodes))
	for i, n := range nodes {
		offsets[i] = baseIndex
		baseIndex += n.Cores
	}

	g, gctx := errgroup.WithContext(ctx)
	for ni, node := range nodes {
		ni, node := ni, node
		g.Go(func() error {
			for c := 0; c < node.Cores; c++ {
				slotIndex := offsets[ni] + c
				handle, err := transport.Spawn(gctx, node, cfg.WorkerProgram)
				if err != nil {
					return NewTransportError(ExitWorkerSpawn, err)
				}
				slots[slotIndex] = Slot{Index: slotIndex, Node: node, Handle: handle}

				greeting := Greeting{
					Slot:           slotIndex,
					TaskClass:      cfg.TaskClass,
					MaxTaskSizeKB:  cfg.MaxTaskSizeKB,
					CreateErrFiles: cfg.CreateErrFiles,
					CreateMemFiles: cfg.CreateMemFiles,
					CustomProgram:  cfg.CustomProgram,
				}
				if cfg.CustomProgram {
					greeting.ProgramPath = cfg.ProgramPath
				}
				payload, err := Encode(greeting)
				if err != nil {
					return err
				}
				if err := transport.Send(gctx, handle, MsgGreeting, payload); err != nil {
					return NewTransportError(ExitWorkerSpawn, err)
				}

				capitan.Info(gctx, SignalSlotSpawned,
					FieldSlot.Field(slotIndex),
					FieldNode.Field(node.Hostname),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	capitan.Info(ctx, SignalFleetComplete, FieldSlotCount.Field(len(slots)))
	return slots, nil
}
