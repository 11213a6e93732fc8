// Command worker is the per-slot process SpawnFleet starts: it dials
// back to the master, receives its Greeting, and runs the slot's
// lifecycle loop until STOP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/dispatchz"
	itransport "github.com/zoobzio/dispatchz/internal/transport"
)

func main() {
	masterAddr := flag.String("master-addr", "", "master's control listener address")
	slotID := flag.String("slot-id", "", "this worker's endpoint id, assigned by the master at spawn")
	parentID := flag.String("parent-id", "", "the master's endpoint id")
	memSafetyMarginKB := flag.Int("mem-safety-margin-kb", 65536, "memory gate safety margin in KB")
	flag.Parse()

	if *masterAddr == "" || *slotID == "" || *parentID == "" {
		fmt.Fprintln(os.Stderr, "worker: --master-addr, --slot-id, and --parent-id are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *masterAddr, *slotID, *parentID, *memSafetyMarginKB); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, masterAddr, slotID, parentID string, memSafetyMarginKB int) error {
	self := dispatchz.EndpointID(slotID)
	parent := dispatchz.EndpointID(parentID)

	transport, err := itransport.DialMaster(ctx, masterAddr, self, parent)
	if err != nil {
		return err
	}
	defer transport.Halt(context.Background())

	_, kind, payload, err := transport.Recv(ctx)
	if err != nil {
		return fmt.Errorf("waiting for greeting: %w", err)
	}
	if kind != dispatchz.MsgGreeting {
		return fmt.Errorf("expected greeting, got %v", kind)
	}
	greeting, err := dispatchz.Decode[dispatchz.Greeting](payload)
	if err != nil {
		return fmt.Errorf("decoding greeting: %w", err)
	}
	capitan.Info(ctx, dispatchz.SignalSlotGreeted,
		dispatchz.FieldSlot.Field(greeting.Slot),
	)

	gate := dispatchz.NewMemoryGate(readMemAvailableKB, memSafetyMarginKB)
	worker := dispatchz.NewWorker(transport, dispatchz.NewPreparer(), gate, parent, greeting)

	return worker.Run(ctx)
}
