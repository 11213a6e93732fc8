package dispatchz

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a value of type T to bytes using msgpack encoding.
// This is the wire encoding for every message dispatchz's transport
// carries between the scheduler and a worker.
func Encode[T any](value T) ([]byte, error) {
	return msgpack.Marshal(value)
}

// Decode deserializes bytes into a value of type T using msgpack decoding.
func Decode[T any](data []byte) (T, error) {
	var value T
	err := msgpack.Unmarshal(data, &value)
	return value, err
}

// MsgKind tags the frame type on the wire so a receiver can dispatch to
// the right decode target before it has parsed the payload.
type MsgKind uint8

// Message kinds exchanged between scheduler and worker.
const (
	MsgGreeting MsgKind = iota + 1
	MsgWork
	MsgStop
	MsgResult
)

func (k MsgKind) String() string {
	switch k {
	case MsgGreeting:
		return "GREETING"
	case MsgWork:
		return "WORK"
	case MsgStop:
		return "STOP"
	case MsgResult:
		return "RESULT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Frame is the envelope written to a Transport stream: a kind tag
// followed by the msgpack-encoded payload matching that kind.
type Frame struct {
	Kind    MsgKind
	Payload []byte
}

// Greeting is sent by the scheduler to a newly spawned worker immediately
// after bring-up, assigning it a slot and telling it how to police memory
// and invoke its program. ProgramPath is empty unless CustomProgram is
// set. The worker decodes both fields but does not act on them: it runs
// the ProgramFile named by each Work message.
type Greeting struct {
	Slot            int
	TaskClass       TaskClass
	MaxTaskSizeKB   int
	CreateErrFiles  bool
	CreateMemFiles  bool
	CustomProgram   bool
	ProgramPath     string
}

// Work carries one task's id and the raw argument string (with its
// leading task-id column already stripped) to a worker, plus the program
// file and output directory the scheduler resolved at dispatch time.
type Work struct {
	TaskID     int
	ProgramFile string
	OutDir     string
	RawArgs    string
}

// Stop tells a worker there is no more work; the worker reads it between
// tasks, never while a child is running, and leaves its loop.
// FinalTotalTime carries the scheduler's running combined-time total at
// the moment of sending, as the original master passed its running total
// in the final STOP message; the worker decodes it but does not use it.
type Stop struct {
	FinalTotalTime float64
}

// ResultMsg is the wire form of Result sent by a worker back to the
// scheduler. It mirrors Result field-for-field; kept distinct so the wire
// shape can evolve independently of the in-process Result type.
type ResultMsg struct {
	TaskID             int
	Slot               int
	Status             Status
	RawArgs            string
	ExecTimeMS         int64
	UserTimeMS         int64
	SystemTimeMS       int64
	MaxRSSKB           int64
	WorkerLifetimeMS   int64
}

// ToResult converts a wire ResultMsg into the in-process Result type.
func (m ResultMsg) ToResult() Result {
	return Result{
		TaskID:  m.TaskID,
		Slot:    m.Slot,
		Status:  m.Status,
		RawArgs: m.RawArgs,
		ExecTime: time.Duration(m.ExecTimeMS) * time.Millisecond,
		Profile: ResourceProfile{
			UserTime:   time.Duration(m.UserTimeMS) * time.Millisecond,
			SystemTime: time.Duration(m.SystemTimeMS) * time.Millisecond,
			MaxRSSKB:   m.MaxRSSKB,
		},
		WorkerLifetime: time.Duration(m.WorkerLifetimeMS) * time.Millisecond,
	}
}

// ResultMsgFromResult converts an in-process Result into its wire form.
func ResultMsgFromResult(r Result) ResultMsg {
	return ResultMsg{
		TaskID:           r.TaskID,
		Slot:             r.Slot,
		Status:           r.Status,
		RawArgs:          r.RawArgs,
		ExecTimeMS:       r.ExecTime.Milliseconds(),
		UserTimeMS:       r.Profile.UserTime.Milliseconds(),
		SystemTimeMS:     r.Profile.SystemTime.Milliseconds(),
		MaxRSSKB:         r.Profile.MaxRSSKB,
		WorkerLifetimeMS: r.WorkerLifetime.Milliseconds(),
	}
}
