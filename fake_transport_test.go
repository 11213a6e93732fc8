package dispatchz

import (
	"context"
	"fmt"
	"sync"
)

// frameMsg is one frame in flight on a fakeTransport, tagged with its
// sender so Recv can report who it came from.
type frameMsg struct {
	from    EndpointID
	kind    MsgKind
	payload []byte
}

// fakeTransport is an in-memory Transport double shared by worker_test.go
// and scheduler_test.go. Every endpoint gets its own inbox; Send delivers
// directly to the destination's inbox, Recv reads from the calling
// endpoint's own inbox. Spawn just registers a new inbox and returns a
// synthetic id — no real process is started.
type fakeTransport struct {
	mu      sync.Mutex
	inboxes map[EndpointID]chan frameMsg
	self    EndpointID
	parent  EndpointID
	nextID  int
}

func newFakeTransport(self EndpointID) *fakeTransport {
	return &fakeTransport{
		inboxes: map[EndpointID]chan frameMsg{
			self: make(chan frameMsg, 64),
		},
		self: self,
	}
}

// endpointFor returns a Transport handle scoped to a different local
// endpoint than the one that constructed the fake, so a test can drive
// both scheduler and worker sides against the same inbox map.
func (f *fakeTransport) endpointFor(id EndpointID) *fakeTransport {
	f.mu.Lock()
	if _, ok := f.inboxes[id]; !ok {
		f.inboxes[id] = make(chan frameMsg, 64)
	}
	f.mu.Unlock()
	return &fakeTransport{inboxes: f.inboxes, self: id, parent: f.self}
}

func (f *fakeTransport) SelfID(context.Context) (EndpointID, error) { return f.self, nil }
func (f *fakeTransport) ParentID(context.Context) (EndpointID, error) { return f.parent, nil }

func (f *fakeTransport) Spawn(_ context.Context, _ Node, _ string) (EndpointID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := EndpointID(fmt.Sprintf("worker-%d", f.nextID))
	f.inboxes[id] = make(chan frameMsg, 64)
	return id, nil
}

func (f *fakeTransport) Send(ctx context.Context, dst EndpointID, kind MsgKind, payload []byte) error {
	f.mu.Lock()
	inbox, ok := f.inboxes[dst]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("fakeTransport: unknown endpoint %q", dst)
	}
	select {
	case inbox <- frameMsg{from: f.self, kind: kind, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Recv(ctx context.Context) (EndpointID, MsgKind, []byte, error) {
	f.mu.Lock()
	inbox := f.inboxes[f.self]
	f.mu.Unlock()
	select {
	case msg := <-inbox:
		return msg.from, msg.kind, msg.payload, nil
	case <-ctx.Done():
		return "", 0, nil, ctx.Err()
	}
}

func (f *fakeTransport) Halt(context.Context) error { return nil }
