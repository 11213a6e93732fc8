package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/zoobzio/dispatchz"
)

// dialTimeout bounds how long a worker waits to connect back to the
// master's control listener after being spawned.
const dialTimeout = 10 * time.Second

// WorkerTransport is the worker-side dispatchz.Transport: one yamux
// client session over one TCP connection to the master, carrying exactly
// one stream of length-prefixed frames.
type WorkerTransport struct {
	self   dispatchz.EndpointID
	parent dispatchz.EndpointID

	conn    net.Conn
	session *yamux.Session
	stream  *syncConn
}

// DialMaster connects to the master's control listener at masterAddr,
// opens the session's single stream, and sends the handshake frame
// identifying self. parent is always the fixed scheduler endpoint id the
// master advertises, passed down via --parent-id at spawn time.
func DialMaster(ctx context.Context, masterAddr string, self, parent dispatchz.EndpointID) (*WorkerTransport, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", masterAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing master at %s: %w", masterAddr, err)
	}

	session, err := yamux.Client(conn, yamux.DefaultConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: yamux client handshake: %w", err)
	}
	stream, err := session.Open()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("transport: opening control stream: %w", err)
	}

	sc := &syncConn{Conn: stream}
	if err := writeFrame(sc, dispatchz.MsgGreeting, []byte(self)); err != nil {
		session.Close()
		return nil, fmt.Errorf("transport: sending handshake: %w", err)
	}

	return &WorkerTransport{self: self, parent: parent, conn: conn, session: session, stream: sc}, nil
}

// SelfID returns this worker's own endpoint id, fixed at construction.
func (t *WorkerTransport) SelfID(_ context.Context) (dispatchz.EndpointID, error) {
	return t.self, nil
}

// ParentID returns the scheduler's endpoint id.
func (t *WorkerTransport) ParentID(_ context.Context) (dispatchz.EndpointID, error) {
	return t.parent, nil
}

// Spawn is not valid from a worker: only the scheduler spawns.
func (t *WorkerTransport) Spawn(context.Context, dispatchz.Node, string) (dispatchz.EndpointID, error) {
	return "", errors.New("transport: a worker cannot spawn further workers")
}

// Send writes a frame to the master. dst is unused beyond a sanity check
// since a worker has exactly one peer.
func (t *WorkerTransport) Send(_ context.Context, dst dispatchz.EndpointID, kind dispatchz.MsgKind, payload []byte) error {
	if dst != t.parent {
		return fmt.Errorf("transport: worker %s cannot send to %s, only to parent %s", t.self, dst, t.parent)
	}
	return writeFrame(t.stream, kind, payload)
}

// Recv blocks for the next frame from the master. The sender is always
// the parent: a worker's single stream only ever carries parent traffic.
func (t *WorkerTransport) Recv(ctx context.Context) (dispatchz.EndpointID, dispatchz.MsgKind, []byte, error) {
	type result struct {
		kind    dispatchz.MsgKind
		payload []byte
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		kind, payload, err := readFrame(t.stream)
		resultCh <- result{kind, payload, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return "", 0, nil, r.err
		}
		return t.parent, r.kind, r.payload, nil
	case <-ctx.Done():
		return "", 0, nil, ctx.Err()
	}
}

// Halt closes the control stream, session, and underlying connection.
func (t *WorkerTransport) Halt(_ context.Context) error {
	_ = t.session.Close()
	return t.conn.Close()
}
