package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/zoobzio/dispatchz"
)

// registerTimeout bounds how long Spawn waits for a newly started worker
// to dial back and register its stream before treating the spawn as
// failed.
const registerTimeout = 30 * time.Second

// selfEndpointID is the fixed id the master identifies itself by on the
// wire; workers learn it as their ParentID.
const selfEndpointID dispatchz.EndpointID = "scheduler"

type inboundFrame struct {
	src     dispatchz.EndpointID
	kind    dispatchz.MsgKind
	payload []byte
}

// syncConn serializes writes to a net.Conn shared between the accept
// loop's reader and Send's writer goroutines.
type syncConn struct {
	net.Conn
	mu sync.Mutex
}

func (c *syncConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(p)
}

// MasterTransport is the scheduler-side dispatchz.Transport: a single TCP
// listener accepting one yamux-wrapped connection per spawned worker,
// each carrying exactly one stream of length-prefixed frames.
type MasterTransport struct {
	listenAddr string
	spawner    *Spawner
	scratchDir string

	mu         sync.Mutex
	listener   net.Listener
	nextSlot   int
	streams    map[dispatchz.EndpointID]*syncConn
	sessions   map[dispatchz.EndpointID]*yamux.Session
	handles    map[dispatchz.EndpointID]handle
	registered map[dispatchz.EndpointID]chan struct{}

	recvCh chan inboundFrame
	done   chan struct{}
}

// NewMasterTransport builds a MasterTransport that will listen on
// listenAddr once Start is called. scratchDir is removed wholesale by
// ClearScratch/Halt, mirroring pvm_halt's scratch cleanup.
func NewMasterTransport(listenAddr string, spawner *Spawner, scratchDir string) *MasterTransport {
	return &MasterTransport{
		listenAddr: listenAddr,
		spawner:    spawner,
		scratchDir: scratchDir,
		streams:    make(map[dispatchz.EndpointID]*syncConn),
		sessions:   make(map[dispatchz.EndpointID]*yamux.Session),
		handles:    make(map[dispatchz.EndpointID]handle),
		registered: make(map[dispatchz.EndpointID]chan struct{}),
		recvCh:     make(chan inboundFrame, 64),
		done:       make(chan struct{}),
	}
}

// Start implements dispatchz.Starter: it reads the host config file (only
// to check that it opens and reads; its entries are not used — Spawn does
// the actual per-node work) and binds
// the control listener. A bind failure because the address is already in
// use is reported as ErrDupHost: a prior, uncleanly-shut-down instance is
// still holding the port, the same failure mode as PVM refusing to start
// a second daemon on a host already running one.
func (m *MasterTransport) Start(_ context.Context, hostConfigPath string) error {
	if _, err := readHostConfig(hostConfigPath); err != nil {
		return err
	}
	if err := os.MkdirAll(m.scratchDir, 0o755); err != nil {
		return fmt.Errorf("transport: creating scratch dir: %w", err)
	}

	ln, err := net.Listen("tcp", m.listenAddr)
	if err != nil {
		if isAddrInUse(err) {
			return dispatchz.ErrDupHost
		}
		return fmt.Errorf("transport: listen on %s: %w", m.listenAddr, err)
	}
	m.mu.Lock()
	m.listener = ln
	m.mu.Unlock()

	go m.acceptLoop(ln)
	return nil
}

// ClearScratch closes the listener (if bound) and removes the scratch
// directory, so a retried Start can rebind and re-create it cleanly.
func (m *MasterTransport) ClearScratch(_ context.Context) error {
	m.mu.Lock()
	ln := m.listener
	m.listener = nil
	m.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	return os.RemoveAll(m.scratchDir)
}

func (m *MasterTransport) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go m.handleConn(conn)
	}
}

func (m *MasterTransport) handleConn(conn net.Conn) {
	session, err := yamux.Server(conn, yamux.DefaultConfig())
	if err != nil {
		conn.Close()
		return
	}
	stream, err := session.AcceptStream()
	if err != nil {
		session.Close()
		return
	}

	kind, payload, err := readFrame(stream)
	if err != nil || kind != dispatchz.MsgGreeting {
		session.Close()
		return
	}
	id := dispatchz.EndpointID(payload)

	sc := &syncConn{Conn: stream}
	m.mu.Lock()
	m.streams[id] = sc
	m.sessions[id] = session
	if ready, ok := m.registered[id]; ok {
		close(ready)
	}
	m.mu.Unlock()

	for {
		kind, payload, err := readFrame(stream)
		if err != nil {
			return
		}
		select {
		case m.recvCh <- inboundFrame{src: id, kind: kind, payload: payload}:
		case <-m.done:
			return
		}
	}
}

// SelfID always returns the fixed scheduler endpoint id.
func (m *MasterTransport) SelfID(_ context.Context) (dispatchz.EndpointID, error) {
	return selfEndpointID, nil
}

// ParentID returns "": the master has no parent.
func (m *MasterTransport) ParentID(_ context.Context) (dispatchz.EndpointID, error) {
	return "", nil
}

// Spawn starts a worker on node's host via the Spawner and blocks until
// that worker dials back and registers its stream, or registerTimeout
// elapses.
func (m *MasterTransport) Spawn(ctx context.Context, node dispatchz.Node, program string) (dispatchz.EndpointID, error) {
	m.mu.Lock()
	id := dispatchz.EndpointID(fmt.Sprintf("slot-%d", m.nextSlot))
	m.nextSlot++
	ready := make(chan struct{})
	m.registered[id] = ready
	ln := m.listener
	m.mu.Unlock()
	if ln == nil {
		return "", errors.New("transport: Spawn called before Start")
	}

	args := []string{
		"--master-addr", ln.Addr().String(),
		"--slot-id", string(id),
		"--parent-id", string(selfEndpointID),
	}
	h, err := m.spawner.Spawn(ctx, node.Hostname, program, args)
	if err != nil {
		return "", dispatchz.NewTransportError(dispatchz.ExitWorkerSpawn, err)
	}
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()

	select {
	case <-ready:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(registerTimeout):
		return "", dispatchz.NewTransportError(dispatchz.ExitWorkerSpawn,
			fmt.Errorf("worker %s did not register within %s", id, registerTimeout))
	}
}

// Send writes a frame to dst's registered stream.
func (m *MasterTransport) Send(_ context.Context, dst dispatchz.EndpointID, kind dispatchz.MsgKind, payload []byte) error {
	m.mu.Lock()
	sc, ok := m.streams[dst]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no registered stream for %s", dst)
	}
	return writeFrame(sc, kind, payload)
}

// Recv blocks for the next inbound frame from any worker.
func (m *MasterTransport) Recv(ctx context.Context) (dispatchz.EndpointID, dispatchz.MsgKind, []byte, error) {
	select {
	case f := <-m.recvCh:
		return f.src, f.kind, f.payload, nil
	case <-ctx.Done():
		return "", 0, nil, ctx.Err()
	}
}

// Halt closes every registered stream/session, terminates spawned worker
// processes, closes the listener, and removes the scratch directory.
func (m *MasterTransport) Halt(_ context.Context) error {
	close(m.done)

	m.mu.Lock()
	sessions := m.sessions
	handles := m.handles
	ln := m.listener
	m.listener = nil
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	for _, h := range handles {
		_ = h.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	return os.RemoveAll(m.scratchDir)
}

// hostConfigEntry mirrors one line of the host config file dispatchz
// writes at startup (outputs.WriteHostConfig): "hostname ep=... wd=...".
type hostConfigEntry struct {
	hostname string
}

func readHostConfig(path string) ([]hostConfigEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport: opening host config %s: %w", path, err)
	}
	defer f.Close()

	var entries []hostConfigEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		entries = append(entries, hostConfigEntry{hostname: fields[0]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}

// ParseListenAddr validates a "host:port" listen address, surfacing a
// malformed --master-addr as an InputError rather than a panic deep in
// net.Listen.
func ParseListenAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return dispatchz.NewInputError(dispatchz.ExitArgs, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return dispatchz.NewInputError(dispatchz.ExitArgs, fmt.Errorf("listen port %q is not numeric", portStr))
	}
	return nil
}
