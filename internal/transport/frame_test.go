package transport

import (
	"net"
	"testing"
	"time"

	"github.com/zoobzio/dispatchz"
)

func TestWriteReadFrameRoundtrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- writeFrame(client, dispatchz.MsgWork, []byte("hello"))
	}()

	kind, payload, err := readFrame(server)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if kind != dispatchz.MsgWork {
		t.Errorf("expected MsgWork, got %v", kind)
	}
	if string(payload) != "hello" {
		t.Errorf("expected %q, got %q", "hello", payload)
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go writeFrame(client, dispatchz.MsgStop, nil)

	kind, payload, err := readFrame(server)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if kind != dispatchz.MsgStop {
		t.Errorf("expected MsgStop, got %v", kind)
	}
	if len(payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := []byte{0xFF, 0xFF, 0xFF, 0xFF, byte(dispatchz.MsgWork)}
		client.Write(header)
	}()

	client.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := readFrame(server); err == nil {
		t.Error("expected error for oversized frame length")
	}
}
