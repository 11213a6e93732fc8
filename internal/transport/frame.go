package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zoobzio/dispatchz"
)

// maxFrameBytes bounds a single wire frame at a fixed 64 MiB, independent
// of any CLI setting — a frame larger than this is treated as a protocol
// error rather than an attempt to stream unbounded data.
const maxFrameBytes = 64 << 20

// writeFrame writes one length-prefixed frame: a 4-byte big-endian
// length, a 1-byte MsgKind, then the payload.
func writeFrame(w io.Writer, kind dispatchz.MsgKind, payload []byte) error {
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	header[4] = byte(kind)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("transport: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one frame written by writeFrame.
func readFrame(r io.Reader) (dispatchz.MsgKind, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[:4])
	if size > maxFrameBytes {
		return 0, nil, fmt.Errorf("transport: frame of %d bytes exceeds %d byte limit", size, maxFrameBytes)
	}
	kind := dispatchz.MsgKind(header[4])
	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("transport: read frame payload: %w", err)
		}
	}
	return kind, payload, nil
}
