// Package wire implements the outer TCP framing, the Diffie-Hellman-style
// handshake, and the encrypted logical-packet format layered on top of it.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload to guard against a runaway
// length prefix exhausting memory before the handshake even authenticates.
const MaxFrameSize = 64 * 1024

// ReadFrame reads one `u32 big-endian length + payload` frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame length %d exceeds maximum %d", n, MaxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: reading frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload as a single `u32 big-endian length + payload`
// frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing frame payload: %w", err)
	}
	return nil
}

// FrameBytes returns payload wrapped in its `u32` length header without
// writing anywhere, for callers that queue frames onto a channel instead of
// writing them inline (internal/session's outgoing queue).
func FrameBytes(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}
