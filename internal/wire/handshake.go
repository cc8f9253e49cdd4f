package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/duskforge/channelcore/internal/crypto"
)

// HandshakeCode identifies a pre-encryption control frame. Exact values are
// implementation-chosen but fixed for the life of a build.
type HandshakeCode uint16

const (
	ClientHello   HandshakeCode = 0x0001
	ServerHello   HandshakeCode = 0x0002
	KeyExchange   HandshakeCode = 0x0003
	Reject        HandshakeCode = 0x0004
	EncryptedStart HandshakeCode = 0x0005
)

// ProtocolVersion is the version the server requires in a client-hello.
const ProtocolVersion uint16 = 1666

// State is a connection's position in the handshake/encryption lifecycle.
type State int

const (
	PreHandshake State = iota
	KeyExchangeState
	Encrypted
	Closed
)

func (s State) String() string {
	switch s {
	case PreHandshake:
		return "PRE_HANDSHAKE"
	case KeyExchangeState:
		return "KEY_EXCHANGE"
	case Encrypted:
		return "ENCRYPTED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// writeHandshakeFrame wraps a handshake code and body into one outer frame:
// u16 code + body, framed by WriteFrame.
func writeHandshakeFrame(w io.Writer, code HandshakeCode, body []byte) error {
	buf := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(buf[:2], uint16(code))
	copy(buf[2:], body)
	return WriteFrame(w, buf)
}

func readHandshakeFrame(r io.Reader) (HandshakeCode, []byte, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 2 {
		return 0, nil, fmt.Errorf("wire: handshake frame too short")
	}
	code := HandshakeCode(binary.BigEndian.Uint16(payload[:2]))
	return code, payload[2:], nil
}

// AcceptHandshake runs the server side of the PRE_HANDSHAKE→KEY_EXCHANGE→
// ENCRYPTED sequence described in spec section 4.E. On success it returns a
// BlockCipher ready to seal/open ENCRYPTED-state frames. On a version
// mismatch it sends Reject, returns ErrVersionMismatch, and the caller must
// close the connection.
func AcceptHandshake(rw io.ReadWriter) (*crypto.BlockCipher, error) {
	code, body, err := readHandshakeFrame(rw)
	if err != nil {
		return nil, fmt.Errorf("wire: reading client-hello: %w", err)
	}
	if code != ClientHello || len(body) < 2 {
		return nil, fmt.Errorf("wire: expected client-hello, got code %d", code)
	}
	clientVersion := binary.BigEndian.Uint16(body[:2])
	if clientVersion != ProtocolVersion {
		_ = writeHandshakeFrame(rw, Reject, body[:2])
		return nil, ErrVersionMismatch{Got: clientVersion, Want: ProtocolVersion}
	}

	server, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wire: generating server handshake key: %w", err)
	}
	if err := writeHandshakeFrame(rw, ServerHello, server.Public()); err != nil {
		return nil, fmt.Errorf("wire: writing server-hello: %w", err)
	}

	code, body, err = readHandshakeFrame(rw)
	if err != nil {
		return nil, fmt.Errorf("wire: reading key-exchange: %w", err)
	}
	if code != KeyExchange {
		return nil, fmt.Errorf("wire: expected key-exchange, got code %d", code)
	}
	keys, err := server.DeriveSessionKeys(body)
	if err != nil {
		return nil, fmt.Errorf("wire: deriving session keys: %w", err)
	}
	blockCipher, err := crypto.NewBlockCipher(keys)
	if err != nil {
		return nil, fmt.Errorf("wire: building session cipher: %w", err)
	}

	if err := writeHandshakeFrame(rw, EncryptedStart, nil); err != nil {
		return nil, fmt.Errorf("wire: writing encrypted-start: %w", err)
	}
	return blockCipher, nil
}

// ErrVersionMismatch is returned when a client-hello's protocol version does
// not match this build's ProtocolVersion.
type ErrVersionMismatch struct {
	Got, Want uint16
}

func (e ErrVersionMismatch) Error() string {
	return fmt.Sprintf("wire: protocol version mismatch: got %d, want %d", e.Got, e.Want)
}
