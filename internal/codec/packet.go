package codec

// Packet is an immutable, read-only snapshot of a decoded logical packet: a
// command code plus its body bytes, ready to be handed to a dispatcher
// without exposing the mutable Reader/Writer cursors that produced it.
type Packet struct {
	Code uint16
	Body []byte
}

// NewPacket copies body so the returned Packet is safe to retain after the
// source buffer is reused.
func NewPacket(code uint16, body []byte) Packet {
	cp := make([]byte, len(body))
	copy(cp, body)
	return Packet{Code: code, Body: cp}
}

// Reader returns a fresh Reader positioned at the start of the packet body.
func (p Packet) Reader() *Reader {
	return NewReader(p.Body)
}
