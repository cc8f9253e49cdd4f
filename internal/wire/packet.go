package wire

import (
	"fmt"

	"github.com/duskforge/channelcore/internal/codec"
	"github.com/duskforge/channelcore/internal/crypto"
)

// EncodePacket seals a logical packet (u16 length + u16 command code + body)
// with the session's block cipher, ready to be passed to WriteFrame.
func EncodePacket(bc *crypto.BlockCipher, code uint16, body []byte) []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	w.BeginCommand(code)
	w.WriteBytes(body)
	w.FinalizeLength()
	return bc.Seal(w.Bytes())
}

// DecodePacket opens a frame payload read by ReadFrame and parses it into a
// codec.Packet. Decode failures are reported as BadFrame per spec section 7:
// the caller drops the packet and leaves the session open.
func DecodePacket(bc *crypto.BlockCipher, frame []byte) (codec.Packet, error) {
	plain, err := bc.Open(frame)
	if err != nil {
		return codec.Packet{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	r := codec.NewReader(plain)
	if _, err := r.ReadU16(); err != nil { // logical length; not compared with the decrypted size
		return codec.Packet{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	code, err := r.ReadU16()
	if err != nil {
		return codec.Packet{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	body, err := r.ReadBytes(r.Left())
	if err != nil {
		return codec.Packet{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return codec.NewPacket(code, body), nil
}

// ErrBadFrame marks a protocol decode failure: drop the packet, log a
// warning, keep the session open.
var ErrBadFrame = fmt.Errorf("wire: bad frame")
