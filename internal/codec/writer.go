package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

// writerPool reuses Writer buffers across packets to cut allocations on the
// hot send path, mirroring the pooled-writer idiom used for every outbound
// packet in the teacher's gameserver.
var writerPool = sync.Pool{
	New: func() any { return &Writer{buf: new(bytes.Buffer)} },
}

// Writer encodes little-endian primitives and length-prefixed strings into a
// growable buffer with its own independent cursor semantics (append-only).
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter returns a pooled Writer ready for use. Call Put when done.
func NewWriter() *Writer {
	w := writerPool.Get().(*Writer)
	w.buf.Reset()
	return w
}

// Put returns w to the pool. w must not be used afterward.
func Put(w *Writer) {
	writerPool.Put(w)
}

// Bytes returns the accumulated buffer contents.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// WriteU8 appends one byte.
func (w *Writer) WriteU8(v uint8) { w.buf.WriteByte(v) }

// WriteS8 appends one signed byte.
func (w *Writer) WriteS8(v int8) { w.buf.WriteByte(byte(v)) }

// WriteU16 appends a little-endian u16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteS16 appends a little-endian s16.
func (w *Writer) WriteS16(v int16) { w.WriteU16(uint16(v)) }

// WriteU32 appends a little-endian u32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteS32 appends a little-endian s32.
func (w *Writer) WriteS32(v int32) { w.WriteU32(uint32(v)) }

// WriteU64 appends a little-endian u64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteS64 appends a little-endian s64.
func (w *Writer) WriteS64(v int64) { w.WriteU64(uint64(v)) }

// WriteFloat32 appends a little-endian IEEE-754 float32.
func (w *Writer) WriteFloat32(v float32) { w.WriteU32(math.Float32bits(v)) }

// WriteBytes appends a raw byte slice as-is.
func (w *Writer) WriteBytes(b []byte) { w.buf.Write(b) }

// WriteString appends a u16 byte-count prefix followed by the string
// transcoded into enc, optionally null-terminated (the null byte is counted
// in the prefix).
func (w *Writer) WriteString(s string, enc StringEncoding, nullTerminated bool) error {
	raw, err := enc.encodeBytes(s)
	if err != nil {
		return err
	}
	n := len(raw)
	if nullTerminated {
		n++
	}
	w.WriteU16(uint16(n))
	w.buf.Write(raw)
	if nullTerminated {
		w.buf.WriteByte(0)
	}
	return nil
}

// BeginCommand reserves the 2-byte length placeholder at offset 0 and writes
// the command code at offset 2, per the wire format's "u16 length placeholder
// then u16 command code" convention. Call FinalizeLength once the body is
// written.
func (w *Writer) BeginCommand(code uint16) {
	w.WriteU16(0)
	w.WriteU16(code)
}

// FinalizeLength patches the length placeholder reserved by BeginCommand
// with the total number of bytes written so far.
func (w *Writer) FinalizeLength() {
	b := w.buf.Bytes()
	binary.LittleEndian.PutUint16(b[0:2], uint16(len(b)))
}
