package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	defer Put(w)

	w.WriteU8(0xAB)
	w.WriteS8(-5)
	w.WriteU16(0xCAFE)
	w.WriteS16(-1000)
	w.WriteU32(0xDEADBEEF)
	w.WriteS32(-123456)
	w.WriteU64(0x1122334455667788)
	w.WriteS64(-9999999999)
	w.WriteFloat32(3.25)
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	s8, err := r.ReadS8()
	require.NoError(t, err)
	assert.Equal(t, int8(-5), s8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xCAFE), u16)

	s16, err := r.ReadS16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1000), s16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	s32, err := r.ReadS32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123456), s32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), u64)

	s64, err := r.ReadS64()
	require.NoError(t, err)
	assert.Equal(t, int64(-9999999999), s64)

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.25), f32)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Equal(t, 0, r.Left())
}

func TestStringRoundTripEncodings(t *testing.T) {
	cases := []struct {
		name string
		enc  StringEncoding
		null bool
	}{
		{"utf8-plain", UTF8, false},
		{"utf8-null", UTF8, true},
		{"utf16le-null", UTF16LE, true},
		{"cp932-plain", CP932, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := NewWriter()
			defer Put(w)
			require.NoError(t, w.WriteString("user_a", c.enc, c.null))

			r := NewReader(w.Bytes())
			got, err := r.ReadString(c.enc, c.null)
			require.NoError(t, err)
			assert.Equal(t, "user_a", got)
			assert.Equal(t, 0, r.Left())
		})
	}
}

func TestShortBufferIsReported(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadU32()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0x05, 0x00, 0x99})
	v, err := r.PeekU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(5), v)
	assert.Equal(t, 0, r.Position())

	require.NoError(t, r.Skip(2))
	assert.Equal(t, 1, r.Left())
}

func TestCommandFraming(t *testing.T) {
	w := NewWriter()
	defer Put(w)
	w.BeginCommand(0x1234)
	w.WriteU32(42)
	w.FinalizeLength()

	b := w.Bytes()
	r := NewReader(b)
	length, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(len(b)), length)

	code, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), code)

	val, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), val)
}

func TestPacketSnapshotIsIndependentOfSourceBuffer(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	p := NewPacket(0x10, src)
	src[0] = 0xFF

	r := p.Reader()
	v, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)
}
