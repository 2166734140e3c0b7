package buf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntBoundary(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteVarInt(300)
	require.Equal(t, []byte{0xAC, 0x02}, b.Bytes())

	out, err := b.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(300), out)
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 127, 128, 255, 2097151, math.MaxInt32, math.MinInt32, -300}
	for _, v := range values {
		b := NewBuffer(nil)
		b.WriteVarInt(v)
		require.LessOrEqual(t, len(b.Bytes()), 5)
		require.Equal(t, VarIntLen(v), len(b.Bytes()))

		got, err := b.ReadVarInt()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarIntOverlong(t *testing.T) {
	b := NewBuffer([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})
	_, err := b.ReadVarInt()
	require.ErrorIs(t, err, ErrOverlong)
}

func TestVarLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		b := NewBuffer(nil)
		b.WriteVarLong(v)
		require.LessOrEqual(t, len(b.Bytes()), 10)

		got, err := b.ReadVarLong()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	values := []float64{0, 1.5, -1.5, math.Inf(1), math.Inf(-1), math.MaxFloat64}
	for _, v := range values {
		b := NewBuffer(nil)
		b.WriteF64(v)
		got, err := b.ReadF64()
		require.NoError(t, err)
		require.Equal(t, math.Float64bits(v), math.Float64bits(got))
	}
}

func TestStringRoundTrip(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteString("localhost")
	got, err := b.ReadString()
	require.NoError(t, err)
	require.Equal(t, "localhost", got)
}

func TestStringBadLength(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteVarInt(32768)
	_, err := b.ReadString()
	require.ErrorIs(t, err, ErrBadLength)
}

func TestUnderflow(t *testing.T) {
	b := NewBuffer([]byte{0x01})
	_, err := b.ReadU32()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestPositionRoundTrip(t *testing.T) {
	cases := [][3]int32{{0, 0, 0}, {1, 2, 3}, {-1, -1, -1}, {33554431, 2047, -33554432}}
	for _, c := range cases {
		packed := PackPosition(c[0], c[1], c[2])
		x, y, z := UnpackPosition(packed)
		require.Equal(t, c[0], x)
		require.Equal(t, c[1], y)
		require.Equal(t, c[2], z)
	}
}

func TestReadCursorExactAfterFrame(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteString("hello")
	b.WriteVarInt(42)
	frame := b.Bytes()

	r := NewBuffer(frame)
	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	v, err := r.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
	require.Equal(t, 0, r.Len())
}
