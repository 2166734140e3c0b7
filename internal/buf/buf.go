// Package buf implements the framed byte buffer used to encode and decode
// every value on the wire: big-endian fixed-width integers, IEEE-754 floats,
// length-prefixed strings, and the VarInt/VarLong 7-bit group encoding.
package buf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by the codec. Callers that need to distinguish decode
// failures from a protocol-level "wrong packet for this phase" failure
// should match against these with errors.Is.
var (
	ErrUnderflow  = errors.New("buf: underflow")
	ErrOverlong   = errors.New("buf: overlong varint")
	ErrBadLength  = errors.New("buf: bad string length")
	MaxStringLen  = 32767
)

// Buffer is a growable byte sequence with independent read and write
// cursors. Zero value is ready to use.
type Buffer struct {
	data []byte
	r    int // read cursor
}

// NewBuffer wraps existing bytes for reading (write cursor starts at the end).
func NewBuffer(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.r:]
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.r
}

// Reset clears the buffer, keeping its backing array.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.r = 0
}

func (b *Buffer) grow(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}
	newCap := cap(b.data)*2 + n
	if newCap < 64 {
		newCap = 64
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// WriteBytes appends raw bytes.
func (b *Buffer) WriteBytes(p []byte) {
	b.grow(len(p))
	b.data = append(b.data, p...)
}

func (b *Buffer) readN(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, ErrUnderflow
	}
	out := b.data[b.r : b.r+n]
	b.r += n
	return out, nil
}

// ReadBytes reads exactly n raw bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	return b.readN(n)
}

// WriteU8/WriteU16/WriteU32/WriteU64 write big-endian unsigned integers.
func (b *Buffer) WriteU8(v uint8)   { b.WriteBytes([]byte{v}) }
func (b *Buffer) WriteU16(v uint16) { var p [2]byte; binary.BigEndian.PutUint16(p[:], v); b.WriteBytes(p[:]) }
func (b *Buffer) WriteU32(v uint32) { var p [4]byte; binary.BigEndian.PutUint32(p[:], v); b.WriteBytes(p[:]) }
func (b *Buffer) WriteU64(v uint64) { var p [8]byte; binary.BigEndian.PutUint64(p[:], v); b.WriteBytes(p[:]) }

func (b *Buffer) ReadU8() (uint8, error) {
	p, err := b.readN(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) ReadU16() (uint16, error) {
	p, err := b.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (b *Buffer) ReadU32() (uint32, error) {
	p, err := b.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (b *Buffer) ReadU64() (uint64, error) {
	p, err := b.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

// WriteI8..WriteI64 write big-endian signed integers (two's complement).
func (b *Buffer) WriteI8(v int8)   { b.WriteU8(uint8(v)) }
func (b *Buffer) WriteI16(v int16) { b.WriteU16(uint16(v)) }
func (b *Buffer) WriteI32(v int32) { b.WriteU32(uint32(v)) }
func (b *Buffer) WriteI64(v int64) { b.WriteU64(uint64(v)) }

func (b *Buffer) ReadI8() (int8, error)   { v, err := b.ReadU8(); return int8(v), err }
func (b *Buffer) ReadI16() (int16, error) { v, err := b.ReadU16(); return int16(v), err }
func (b *Buffer) ReadI32() (int32, error) { v, err := b.ReadU32(); return int32(v), err }
func (b *Buffer) ReadI64() (int64, error) { v, err := b.ReadU64(); return int64(v), err }

// WriteBool writes a single boolean byte (0x01/0x00).
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteU8(1)
	} else {
		b.WriteU8(0)
	}
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	return v != 0, err
}

// WriteF32/WriteF64 write IEEE-754 bit patterns, big-endian, bit-exact.
func (b *Buffer) WriteF32(v float32) { b.WriteU32(math.Float32bits(v)) }
func (b *Buffer) WriteF64(v float64) { b.WriteU64(math.Float64bits(v)) }

func (b *Buffer) ReadF32() (float32, error) {
	v, err := b.ReadU32()
	return math.Float32frombits(v), err
}

func (b *Buffer) ReadF64() (float64, error) {
	v, err := b.ReadU64()
	return math.Float64frombits(v), err
}

// WriteVarInt encodes a signed 32-bit value as 1-5 bytes, 7 payload bits per
// byte, least-significant group first, high bit as continuation flag.
func (b *Buffer) WriteVarInt(v int32) {
	num := uint32(v)
	for {
		c := byte(num & 0x7F)
		num >>= 7
		if num != 0 {
			c |= 0x80
		}
		b.WriteU8(c)
		if num == 0 {
			break
		}
	}
}

// ReadVarInt decodes a VarInt, failing with ErrOverlong if the 5th byte
// still carries a continuation bit.
func (b *Buffer) ReadVarInt() (int32, error) {
	var result uint32
	for i := 0; ; i++ {
		if i == 5 {
			return 0, ErrOverlong
		}
		c, err := b.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= uint32(c&0x7F) << uint(7*i)
		if c&0x80 == 0 {
			break
		}
	}
	return int32(result), nil
}

// VarIntLen returns the number of bytes WriteVarInt would emit for v.
func VarIntLen(v int32) int {
	num := uint32(v)
	n := 1
	for num >= 0x80 {
		num >>= 7
		n++
	}
	return n
}

// WriteVarLong is the 64-bit extension of WriteVarInt (1-10 bytes).
func (b *Buffer) WriteVarLong(v int64) {
	num := uint64(v)
	for {
		c := byte(num & 0x7F)
		num >>= 7
		if num != 0 {
			c |= 0x80
		}
		b.WriteU8(c)
		if num == 0 {
			break
		}
	}
}

// ReadVarLong decodes a VarLong, failing with ErrOverlong past the 10th byte.
func (b *Buffer) ReadVarLong() (int64, error) {
	var result uint64
	for i := 0; ; i++ {
		if i == 10 {
			return 0, ErrOverlong
		}
		c, err := b.ReadU8()
		if err != nil {
			return 0, err
		}
		result |= uint64(c&0x7F) << uint(7*i)
		if c&0x80 == 0 {
			break
		}
	}
	return int64(result), nil
}

// WriteString writes a VarInt length followed by UTF-8 bytes.
func (b *Buffer) WriteString(s string) {
	b.WriteVarInt(int32(len(s)))
	b.WriteBytes([]byte(s))
}

// ReadString decodes a length-prefixed string, rejecting lengths outside
// [0, MaxStringLen].
func (b *Buffer) ReadString() (string, error) {
	l, err := b.ReadVarInt()
	if err != nil {
		return "", err
	}
	if l < 0 || int(l) > MaxStringLen {
		return "", fmt.Errorf("%w: %d", ErrBadLength, l)
	}
	p, err := b.readN(int(l))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// WriteUUID writes a raw 16-byte UUID.
func (b *Buffer) WriteUUID(u [16]byte) {
	b.WriteBytes(u[:])
}

// ReadUUID reads a raw 16-byte UUID.
func (b *Buffer) ReadUUID() ([16]byte, error) {
	var out [16]byte
	p, err := b.readN(16)
	if err != nil {
		return out, err
	}
	copy(out[:], p)
	return out, nil
}

// PackPosition packs a block position into the protocol's 64-bit form.
func PackPosition(x, y, z int32) uint64 {
	return (uint64(x&0x3FFFFFF) << 38) | (uint64(z&0x3FFFFFF) << 12) | uint64(y&0xFFF)
}

// UnpackPosition reverses PackPosition, sign-extending each field.
func UnpackPosition(v uint64) (x, y, z int32) {
	x = signExtend(int32(v>>38)&0x3FFFFFF, 26)
	y = signExtend(int32(v)&0xFFF, 12)
	z = signExtend(int32(v>>12)&0x3FFFFFF, 26)
	return
}

func signExtend(v int32, bits uint) int32 {
	shift := 32 - bits
	return (v << shift) >> shift
}
