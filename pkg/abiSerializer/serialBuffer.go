// Package abiSerializer implements the binary codec used on the wire by the
// target chain: a growable byte cursor, the built-in type registry, ABI-driven
// composite types, and binary abi_def decoding. The orchestration layer treats
// action payloads as opaque values behind this boundary.
package abiSerializer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrReadPastEnd is returned when a read primitive runs off the end of the buffer
	ErrReadPastEnd = errors.New("read past end of buffer")
	// ErrVaruintTooBig is returned when a varuint32 does not terminate within 32 bits
	ErrVaruintTooBig = errors.New("varuint32 is too big")
)

// SerialBuffer is a growable binary cursor with push and read primitives.
// Pushes append to the end; reads consume from an internal read position.
// All multi-byte integers are little-endian on the wire.
type SerialBuffer struct {
	data    []byte
	readPos int
}

// NewSerialBuffer creates a SerialBuffer. The optional initial contents are
// used as the read source; a nil argument starts an empty write buffer.
func NewSerialBuffer(data []byte) *SerialBuffer {
	return &SerialBuffer{data: data}
}

// Bytes returns the final byte contents of the buffer.
func (b *SerialBuffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes in the buffer.
func (b *SerialBuffer) Len() int {
	return len(b.data)
}

// HaveReadData reports whether unread bytes remain. Trailing abi_def fields
// are only decoded when this is true.
func (b *SerialBuffer) HaveReadData() bool {
	return b.readPos < len(b.data)
}

// RestartRead resets the read position to the start of the buffer.
func (b *SerialBuffer) RestartRead() {
	b.readPos = 0
}

// Push appends raw bytes.
func (b *SerialBuffer) Push(v ...byte) {
	b.data = append(b.data, v...)
}

// GetBytesRaw consumes exactly n bytes.
func (b *SerialBuffer) GetBytesRaw(n int) ([]byte, error) {
	if n < 0 || b.readPos+n > len(b.data) {
		return nil, ErrReadPastEnd
	}
	out := b.data[b.readPos : b.readPos+n]
	b.readPos += n
	return out, nil
}

// GetByte consumes a single byte.
func (b *SerialBuffer) GetByte() (byte, error) {
	v, err := b.GetBytesRaw(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// PushUint16 appends a little-endian uint16.
func (b *SerialBuffer) PushUint16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

// GetUint16 consumes a little-endian uint16.
func (b *SerialBuffer) GetUint16() (uint16, error) {
	v, err := b.GetBytesRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

// PushUint32 appends a little-endian uint32.
func (b *SerialBuffer) PushUint32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

// GetUint32 consumes a little-endian uint32.
func (b *SerialBuffer) GetUint32() (uint32, error) {
	v, err := b.GetBytesRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

// PushUint64 appends a little-endian uint64.
func (b *SerialBuffer) PushUint64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

// GetUint64 consumes a little-endian uint64.
func (b *SerialBuffer) GetUint64() (uint64, error) {
	v, err := b.GetBytesRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

// PushVaruint32 appends a LEB128 variable-length unsigned integer.
func (b *SerialBuffer) PushVaruint32(v uint32) {
	for {
		if v>>7 != 0 {
			b.Push(byte(0x80 | (v & 0x7f)))
			v >>= 7
		} else {
			b.Push(byte(v))
			break
		}
	}
}

// GetVaruint32 consumes a LEB128 variable-length unsigned integer.
func (b *SerialBuffer) GetVaruint32() (uint32, error) {
	var v uint64
	var bit uint
	for {
		c, err := b.GetByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << bit
		bit += 7
		if c&0x80 == 0 {
			break
		}
		if bit >= 35 {
			return 0, ErrVaruintTooBig
		}
	}
	if v > math.MaxUint32 {
		return 0, ErrVaruintTooBig
	}
	return uint32(v), nil
}

// PushVarint32 appends a zig-zag encoded signed variable-length integer.
func (b *SerialBuffer) PushVarint32(v int32) {
	b.PushVaruint32(uint32((v << 1) ^ (v >> 31)))
}

// GetVarint32 consumes a zig-zag encoded signed variable-length integer.
func (b *SerialBuffer) GetVarint32() (int32, error) {
	v, err := b.GetVaruint32()
	if err != nil {
		return 0, err
	}
	if v&1 != 0 {
		return int32(^(v >> 1)), nil
	}
	return int32(v >> 1), nil
}

// PushFloat32 appends a little-endian IEEE 754 float32.
func (b *SerialBuffer) PushFloat32(v float32) {
	b.PushUint32(math.Float32bits(v))
}

// GetFloat32 consumes a little-endian IEEE 754 float32.
func (b *SerialBuffer) GetFloat32() (float32, error) {
	v, err := b.GetUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// PushFloat64 appends a little-endian IEEE 754 float64.
func (b *SerialBuffer) PushFloat64(v float64) {
	b.PushUint64(math.Float64bits(v))
}

// GetFloat64 consumes a little-endian IEEE 754 float64.
func (b *SerialBuffer) GetFloat64() (float64, error) {
	v, err := b.GetUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// PushName appends a 64-bit base-32 packed account name.
func (b *SerialBuffer) PushName(s string) error {
	v, err := StringToName(s)
	if err != nil {
		return err
	}
	b.PushUint64(v)
	return nil
}

// GetName consumes a 64-bit base-32 packed account name.
func (b *SerialBuffer) GetName() (string, error) {
	v, err := b.GetUint64()
	if err != nil {
		return "", err
	}
	return NameToString(v), nil
}

// PushBytes appends a varuint32 length prefix followed by the raw bytes.
func (b *SerialBuffer) PushBytes(v []byte) {
	b.PushVaruint32(uint32(len(v)))
	b.Push(v...)
}

// GetBytes consumes a varuint32 length prefix followed by that many bytes.
func (b *SerialBuffer) GetBytes() ([]byte, error) {
	n, err := b.GetVaruint32()
	if err != nil {
		return nil, err
	}
	return b.GetBytesRaw(int(n))
}

// PushString appends a length-prefixed UTF-8 string.
func (b *SerialBuffer) PushString(v string) {
	b.PushBytes([]byte(v))
}

// GetString consumes a length-prefixed UTF-8 string.
func (b *SerialBuffer) GetString() (string, error) {
	v, err := b.GetBytes()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

var nameRegex = regexp.MustCompile(`^[.1-5a-z]{0,12}[.1-5a-j]?$`)

const nameCharmap = ".12345abcdefghijklmnopqrstuvwxyz"

func charToSymbol(c byte) uint64 {
	if c >= 'a' && c <= 'z' {
		return uint64(c-'a') + 6
	}
	if c >= '1' && c <= '5' {
		return uint64(c-'1') + 1
	}
	return 0
}

// StringToName packs an account name into its 64-bit base-32 representation.
// Names are at most 13 characters from the alphabet ".12345a-z"; the 13th
// character, when present, carries only 4 bits.
func StringToName(s string) (uint64, error) {
	if !nameRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid name %q", s)
	}
	var v uint64
	for i := 0; i <= 12; i++ {
		var c uint64
		if i < len(s) {
			c = charToSymbol(s[i])
		}
		if i < 12 {
			c &= 0x1f
			c <<= 64 - 5*uint(i+1)
		} else {
			c &= 0x0f
		}
		v |= c
	}
	return v, nil
}

// NameToString unpacks a 64-bit base-32 name, trimming trailing dots.
func NameToString(v uint64) string {
	out := make([]byte, 13)
	tmp := v
	for i := 0; i <= 12; i++ {
		var c byte
		if i == 0 {
			c = nameCharmap[tmp&0x0f]
			tmp >>= 4
		} else {
			c = nameCharmap[tmp&0x1f]
			tmp >>= 5
		}
		out[12-i] = c
	}
	return strings.TrimRight(string(out), ".")
}

const blockTimestampEpochMs = 946684800000 // 2000-01-01T00:00:00.000 UTC

var timeFormats = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
}

// ParseTime parses the chain's textual timestamp form. Node responses omit
// the zone suffix; a trailing Z is tolerated.
func ParseTime(s string) (time.Time, error) {
	for _, f := range timeFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time value %q", s)
}

// FormatTime renders a timestamp in the chain's canonical textual form,
// millisecond precision, no zone suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000")
}

// PushTimePoint appends a time_point: microseconds since epoch, 64-bit.
func (b *SerialBuffer) PushTimePoint(t time.Time) {
	b.PushUint64(uint64(t.UnixMicro()))
}

// GetTimePoint consumes a time_point.
func (b *SerialBuffer) GetTimePoint() (time.Time, error) {
	v, err := b.GetUint64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(int64(v)).UTC(), nil
}

// PushTimePointSec appends a time_point_sec: seconds since epoch, 32-bit.
func (b *SerialBuffer) PushTimePointSec(t time.Time) {
	b.PushUint32(uint32(t.Unix()))
}

// GetTimePointSec consumes a time_point_sec.
func (b *SerialBuffer) GetTimePointSec() (time.Time, error) {
	v, err := b.GetUint32()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(v), 0).UTC(), nil
}

// PushBlockTimestamp appends a block_timestamp_type: half-second slots since
// the 2000-01-01 block epoch, 32-bit.
func (b *SerialBuffer) PushBlockTimestamp(t time.Time) {
	slot := (t.UnixMilli() - blockTimestampEpochMs) / 500
	b.PushUint32(uint32(slot))
}

// GetBlockTimestamp consumes a block_timestamp_type.
func (b *SerialBuffer) GetBlockTimestamp() (time.Time, error) {
	v, err := b.GetUint32()
	if err != nil {
		return time.Time{}, err
	}
	ms := int64(v)*500 + blockTimestampEpochMs
	return time.UnixMilli(ms).UTC(), nil
}
