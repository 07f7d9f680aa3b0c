package scan

import (
	"encoding/binary"
	"math"
)

// The decode helpers below interpret raw column bytes in the host's
// native byte order, matching spec.md §6 ("fixed-width value files are
// stored in host byte order; cross-host portability is not
// guaranteed").

func DecodeInt8(b []byte) int8    { return int8(b[0]) }
func DecodeUint8(b []byte) uint8  { return b[0] }
func DecodeInt16(b []byte) int16  { return int16(binary.NativeEndian.Uint16(b)) }
func DecodeUint16(b []byte) uint16 { return binary.NativeEndian.Uint16(b) }
func DecodeInt32(b []byte) int32  { return int32(binary.NativeEndian.Uint32(b)) }
func DecodeUint32(b []byte) uint32 { return binary.NativeEndian.Uint32(b) }
func DecodeInt64(b []byte) int64  { return int64(binary.NativeEndian.Uint64(b)) }
func DecodeUint64(b []byte) uint64 { return binary.NativeEndian.Uint64(b) }
func DecodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(b))
}
func DecodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(b))
}

func EncodeInt8(v int8) []byte   { return []byte{byte(v)} }
func EncodeUint8(v uint8) []byte { return []byte{v} }
func EncodeInt16(v int16) []byte {
	b := make([]byte, 2)
	binary.NativeEndian.PutUint16(b, uint16(v))
	return b
}
func EncodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.NativeEndian.PutUint16(b, v)
	return b
}
func EncodeInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(v))
	return b
}
func EncodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}
func EncodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, uint64(v))
	return b
}
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return b
}
func EncodeFloat32(v float32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, math.Float32bits(v))
	return b
}
func EncodeFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeArray decodes a flat byte slice into a []T using decode per
// element; used by the in-memory (non-file-backed) scan entry points
// when a column's Array fetch returned raw bytes instead of a typed
// slice.
func DecodeArray[T Numeric](raw []byte, elemSize int, decode Decoder[T]) []T {
	n := len(raw) / elemSize
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = decode(raw[i*elemSize : (i+1)*elemSize])
	}
	return out
}
