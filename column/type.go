// Package column implements column descriptors and the two value
// retrieval paths described in spec.md §3/§4.3.
package column

import "fmt"

// Type enumerates the column value types from spec.md §3.
type Type int

const (
	Byte Type = iota
	UByte
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	Category
	Text
	Blob
	OID
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "BYTE"
	case UByte:
		return "UBYTE"
	case Short:
		return "SHORT"
	case UShort:
		return "USHORT"
	case Int:
		return "INT"
	case UInt:
		return "UINT"
	case Long:
		return "LONG"
	case ULong:
		return "ULONG"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Category:
		return "CATEGORY"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	case OID:
		return "OID"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses a header type keyword, case-sensitively matching the
// canonical names above (the metadata store upper-cases before calling
// this).
func ParseType(s string) (Type, bool) {
	for t := Byte; t <= OID; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// ElementSize returns the fixed on-disk width in bytes of one value, or
// 0 for the variable-length types (Text, Blob) which instead use a
// side ".sp" file of 64-bit start offsets (spec.md §3/§6).
func (t Type) ElementSize() int {
	switch t {
	case Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float, Category:
		return 4
	case Long, ULong, Double, OID:
		return 8
	default:
		return 0 // Text, Blob
	}
}

// IsVariableLength reports whether the type stores values in a side
// ".sp" offsets file rather than a fixed-width value file.
func (t Type) IsVariableLength() bool {
	return t == Text || t == Blob
}

// IsInteger reports whether the type is one of the signed/unsigned
// fixed-width integer kinds (excluding Category, which is integer-coded
// but semantically a dictionary string).
func (t Type) IsInteger() bool {
	switch t {
	case Byte, UByte, Short, UShort, Int, UInt, Long, ULong:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the type is Float or Double.
func (t Type) IsFloat() bool {
	return t == Float || t == Double
}

// IsNumeric reports whether the type supports range/equality arithmetic
// predicates (spec.md §4.4).
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// Signed reports whether an integer type is signed.
func (t Type) Signed() bool {
	switch t {
	case Byte, Short, Int, Long:
		return true
	default:
		return false
	}
}

// IntegerBounds returns the representable [min, max] range of an
// integer type as float64, used by the predicate dispatcher's
// numeric-bound coercion (spec.md §4.4).
func (t Type) IntegerBounds() (min, max float64) {
	switch t {
	case Byte:
		return -128, 127
	case UByte:
		return 0, 255
	case Short:
		return -32768, 32767
	case UShort:
		return 0, 65535
	case Int:
		return -2147483648, 2147483647
	case UInt:
		return 0, 4294967295
	case Long:
		return -9223372036854775808, 9223372036854775807
	case ULong:
		return 0, 18446744073709551615
	default:
		return 0, 0
	}
}
