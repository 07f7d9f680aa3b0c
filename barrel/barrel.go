// Package barrel implements the complex-expression evaluator from
// spec.md §4.6: a synchronized multi-column cursor used to evaluate
// arithmetic expressions that span more than one column. A barrel
// opens every named column once, then exposes seek/read as row-aligned
// operations across all of them, grounded on the same array/file-
// descriptor duality as column.Descriptor.Fetch (spec.md §4.3) — a
// barrel is simply that duality applied to a set of columns instead of
// one.
package barrel

import (
	"io"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/scan"
)

// cursor is one column's half of the barrel: either an in-memory array
// or a file descriptor the barrel reads element-at-a-time as rows are
// sought.
type cursor struct {
	desc     *column.Descriptor
	elemSize int
	decode   func([]byte) float64

	arr []byte // non-nil when array-backed
	fd  *fileman.FD
}

func (c *cursor) valueAt(row int) (float64, error) {
	if c.arr != nil {
		off := row * c.elemSize
		if off+c.elemSize > len(c.arr) {
			return 0, perr.New(perr.ErrQuery, "barrel: row %d out of range for column %s", row, c.desc.Name)
		}
		return c.decode(c.arr[off : off+c.elemSize]), nil
	}
	buf := make([]byte, c.elemSize)
	if _, err := c.fd.File.ReadAt(buf, int64(row)*int64(c.elemSize)); err != nil {
		if err == io.EOF {
			return 0, perr.New(perr.ErrQuery, "barrel: row %d out of range for column %s", row, c.desc.Name)
		}
		return 0, perr.Wrap(perr.ErrTransient, err, "barrel: reading column %s row %d", c.desc.Name, row)
	}
	return c.decode(buf), nil
}

func (c *cursor) close() {
	if c.fd != nil {
		c.fd.Close()
	}
}

// floatDecoder returns the element size and a decode-to-float64
// function for t, or an UnsupportedType error for BLOB/TEXT, which
// spec.md §4.6 explicitly disallows in barrel expressions.
func floatDecoder(t column.Type) (int, func([]byte) float64, error) {
	switch t {
	case column.Byte:
		return 1, func(b []byte) float64 { return float64(scan.DecodeInt8(b)) }, nil
	case column.UByte:
		return 1, func(b []byte) float64 { return float64(scan.DecodeUint8(b)) }, nil
	case column.Short:
		return 2, func(b []byte) float64 { return float64(scan.DecodeInt16(b)) }, nil
	case column.UShort:
		return 2, func(b []byte) float64 { return float64(scan.DecodeUint16(b)) }, nil
	case column.Int:
		return 4, func(b []byte) float64 { return float64(scan.DecodeInt32(b)) }, nil
	case column.UInt, column.Category:
		return 4, func(b []byte) float64 { return float64(scan.DecodeUint32(b)) }, nil
	case column.Long:
		return 8, func(b []byte) float64 { return float64(scan.DecodeInt64(b)) }, nil
	case column.ULong, column.OID:
		return 8, func(b []byte) float64 { return float64(scan.DecodeUint64(b)) }, nil
	case column.Float:
		return 4, func(b []byte) float64 { return float64(scan.DecodeFloat32(b)) }, nil
	case column.Double:
		return 8, func(b []byte) float64 { return scan.DecodeFloat64(b) }, nil
	default:
		return 0, nil, perr.UnsupportedType("", t)
	}
}

// Barrel is a synchronized cursor over the columns named in an
// arithmetic expression.
type Barrel struct {
	row     int
	cursors []*cursor
	names   map[string]int
}

// Open obtains either in-memory arrays or file descriptors for every
// column in cols (spec.md §4.6's open(part)). It fails with
// UnsupportedType if any column is BLOB/TEXT; callers supply
// UnknownColumn themselves when resolving expression variable names
// against the partition's column set, before Open ever sees the list.
func Open(m *fileman.Manager, cols []*column.Descriptor) (*Barrel, error) {
	b := &Barrel{names: make(map[string]int, len(cols))}
	for i, d := range cols {
		elemSize, decode, err := floatDecoder(d.Type)
		if err != nil {
			b.Close()
			return nil, perr.UnsupportedType(d.Name, d.Type)
		}
		c := &cursor{desc: d, elemSize: elemSize, decode: decode}
		h, fd, err := d.Fetch(m, 0)
		if err != nil {
			b.Close()
			return nil, err
		}
		if h != nil {
			c.arr = h.Bytes
		} else {
			c.fd = fd
		}
		b.cursors = append(b.cursors, c)
		b.names[d.Name] = i
	}
	return b, nil
}

// Seek aligns every cursor to rowIndex (spec.md §4.6: "O(#columns)
// seeks"). File-descriptor cursors read lazily at Read time, so Seek
// itself is O(1) per column; the name is kept for fidelity to the
// specified operation.
func (b *Barrel) Seek(rowIndex int) {
	b.row = rowIndex
}

// Read materializes the current row across every column as a float64
// ("double" in spec.md §4.6) and advances to the next row.
func (b *Barrel) Read() ([]float64, error) {
	out := make([]float64, len(b.cursors))
	for i, c := range b.cursors {
		v, err := c.valueAt(b.row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	b.row++
	return out, nil
}

// Close releases every file descriptor the barrel opened.
func (b *Barrel) Close() {
	for _, c := range b.cursors {
		c.close()
	}
}
