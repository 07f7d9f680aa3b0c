package partition

import (
	"encoding/json"
	"io"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/scan"
)

// Dump walks every active row and writes one JSON object per line to w,
// keyed by column name (spec.md §10's supplemented diagnostic feature,
// grounded on the teacher's storage.Dump). This is diagnostic tooling,
// not a query path: it holds the read lock for its entire duration and
// is expected to run off the hot path.
func (p *Partition) Dump(w io.Writer) error {
	p.rw.RLock()
	defer p.rw.RUnlock()

	columns := make(map[string][]any, len(p.Columns))
	for _, c := range p.Columns {
		vals, err := p.columnValues(c)
		if err != nil {
			return err
		}
		columns[c.Name] = vals
	}

	enc := json.NewEncoder(w)
	row := make(map[string]any, len(p.Columns))
	for i := 0; i < p.NEvents; i++ {
		if !p.Mask.Test(i) {
			continue
		}
		for _, c := range p.Columns {
			row[c.Name] = columns[c.Name][i]
		}
		if err := enc.Encode(row); err != nil {
			return perr.Wrap(perr.ErrIO, err, "partition %s: writing dump row %d", p.Name, i)
		}
	}
	return nil
}

// columnValues decodes c's full value array into one any per row, used
// only by Dump; the query path never materializes a whole column this
// way.
func (p *Partition) columnValues(c *column.Descriptor) ([]any, error) {
	if c.Type == column.Category {
		return p.categoryValues(c)
	}
	if c.Type.IsVariableLength() {
		return p.textValues(c)
	}
	return p.numericValues(c)
}

func (p *Partition) numericValues(c *column.Descriptor) ([]any, error) {
	handle, fd, err := c.Fetch(p.manager, 0)
	if err != nil {
		return nil, err
	}
	if fd != nil {
		defer fd.Close()
	}
	var raw []byte
	if handle != nil {
		raw = handle.Bytes
	} else {
		raw, err = io.ReadAll(fd.File)
		if err != nil {
			return nil, perr.Wrap(perr.ErrIO, err, "partition %s: reading %s for dump", p.Name, c.Name)
		}
	}

	out := make([]any, p.NEvents)
	switch c.Type {
	case column.Byte:
		fillNumeric(out, scan.DecodeArray[int8](raw, 1, scan.DecodeInt8))
	case column.UByte:
		fillNumeric(out, scan.DecodeArray[uint8](raw, 1, scan.DecodeUint8))
	case column.Short:
		fillNumeric(out, scan.DecodeArray[int16](raw, 2, scan.DecodeInt16))
	case column.UShort:
		fillNumeric(out, scan.DecodeArray[uint16](raw, 2, scan.DecodeUint16))
	case column.Int:
		fillNumeric(out, scan.DecodeArray[int32](raw, 4, scan.DecodeInt32))
	case column.UInt:
		fillNumeric(out, scan.DecodeArray[uint32](raw, 4, scan.DecodeUint32))
	case column.Long:
		fillNumeric(out, scan.DecodeArray[int64](raw, 8, scan.DecodeInt64))
	case column.ULong, column.OID:
		fillNumeric(out, scan.DecodeArray[uint64](raw, 8, scan.DecodeUint64))
	case column.Float:
		fillNumeric(out, scan.DecodeArray[float32](raw, 4, scan.DecodeFloat32))
	case column.Double:
		fillNumeric(out, scan.DecodeArray[float64](raw, 8, scan.DecodeFloat64))
	default:
		return nil, perr.UnsupportedType(c.Name, c.Type)
	}
	return out, nil
}

func fillNumeric[T scan.Numeric](out []any, values []T) {
	for i := range out {
		if i < len(values) {
			out[i] = values[i]
		}
	}
}

func (p *Partition) categoryValues(c *column.Descriptor) ([]any, error) {
	handle, fd, err := c.Fetch(p.manager, 0)
	if err != nil {
		return nil, err
	}
	if fd != nil {
		defer fd.Close()
	}
	var raw []byte
	if handle != nil {
		raw = handle.Bytes
	} else {
		raw, err = io.ReadAll(fd.File)
		if err != nil {
			return nil, perr.Wrap(perr.ErrIO, err, "partition %s: reading %s for dump", p.Name, c.Name)
		}
	}
	codes := scan.DecodeArray[uint32](raw, 4, scan.DecodeUint32)
	out := make([]any, p.NEvents)
	for i := range out {
		if i >= len(codes) {
			continue
		}
		if s, ok := c.Dict.String(int32(codes[i])); ok {
			out[i] = s
		} else {
			out[i] = codes[i]
		}
	}
	return out, nil
}

func (p *Partition) textValues(c *column.Descriptor) ([]any, error) {
	handle, err := c.FetchArray(p.manager)
	if err != nil {
		return nil, err
	}
	raw := handle.Bytes
	offsets := c.Offsets
	end := func(i int) int64 {
		if i+1 < len(offsets) {
			return offsets[i+1]
		}
		return int64(len(raw))
	}
	out := make([]any, p.NEvents)
	for i := range out {
		if i >= len(offsets) {
			continue
		}
		out[i] = string(raw[offsets[i]:end(i)])
	}
	return out, nil
}
