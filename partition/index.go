package partition

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/ibitd/ibitd/bitmapindex"
	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

// IndexSpec selects which columns get an index and how. A single Spec
// value applies to every column (spec.md §4.8: "a single specification
// or a list of (namePattern, spec) pairs applied by matching the first
// pattern; a trailing odd element is the default").
type IndexSpec struct {
	NamePattern string // "" matches every column
	Spec        string // index kind, opaque to this package
}

// resolveSpec returns the spec that applies to col, given opt — either
// a single default IndexSpec or an ordered list ending in a trailing
// default.
func resolveSpec(col string, opt []IndexSpec) (string, bool) {
	for i := 0; i+1 < len(opt); i += 2 {
		if globMatch(opt[i].NamePattern, col) {
			return opt[i+1].Spec, true
		}
	}
	if len(opt)%2 == 1 {
		return opt[len(opt)-1].Spec, true
	}
	return "", false
}

func globMatch(pattern, name string) bool {
	return pattern == "" || pattern == "*" || pattern == name
}

// LoadIndexes implements spec.md §4.8's loadIndexes: walks every
// column and builds its index directly, since this reference
// implementation has no separate persisted index format to deserialize
// from — loading and building coincide here.
func (p *Partition) LoadIndexes(opt []IndexSpec) error {
	for _, c := range p.Columns {
		if _, ok := resolveSpec(c.Name, opt); !ok {
			continue
		}
		if err := p.buildColumnIndex(c); err != nil {
			p.log.Warnf("partition %s: loading index for %s: %v", p.Name, c.Name, err)
		}
	}
	return nil
}

// BuildIndexes implements spec.md §4.8's buildIndexes: a work-stealing
// pool of up to nthr goroutines pulling column indices from a shared
// atomic counter, invoking column-level build. If a loaded index
// reports a row count different from p.NEvents it is discarded and
// rebuilt, matching the invariant in spec.md §4.8.
func (p *Partition) BuildIndexes(opt []IndexSpec, nthr int) error {
	if nthr <= 0 {
		nthr = p.indexBuildNThreads
	}
	var counter int64
	var wg sync.WaitGroup
	errs := make([]error, len(p.Columns))

	worker := func() {
		defer wg.Done()
		for {
			i := int(atomic.AddInt64(&counter, 1)) - 1
			if i >= len(p.Columns) {
				return
			}
			c := p.Columns[i]
			if _, ok := resolveSpec(c.Name, opt); !ok {
				continue
			}
			if c.Index != nil && c.Index.Loaded() && c.Index.RowCount() != p.NEvents {
				p.purgeColumnIndex(c)
			}
			if c.Index == nil || !c.Index.Loaded() {
				errs[i] = p.buildColumnIndex(c)
			}
		}
	}

	for t := 0; t < nthr; t++ {
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	p.fireTriggers()
	return nil
}

// buildColumnIndex builds a reference bitmap index for c using its
// currently fetched values and the partition's active mask.
func (p *Partition) buildColumnIndex(c *column.Descriptor) error {
	if !c.Type.IsNumeric() {
		return nil // this reference index only covers numeric types
	}
	handle, fd, err := c.Fetch(p.manager, 0)
	if err != nil {
		return err
	}
	if fd != nil {
		defer fd.Close()
	}

	switch c.Type {
	case column.Byte:
		return buildAndAssign[int8](c, handle, fd, 1, scan.DecodeInt8, p.Mask)
	case column.UByte:
		return buildAndAssign[uint8](c, handle, fd, 1, scan.DecodeUint8, p.Mask)
	case column.Short:
		return buildAndAssign[int16](c, handle, fd, 2, scan.DecodeInt16, p.Mask)
	case column.UShort:
		return buildAndAssign[uint16](c, handle, fd, 2, scan.DecodeUint16, p.Mask)
	case column.Int:
		return buildAndAssign[int32](c, handle, fd, 4, scan.DecodeInt32, p.Mask)
	case column.UInt, column.Category:
		return buildAndAssign[uint32](c, handle, fd, 4, scan.DecodeUint32, p.Mask)
	case column.Long:
		return buildAndAssign[int64](c, handle, fd, 8, scan.DecodeInt64, p.Mask)
	case column.ULong, column.OID:
		return buildAndAssign[uint64](c, handle, fd, 8, scan.DecodeUint64, p.Mask)
	case column.Float:
		return buildAndAssign[float32](c, handle, fd, 4, scan.DecodeFloat32, p.Mask)
	case column.Double:
		return buildAndAssign[float64](c, handle, fd, 8, scan.DecodeFloat64, p.Mask)
	default:
		return perr.UnsupportedType(c.Name, c.Type)
	}
}

// buildAndAssign reads values either from an already-fetched array
// handle or, falling back, the whole file descriptor, builds a
// bitmapindex.Index[T] over them, and assigns it to c.Index.
func buildAndAssign[T scan.Numeric](c *column.Descriptor, handle *fileman.Handle, fd *fileman.FD, elemSize int, decode scan.Decoder[T], mask *rowmask.Bitmap) error {
	var raw []byte
	if handle != nil {
		raw = handle.Bytes
	} else {
		buf, err := io.ReadAll(fd.File)
		if err != nil {
			return perr.Wrap(perr.ErrTransient, err, "partition: reading %s for index build", c.Name)
		}
		raw = buf
	}
	values := scan.DecodeArray[T](raw, elemSize, decode)
	c.Index = bitmapindex.Build(values, mask)
	return nil
}

// UnloadIndexes implements spec.md §4.8's unloadIndexes: drops every
// column's in-memory index state.
func (p *Partition) UnloadIndexes() {
	p.unloadIndexesLocked()
}

// PurgeIndexFiles implements spec.md §4.8's purgeIndexFiles: unloads
// and removes any on-disk index artifacts. This reference index keeps
// no persisted file, so purging is equivalent to unloading; a real
// index format would also os.Remove its file here.
func (p *Partition) PurgeIndexFiles() {
	for _, c := range p.Columns {
		p.purgeColumnIndex(c)
	}
}

func (p *Partition) purgeColumnIndex(c *column.Descriptor) {
	if ix, ok := c.Index.(unloadable); ok {
		ix.Unload()
	}
	c.Index = nil
}
