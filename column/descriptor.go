package column

import (
	"sync"

	"github.com/ibitd/ibitd/rowmask"
)

// BitmapIndex is the minimal surface the column package needs from a
// per-column bitmap index, so this package never imports the bitmapindex
// package (which itself has no need to import column) — see DESIGN.md.
type BitmapIndex interface {
	Loaded() bool
	RowCount() int
}

// Descriptor is a partition's column metadata and the access point for
// its values (spec.md §3/§4.3). Descriptors hold a stable back-reference
// to their owning partition as an opaque handle, not a pointer, per the
// cyclic-reference resolution in spec.md §9.
type Descriptor struct {
	Name string
	Type Type

	// PartitionHandle is the arena index into the owning partition's
	// column slice; set by partition.Open, never by column itself.
	PartitionHandle int

	mu             sync.RWMutex
	boundsComputed bool
	lower, upper   float64

	NullMask *rowmask.Bitmap

	// Dict is non-nil only for Category columns.
	Dict *Dictionary

	// Offsets holds the 64-bit start offsets side file (".sp") for
	// Text/Blob columns; nil for fixed-width types.
	Offsets []int64

	// Index is the column's bitmap index, if one is loaded. nil means
	// "no index" and every predicate on this column falls back to a
	// scan kernel, per spec.md §4.4.
	Index BitmapIndex

	// ValuePath is the on-disk path to the fixed-width value file (or,
	// for Category, the ".int" coded-value file).
	ValuePath string
}

// New returns a Descriptor with no computed bounds, no null mask (all
// valid), and no index.
func New(name string, typ Type, valuePath string) *Descriptor {
	return &Descriptor{Name: name, Type: typ, ValuePath: valuePath}
}

// Bounds returns the column's [lower, upper] value range, computing it
// lazily via compute if it has not yet been established (spec.md §3:
// "[lowerBound, upperBound] (lazily computed)").
func (d *Descriptor) Bounds(compute func() (float64, float64)) (float64, float64) {
	d.mu.RLock()
	if d.boundsComputed {
		lo, hi := d.lower, d.upper
		d.mu.RUnlock()
		return lo, hi
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.boundsComputed {
		return d.lower, d.upper
	}
	d.lower, d.upper = compute()
	d.boundsComputed = true
	return d.lower, d.upper
}

// SetBounds forces the column's bounds, e.g. after the metadata store
// read min/max values straight from the header.
func (d *Descriptor) SetBounds(lo, hi float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lower, d.upper = lo, hi
	d.boundsComputed = true
}

// HasBounds reports whether the bounds have already been computed.
func (d *Descriptor) HasBounds() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.boundsComputed
}

// IsNull reports whether row i is null in this column's independent
// null mask (distinct from the partition-wide active-row mask).
func (d *Descriptor) IsNull(i int) bool {
	if d.NullMask == nil {
		return false
	}
	return d.NullMask.Test(i)
}
