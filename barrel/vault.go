package barrel

import (
	"encoding/binary"
	"math"
	"os"
	"sort"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/perr"
)

// rosterEntry pairs a sort-column value with the underlying row it
// came from, one per row, stored sorted by Value.
type rosterEntry struct {
	Value float64
	Row   int64
}

const rosterEntrySize = 16 // float64 + int64, native byte order

// Vault is spec.md §4.6's barrel specialization: a barrel paired with
// an external sorted-column roster, so SeekValue binary-searches the
// roster file instead of a row index, and ReadPermuted follows the
// roster's permutation. The embedded Barrel's Read still advances in
// row order.
type Vault struct {
	*Barrel
	roster []rosterEntry
}

// OpenVault opens a Barrel over cols and loads rosterPath, a flat file
// of (value float64, row int64) pairs sorted ascending by value — the
// "external sorted-column roster" of spec.md §4.6.
func OpenVault(m *fileman.Manager, cols []*column.Descriptor, rosterPath string) (*Vault, error) {
	b, err := Open(m, cols)
	if err != nil {
		return nil, err
	}
	roster, err := loadRoster(rosterPath)
	if err != nil {
		b.Close()
		return nil, err
	}
	return &Vault{Barrel: b, roster: roster}, nil
}

func loadRoster(path string) ([]rosterEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.ErrTransient, err, "vault: reading roster %s", path)
	}
	if len(raw)%rosterEntrySize != 0 {
		return nil, perr.New(perr.ErrData, "vault: roster %s has truncated trailing entry", path)
	}
	n := len(raw) / rosterEntrySize
	out := make([]rosterEntry, n)
	for i := 0; i < n; i++ {
		off := i * rosterEntrySize
		bits := binary.NativeEndian.Uint64(raw[off : off+8])
		out[i].Value = math.Float64frombits(bits)
		out[i].Row = int64(binary.NativeEndian.Uint64(raw[off+8 : off+16]))
	}
	return out, nil
}

// SeekValue binary-searches the roster for value and, if found, aligns
// the underlying barrel to that entry's row. It reports whether a
// matching entry exists.
func (v *Vault) SeekValue(value float64) bool {
	i := sort.Search(len(v.roster), func(i int) bool { return v.roster[i].Value >= value })
	if i >= len(v.roster) || v.roster[i].Value != value {
		return false
	}
	v.Barrel.Seek(int(v.roster[i].Row))
	return true
}

// Len returns the number of rows in the roster permutation.
func (v *Vault) Len() int { return len(v.roster) }

// ReadPermuted reads the row at roster position i, following the
// roster's permutation rather than underlying row order (spec.md
// §4.6: "read() returns rows in sort order while the remaining
// variables follow the roster's permutation").
func (v *Vault) ReadPermuted(i int) ([]float64, error) {
	if i < 0 || i >= len(v.roster) {
		return nil, perr.New(perr.ErrQuery, "vault: roster index %d out of range", i)
	}
	v.Barrel.Seek(int(v.roster[i].Row))
	return v.Barrel.Read()
}
