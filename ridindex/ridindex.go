// Package ridindex implements spec.md §4.7's row-identifier index: a
// mapping from external (runId, eventId) pairs to internal row numbers,
// backed by an optional sorted side file.
package ridindex

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/rowmask"
)

// Rid is the external row identifier: a (runId, eventId) pair, unique
// within a partition.
type Rid struct {
	RunID   int64
	EventID int64
}

func (r Rid) hash() uint64 {
	var buf [16]byte
	binary.NativeEndian.PutUint64(buf[0:8], uint64(r.RunID))
	binary.NativeEndian.PutUint64(buf[8:16], uint64(r.EventID))
	return xxhash.Sum64(buf[:])
}

// entry is one (runId, eventId, rowNumber) triple, the on-disk shape of
// -rids.srt (spec.md §4.7). Entries are stored sorted by Rid so
// rowFromRid can binary-search.
type entry struct {
	Rid Rid
	Row int32
}

const entrySize = 20 // two int64 + one int32

// Index is the in-memory, loaded form of a partition's RID files.
type Index struct {
	// raw holds every (Rid, Row) pair in -rids, in append order, used as
	// the rowFromRid linear-scan fallback and as evaluateRidSet's
	// without-sorted-file path.
	raw []entry

	// sorted holds the same entries ordered by Rid, the loaded form of
	// -rids.srt, used by rowFromRid's binary-search fast path and by
	// buildSortedRids' staleness check.
	sorted []entry

	// hashIndex accelerates rowFromRid by pre-filtering candidates via
	// xxhash before the exact Rid comparison, per spec.md's ambient use
	// of xxhash for RID prefiltering.
	hashIndex map[uint64][]int32

	// byRow is the reverse of hashIndex, used only by the self-test's
	// RID roundtrip sample (row -> RID -> row).
	byRow map[int32]Rid
}

// Load reads the unsorted -rids file (if present) and the sorted
// -rids.srt file (if present and not stale). ridPath/"" or
// sortedPath/"" mean "file absent".
func Load(ridPath, sortedPath string) (*Index, error) {
	ix := &Index{hashIndex: map[uint64][]int32{}, byRow: map[int32]Rid{}}

	if ridPath != "" {
		raw, err := readEntries(ridPath)
		if err != nil {
			return nil, err
		}
		ix.raw = raw
		for _, e := range raw {
			h := e.Rid.hash()
			ix.hashIndex[h] = append(ix.hashIndex[h], e.Row)
			ix.byRow[e.Row] = e.Rid
		}
	}

	if sortedPath != "" {
		sorted, err := readEntries(sortedPath)
		if err == nil && len(sorted) == len(ix.raw) {
			ix.sorted = sorted
		}
		// A size mismatch (or missing file) is not an error here: the
		// caller rebuilds via BuildSortedRids, per spec.md §4.7's
		// "file-size mismatch triggers rebuild".
	}

	return ix, nil
}

func readEntries(path string) ([]entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.ErrTransient, err, "ridindex: reading %s", path)
	}
	if len(raw)%entrySize != 0 {
		return nil, perr.New(perr.ErrData, "ridindex: %s has a truncated trailing entry", path)
	}
	n := len(raw) / entrySize
	out := make([]entry, n)
	for i := 0; i < n; i++ {
		off := i * entrySize
		out[i].Rid.RunID = int64(binary.NativeEndian.Uint64(raw[off : off+8]))
		out[i].Rid.EventID = int64(binary.NativeEndian.Uint64(raw[off+8 : off+16]))
		out[i].Row = int32(binary.NativeEndian.Uint32(raw[off+16 : off+20]))
	}
	return out, nil
}

func writeEntries(path string, entries []entry) error {
	buf := make([]byte, len(entries)*entrySize)
	for i, e := range entries {
		off := i * entrySize
		binary.NativeEndian.PutUint64(buf[off:off+8], uint64(e.Rid.RunID))
		binary.NativeEndian.PutUint64(buf[off+8:off+16], uint64(e.Rid.EventID))
		binary.NativeEndian.PutUint32(buf[off+16:off+20], uint32(e.Row))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return perr.Wrap(perr.ErrIO, err, "ridindex: writing %s", path)
	}
	return nil
}

// RowFromRid implements spec.md §4.7's rowFromRid: a sorted-file binary
// search first, falling back to a hash-prefiltered linear scan of the
// unsorted file when no current sorted file is loaded.
func (ix *Index) RowFromRid(rid Rid) (int32, bool) {
	if ix.sorted != nil {
		i := sort.Search(len(ix.sorted), func(i int) bool { return !less(ix.sorted[i].Rid, rid) })
		if i < len(ix.sorted) && ix.sorted[i].Rid == rid {
			return ix.sorted[i].Row, true
		}
		return 0, false
	}
	for _, row := range ix.hashIndex[rid.hash()] {
		if ix.byRow[row] == rid {
			return row, true
		}
	}
	return 0, false
}

// RidAt returns the RID for row, the reverse of RowFromRid, used only by
// the self-test's roundtrip sample (row -> RID -> row). When the
// partition carries no RID file at all, row itself is the RID's
// EventID, matching EvaluateRidSet's row-number fallback.
func (ix *Index) RidAt(row int32) (Rid, bool) {
	if len(ix.raw) == 0 {
		return Rid{EventID: int64(row)}, true
	}
	rid, ok := ix.byRow[row]
	return rid, ok
}

func less(a, b Rid) bool {
	if a.RunID != b.RunID {
		return a.RunID < b.RunID
	}
	return a.EventID < b.EventID
}

// BuildSortedRids implements spec.md §4.7's buildSortedRids: a one-time
// sort of the loaded RID entries, written to sortedPath. Callers invoke
// this when Load reported no current sorted file (absent, or a
// row-count mismatch against -rids).
func (ix *Index) BuildSortedRids(sortedPath string) error {
	sorted := append([]entry(nil), ix.raw...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i].Rid, sorted[j].Rid) })
	if err := writeEntries(sortedPath, sorted); err != nil {
		return err
	}
	ix.sorted = sorted
	return nil
}

// EvaluateRidSet implements spec.md §4.7's evaluateRidSet: with RID
// entries loaded, it merge-joins rids against the sorted file (or the
// hash index, when no sorted file is current) and sets the matching
// rows in a bitvector of the given size. When the partition carries no
// RID file at all (ix has no entries), rids are treated as row numbers
// directly, per the spec's fallback.
func (ix *Index) EvaluateRidSet(rids []Rid, size int) *rowmask.Bitmap {
	b := rowmask.NewDenseBuilder(size)
	if len(ix.raw) == 0 {
		for _, r := range rids {
			row := int(r.EventID)
			if row >= 0 && row < size {
				b.Set(row)
			}
		}
		return b.Finalize()
	}

	if ix.sorted != nil {
		sorted := append([]entry(nil), ix.sorted...)
		sort.Slice(sorted, func(i, j int) bool { return less(sorted[i].Rid, sorted[j].Rid) })
		queries := append([]Rid(nil), rids...)
		sort.Slice(queries, func(i, j int) bool { return less(queries[i], queries[j]) })

		i, j := 0, 0
		for i < len(queries) && j < len(sorted) {
			switch {
			case less(queries[i], sorted[j].Rid):
				i++
			case less(sorted[j].Rid, queries[i]):
				j++
			default:
				if row := int(sorted[j].Row); row >= 0 && row < size {
					b.Set(row)
				}
				i++
			}
		}
		return b.Finalize()
	}

	for _, r := range rids {
		if row, ok := ix.RowFromRid(r); ok && int(row) >= 0 && int(row) < size {
			b.Set(int(row))
		}
	}
	return b.Finalize()
}
