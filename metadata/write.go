package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ibitd/ibitd/perr"
)

// Write serializes h back to path in the same BEGIN/END HEADER plus
// per-column-block layout Parse reads, satisfying spec.md §8's header
// roundtrip invariant (write-then-read yields the same logical column
// list, row count, timestamp, state, and meta tags). Write does not
// itself acquire the partition's write lock; callers apply the soft
// write-lock discipline from spec.md §4.1 before calling this.
func Write(path string, h *Header) error {
	var b strings.Builder
	b.WriteString(beginHeader + "\n")
	writeKV(&b, "Name", h.Name)
	writeKV(&b, "Description", h.Description)
	writeKV(&b, "Number_of_rows", strconv.FormatInt(h.NumberOfRows, 10))
	writeKV(&b, "Number_of_columns", strconv.Itoa(len(h.Columns)))
	writeKV(&b, "Timestamp", h.Timestamp)
	writeKV(&b, "State", h.State)
	writeKV(&b, "Alternative_Directory", h.AlternativeDirectory)
	writeKV(&b, "index", h.Index)
	if len(h.MetaTags) > 0 {
		writeKV(&b, "metaTags", formatMetaTags(h.MetaTags))
	}
	if len(h.ColumnShape) > 0 {
		writeKV(&b, "columnShape", formatShape(h.ColumnShape))
	}
	if len(h.MeshShape) > 0 {
		writeKV(&b, "meshShape", formatShape(h.MeshShape))
	}
	if len(h.ColumnsSelected) > 0 {
		writeKV(&b, "Columns_Selected", formatColumnsSelected(h.ColumnsSelected))
	}
	b.WriteString(endHeader + "\n")

	for _, c := range h.Columns {
		b.WriteString(beginColumn + "\n")
		writeKV(&b, "Name", c.Name)
		writeKV(&b, "Type", c.Type.String())
		b.WriteString(endColumn + "\n")
	}

	if err := atomicWriteFile(path, []byte(b.String())); err != nil {
		return perr.Wrap(perr.ErrIO, err, "metadata: writing %s", path)
	}
	return nil
}

func writeKV(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s = %s\n", key, value)
}

func formatColumnsSelected(idx []int) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ShouldRewrite reports whether the header should be rewritten: when
// the row count differs, the index specification changed, or the
// number of meta tags differs. Header carries no min/max fields, so a
// recomputed min/max does not by itself cause a rewrite.
func ShouldRewrite(prev, cur *Header) bool {
	if cur.NumberOfRows != prev.NumberOfRows {
		return true
	}
	if cur.Index != prev.Index {
		return true
	}
	if len(cur.MetaTags) != len(prev.MetaTags) {
		return true
	}
	return false
}
