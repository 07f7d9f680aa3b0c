// Package selftest implements spec.md §4.9's property-based self-test:
// recursive range subdivision cross-checked between the index path and
// a forced full scan, a RID roundtrip sample, and a concurrent racing
// mode over binary-subdivided 2D range pairs.
package selftest

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/andreyvit/diff"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/predicate"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

// Node is one level of the recursive 3-way range subdivision, carrying
// its own hit count and the hit counts of its (up to 3) children.
type Node struct {
	Lo, Hi   float64
	Count    int
	Children []*Node
}

// Report is the outcome of one RunRangeCheck call.
type Report struct {
	Column      string
	Root        *Node
	Mismatches  []string // index-vs-scan disagreements, formatted for display
	SumOK       bool     // every node's count equals the sum of its children's
	RoundtripOK bool
}

// RunRangeCheck implements spec.md §4.9's range-subdivision check: pick
// col's current [lo, hi] bounds, divide recursively into three
// non-overlapping sub-ranges down to depth, evaluate each leaf via the
// partition's normal (index-or-scan) path and via a forced full scan,
// and assert they agree bit-for-bit and that every node's count equals
// the sum of its children's.
func RunRangeCheck(p *partition.Partition, colName string, depth int, rng *rand.Rand) (*Report, error) {
	c := p.Column(colName)
	if c == nil {
		return nil, perr.New(perr.ErrQuery, "selftest: unknown column %q", colName)
	}
	if !c.Type.IsNumeric() {
		return nil, perr.New(perr.ErrQuery, "selftest: column %q is not numeric", colName)
	}

	lo, hi := c.Bounds(func() (float64, float64) { return computeBounds(p, c) })
	report := &Report{Column: colName, SumOK: true}

	root, err := subdivide(p, c, lo, hi, depth, report)
	if err != nil {
		return nil, err
	}
	report.Root = root
	return report, nil
}

func subdivide(p *partition.Partition, c *column.Descriptor, lo, hi float64, depth int, report *Report) (*Node, error) {
	n := &Node{Lo: lo, Hi: hi}

	hits, scanHits, err := evaluateBoth(p, c, lo, hi)
	if err != nil {
		return nil, err
	}
	n.Count = hits.Count()

	if hits.Count() != scanHits.Count() || !sameBits(hits, scanHits) {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf(
			"column %s range [%g, %g): index/scan disagree\n%s",
			c.Name, lo, hi, diff.LineDiff(bitDump(hits), bitDump(scanHits))))
	}

	if depth <= 0 || hi-lo < 3 {
		return n, nil
	}

	step := (hi - lo) / 3
	bounds := [4]float64{lo, lo + step, lo + 2*step, hi}
	childSum := 0
	for i := 0; i < 3; i++ {
		child, err := subdivide(p, c, bounds[i], bounds[i+1], depth-1, report)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
		childSum += child.Count
	}
	if childSum != n.Count {
		report.SumOK = false
		report.Mismatches = append(report.Mismatches, fmt.Sprintf(
			"column %s range [%g, %g): children sum to %d, parent counted %d",
			c.Name, lo, hi, childSum, n.Count))
	}
	return n, nil
}

func evaluateBoth(p *partition.Partition, c *column.Descriptor, lo, hi float64) (indexHits, scanHits *rowmask.Bitmap, err error) {
	r := predicate.RangePredicate{
		Column: c.Name,
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: lo},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: hi},
	}
	indexHits, err = p.Evaluate(partition.Query{Range: &r})
	if err != nil {
		return nil, nil, err
	}
	scanHits, err = forceScan(p, c, r)
	if err != nil {
		return nil, nil, err
	}
	return indexHits, scanHits, nil
}

// sameBits compares two same-size bitmaps bit for bit.
func sameBits(a, b *rowmask.Bitmap) bool {
	if a.Size() != b.Size() {
		return false
	}
	av, bv := a.ToBoolSlice(), b.ToBoolSlice()
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}

func bitDump(b *rowmask.Bitmap) string {
	out := make([]byte, 0, b.Size())
	for _, v := range b.ToBoolSlice() {
		if v {
			out = append(out, '1')
		} else {
			out = append(out, '0')
		}
	}
	return string(out)
}

// forceScan evaluates r the same way predicate.BuildComparator would,
// but bypasses any loaded bitmap index entirely — the independent
// ground truth the index path is checked against. Mirrors the dispatch
// table in predicate.Dispatcher.EvaluateRange, minus the index check.
func forceScan(p *partition.Partition, c *column.Descriptor, r predicate.RangePredicate) (*rowmask.Bitmap, error) {
	isInteger := c.Type.IsInteger()
	min, max := c.Type.IntegerBounds()
	mask := p.ActiveMask()

	switch c.Type {
	case column.Byte:
		return forceScanTyped[int8](p, c, r, isInteger, min, max, 1, scan.DecodeInt8, mask)
	case column.UByte:
		return forceScanTyped[uint8](p, c, r, isInteger, min, max, 1, scan.DecodeUint8, mask)
	case column.Short:
		return forceScanTyped[int16](p, c, r, isInteger, min, max, 2, scan.DecodeInt16, mask)
	case column.UShort:
		return forceScanTyped[uint16](p, c, r, isInteger, min, max, 2, scan.DecodeUint16, mask)
	case column.Int:
		return forceScanTyped[int32](p, c, r, isInteger, min, max, 4, scan.DecodeInt32, mask)
	case column.UInt, column.Category:
		return forceScanTyped[uint32](p, c, r, isInteger, min, max, 4, scan.DecodeUint32, mask)
	case column.Long:
		return forceScanTyped[int64](p, c, r, isInteger, min, max, 8, scan.DecodeInt64, mask)
	case column.ULong, column.OID:
		return forceScanTyped[uint64](p, c, r, isInteger, min, max, 8, scan.DecodeUint64, mask)
	case column.Float:
		return forceScanTyped[float32](p, c, r, false, 0, 0, 4, scan.DecodeFloat32, mask)
	case column.Double:
		return forceScanTyped[float64](p, c, r, false, 0, 0, 8, scan.DecodeFloat64, mask)
	default:
		return nil, perr.UnsupportedType(c.Name, c.Type)
	}
}

func forceScanTyped[T scan.Numeric](p *partition.Partition, c *column.Descriptor, r predicate.RangePredicate, isInteger bool, min, max float64, elemSize int, decode scan.Decoder[T], mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	pred, ok := predicate.BuildComparator[T](r, isInteger, min, max)
	if !ok {
		return rowmask.NewAllZeros(mask.Size()), nil
	}
	handle, fd, err := c.Fetch(p.Manager(), 0)
	if err != nil {
		return nil, err
	}
	if handle != nil {
		values := scan.DecodeArray[T](handle.Bytes, elemSize, decode)
		return scan.Scan(values, pred, mask), nil
	}
	defer fd.Close()
	return scan.ScanFile(fd, p.Manager(), elemSize, decode, pred, mask)
}

// computeBounds scans c's full value array once to establish [lo, hi],
// used as the default Bounds compute func when the metadata store never
// set one explicitly. Only ever called once per column, per
// column.Descriptor.Bounds' memoization.
func computeBounds(p *partition.Partition, c *column.Descriptor) (float64, float64) {
	mask := p.ActiveMask()
	handle, fd, err := c.Fetch(p.Manager(), 0)
	if err != nil {
		return 0, 0
	}
	if fd != nil {
		defer fd.Close()
	}
	var raw []byte
	if handle != nil {
		raw = handle.Bytes
	} else {
		var rerr error
		raw, rerr = io.ReadAll(fd.File)
		if rerr != nil {
			return 0, 0
		}
	}

	switch c.Type {
	case column.Byte:
		return boundsOf(scan.DecodeArray[int8](raw, 1, scan.DecodeInt8), mask)
	case column.UByte:
		return boundsOf(scan.DecodeArray[uint8](raw, 1, scan.DecodeUint8), mask)
	case column.Short:
		return boundsOf(scan.DecodeArray[int16](raw, 2, scan.DecodeInt16), mask)
	case column.UShort:
		return boundsOf(scan.DecodeArray[uint16](raw, 2, scan.DecodeUint16), mask)
	case column.Int:
		return boundsOf(scan.DecodeArray[int32](raw, 4, scan.DecodeInt32), mask)
	case column.UInt, column.Category:
		return boundsOf(scan.DecodeArray[uint32](raw, 4, scan.DecodeUint32), mask)
	case column.Long:
		return boundsOf(scan.DecodeArray[int64](raw, 8, scan.DecodeInt64), mask)
	case column.ULong, column.OID:
		return boundsOf(scan.DecodeArray[uint64](raw, 8, scan.DecodeUint64), mask)
	case column.Float:
		return boundsOf(scan.DecodeArray[float32](raw, 4, scan.DecodeFloat32), mask)
	case column.Double:
		return boundsOf(scan.DecodeArray[float64](raw, 8, scan.DecodeFloat64), mask)
	default:
		return 0, 0
	}
}

func boundsOf[T scan.Numeric](values []T, mask *rowmask.Bitmap) (float64, float64) {
	lo, hi := 0.0, 0.0
	first := true
	mask.ForEachSetBit(func(i int) {
		if i >= len(values) {
			return
		}
		v := float64(values[i])
		if first {
			lo, hi = v, v
			first = false
			return
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	})
	return lo, hi
}
