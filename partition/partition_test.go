package partition

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/metadata"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/predicate"
	"github.com/ibitd/ibitd/resource"
	"github.com/ibitd/ibitd/ridindex"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

func newTestManager(t *testing.T) *fileman.Manager {
	t.Helper()
	m, err := fileman.New(fileman.Options{Log: ilog.NoOp()})
	require.NoError(t, err)
	return m
}

func writeTestHeader(t *testing.T, dir string, nRows int, cols []metadata.ColumnHeader, mutate func(*metadata.Header)) {
	t.Helper()
	h := &metadata.Header{
		Name:            filepath.Base(dir),
		NumberOfRows:    int64(nRows),
		NumberOfColumns: len(cols),
		State:           "STABLE",
		Columns:         cols,
	}
	if mutate != nil {
		mutate(h)
	}
	require.NoError(t, metadata.Write(filepath.Join(dir, "-part.txt"), h))
}

func writeInt32Values(t *testing.T, dir, name string, values []int32) {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range values {
		buf.Write(scan.EncodeInt32(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func writeUint32Values(t *testing.T, dir, name string, values []uint32) {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range values {
		buf.Write(scan.EncodeUint32(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func writeFloat32Values(t *testing.T, dir, name string, values []float32) {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range values {
		buf.Write(scan.EncodeFloat32(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func openTestPartition(t *testing.T, dir string, opts Options) *Partition {
	t.Helper()
	if opts.Manager == nil {
		opts.Manager = newTestManager(t)
	}
	if opts.Log == nil {
		opts.Log = ilog.NoOp()
	}
	p, err := Open(dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func hitRows(b *rowmask.Bitmap) []int {
	rows := []int{}
	b.ForEachSetBit(func(i int) { rows = append(rows, i) })
	return rows
}

func TestEvaluateIntRangeBoundCoercion(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 6, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{0, 1, 2, 3, 4, 5})

	p := openTestPartition(t, dir, Options{})
	hits, err := p.Evaluate(Query{Range: &predicate.RangePredicate{
		Column: "x",
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: 3.7},
	}})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, hitRows(hits))
}

func TestEvaluateEmptyTwoSidedRange(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{{Name: "y", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "y", []int32{10, 20, 30})

	p := openTestPartition(t, dir, Options{})
	hits, err := p.Evaluate(Query{Range: &predicate.RangePredicate{
		Column: "y",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGT, Value: 20},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: 20},
	}})
	require.NoError(t, err)
	require.Equal(t, 0, hits.Count())
}

func TestEvaluateDiscreteMembershipRespectsMask(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 10, []metadata.ColumnHeader{{Name: "z", Type: column.UInt}}, nil)
	writeUint32Values(t, dir, "z", []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	// Rows 0-9 active except row 2: MSB-first packing, 11011111 11000000.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "-part.msk"), []byte{0xdf, 0xc0}, 0o644))

	p := openTestPartition(t, dir, Options{})
	require.Equal(t, 9, p.Mask.Count())

	hits, err := p.Evaluate(Query{Membership: &predicate.DiscreteMembership{
		Column: "z",
		Values: []float64{2, 3, 5},
	}})
	require.NoError(t, err)
	require.Equal(t, []int{1, 4}, hitRows(hits))
}

func TestEvaluateFloatEqualityBoundary(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{{Name: "f", Type: column.Float}}, nil)
	writeFloat32Values(t, dir, "f", []float32{1.0, 2.0, 3.0})

	p := openTestPartition(t, dir, Options{})

	hits, err := p.Evaluate(Query{Range: &predicate.RangePredicate{
		Column: "f",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpEQ, Value: 2.0000001},
	}})
	require.NoError(t, err)
	require.Equal(t, 0, hits.Count())

	hits, err = p.Evaluate(Query{Range: &predicate.RangePredicate{
		Column: "f",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpEQ, Value: 2.0},
	}})
	require.NoError(t, err)
	require.Equal(t, []int{1}, hitRows(hits))
}

func TestEvaluateCategoryEquality(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 5, []metadata.ColumnHeader{{Name: "c", Type: column.Category}}, nil)
	writeUint32Values(t, dir, "c.int", []uint32{0, 1, 2, 0, 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.dic"), []byte("a\nb\nc\n"), 0o644))

	p := openTestPartition(t, dir, Options{})
	hits, err := p.Evaluate(Query{StrEq: &predicate.StringEquality{Column: "c", Value: "b"}})
	require.NoError(t, err)
	require.Equal(t, []int{1, 4}, hitRows(hits))

	hits, err = p.Evaluate(Query{StrIn: &predicate.StringIn{Column: "c", Values: []string{"a", "nope"}}})
	require.NoError(t, err)
	require.Equal(t, []int{0, 3}, hitRows(hits))
}

func writeRidFile(t *testing.T, dir string, eventIDs []int64) {
	t.Helper()
	buf := make([]byte, len(eventIDs)*20)
	for i, ev := range eventIDs {
		off := i * 20
		binary.NativeEndian.PutUint64(buf[off:off+8], 1) // runId
		binary.NativeEndian.PutUint64(buf[off+8:off+16], uint64(ev))
		binary.NativeEndian.PutUint32(buf[off+16:off+20], uint32(i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "-rids"), buf, 0o644))
}

func TestRidRoundtrip(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 4, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{1, 2, 3, 4})
	writeRidFile(t, dir, []int64{100, 200, 300, 400})

	p := openTestPartition(t, dir, Options{})
	require.NotNil(t, p.Rids)

	row, ok := p.RowFromRid(ridindex.Rid{RunID: 1, EventID: 300})
	require.True(t, ok)
	require.Equal(t, int32(2), row)

	_, ok = p.RowFromRid(ridindex.Rid{RunID: 1, EventID: 999})
	require.False(t, ok)

	hits, err := p.EvaluateRids([]ridindex.Rid{
		{RunID: 1, EventID: 200},
		{RunID: 1, EventID: 400},
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, hitRows(hits))
}

func TestIndexAndScanAgree(t *testing.T) {
	dir := t.TempDir()
	n := 256
	values := make([]int32, n)
	for i := range values {
		values[i] = int32((i * 37) % 101)
	}
	writeTestHeader(t, dir, n, []metadata.ColumnHeader{{Name: "v", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "v", values)

	p := openTestPartition(t, dir, Options{})
	require.NoError(t, p.BuildIndexes([]IndexSpec{{Spec: "default"}}, 3))
	require.True(t, p.Column("v").Index.Loaded())

	ranges := [][2]float64{{0, 101}, {10, 20}, {50.5, 90.2}, {-5, 3}, {100, 200}}
	for seed := 0; seed < 15; seed++ {
		lo := float64((seed * 13) % 101)
		hi := lo + float64((seed*29)%53)
		ranges = append(ranges, [2]float64{lo, hi})
	}

	for _, r := range ranges {
		q := Query{Range: &predicate.RangePredicate{
			Column: "v",
			Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: r[0]},
			Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: r[1]},
		}}
		viaIndex, err := p.Evaluate(q)
		require.NoError(t, err)

		p.UnloadIndexes()
		viaScan, err := p.Evaluate(q)
		require.NoError(t, err)
		require.True(t, viaIndex.Xor(viaScan).Count() == 0,
			"index/scan disagree on [%g, %g)", r[0], r[1])

		require.NoError(t, p.BuildIndexes([]IndexSpec{{Spec: "default"}}, 1))
	}
}

func TestEstimateBracketsEvaluate(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 8, []metadata.ColumnHeader{{Name: "v", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "v", []int32{5, 1, 9, 3, 7, 2, 8, 4})

	p := openTestPartition(t, dir, Options{})
	require.NoError(t, p.BuildIndexes([]IndexSpec{{Spec: "default"}}, 2))

	q := Query{Range: &predicate.RangePredicate{
		Column: "v",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: 3},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLE, Value: 7},
	}}
	sure, possible, err := p.Estimate(q)
	require.NoError(t, err)
	hits, err := p.Evaluate(q)
	require.NoError(t, err)

	require.Equal(t, 0, sure.AndNot(hits).Count(), "sure must be a subset of evaluate")
	require.Equal(t, 0, hits.AndNot(possible).Count(), "evaluate must be a subset of possible")
	require.Equal(t, 0, hits.AndNot(p.Mask).Count(), "evaluate must be a subset of the active mask")
	require.Equal(t, p.NEvents, p.Mask.Size())
}

func TestUnknownColumnIsQueryError(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 2, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{1, 2})

	p := openTestPartition(t, dir, Options{})
	_, err := p.Evaluate(Query{Range: &predicate.RangePredicate{Column: "nope"}})
	require.Error(t, err)
	require.True(t, perr.Is(err, perr.ErrQuery))
}

func TestOpenMissingHeaderFails(t *testing.T) {
	_, err := Open(t.TempDir(), Options{Manager: newTestManager(t)})
	require.Error(t, err)
	require.True(t, perr.Is(err, perr.ErrConfiguration))
}

func TestColumnSelectionKeepsListedIndices(t *testing.T) {
	dir := t.TempDir()
	cols := []metadata.ColumnHeader{
		{Name: "a", Type: column.Int},
		{Name: "b", Type: column.Int},
		{Name: "c", Type: column.Int},
	}
	writeTestHeader(t, dir, 2, cols, func(h *metadata.Header) {
		h.ColumnsSelected = []int{1}
	})
	for _, name := range []string{"a", "b", "c"} {
		writeInt32Values(t, dir, name, []int32{1, 2})
	}

	p := openTestPartition(t, dir, Options{})
	require.Len(t, p.Columns, 1)
	require.Equal(t, "b", p.Columns[0].Name)
	require.Nil(t, p.Column("a"))
}

func TestShortValueFilePadded(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 4, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{7, 8}) // 2 rows short

	p := openTestPartition(t, dir, Options{})
	fi, err := os.Stat(filepath.Join(dir, "x"))
	require.NoError(t, err)
	require.Equal(t, int64(16), fi.Size())

	hits, err := p.Evaluate(Query{Range: &predicate.RangePredicate{
		Column: "x",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpEQ, Value: 0},
	}})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, hitRows(hits))
}

func TestEvaluateCSRHonorsResourceKey(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 4, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{1, 5, 2, 6})

	res := resource.New()
	res.Set(resource.KeyExportBitmapCsr, true)
	p := openTestPartition(t, dir, Options{Resource: res})

	_, csr, err := p.EvaluateCSR(Query{Range: &predicate.RangePredicate{
		Column: "x",
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGT, Value: 4},
	}})
	require.NoError(t, err)

	want := rowmask.CSR{Indices: []int32{1, 3}, IndPtr: []int32{0, 2}}
	if diff := cmp.Diff(want, csr); diff != "" {
		t.Fatalf("CSR export mismatch (-want +got):\n%s", diff)
	}
}

func TestMetaTagsRoundtripThroughOpen(t *testing.T) {
	dir := t.TempDir()
	tags := []metadata.MetaTag{{Name: "region", Value: "us"}, {Name: "tier", Value: "gold"}}
	writeTestHeader(t, dir, 1, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, func(h *metadata.Header) {
		h.MetaTags = tags
	})
	writeInt32Values(t, dir, "x", []int32{1})

	p := openTestPartition(t, dir, Options{})
	if diff := cmp.Diff(tags, p.MetaTags); diff != "" {
		t.Fatalf("meta tags mismatch (-want +got):\n%s", diff)
	}
}

func TestTryEvictUnloadsIndexesAndRids(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{1, 2, 3})
	writeRidFile(t, dir, []int64{10, 20, 30})

	p := openTestPartition(t, dir, Options{})
	require.NoError(t, p.BuildIndexes([]IndexSpec{{Spec: "default"}}, 1))
	require.NotNil(t, p.Rids)

	require.True(t, p.TryEvict())
	require.False(t, p.Column("x").Index.Loaded())
	require.Nil(t, p.Rids)
}

func TestDumpWritesActiveRows(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{
		{Name: "x", Type: column.Int},
		{Name: "c", Type: column.Category},
	}, nil)
	writeInt32Values(t, dir, "x", []int32{10, 20, 30})
	writeUint32Values(t, dir, "c.int", []uint32{0, 1, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.dic"), []byte("red\nblue\n"), 0o644))
	// Row 1 inactive: 101 -> 10100000.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "-part.msk"), []byte{0xa0}, 0o644))

	p := openTestPartition(t, dir, Options{})
	var out bytes.Buffer
	require.NoError(t, p.Dump(&out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"red"`)
	require.NotContains(t, out.String(), `"blue"`)
}

func writeTextColumn(t *testing.T, dir, name string, values []string) {
	t.Helper()
	var raw bytes.Buffer
	offsets := make([]byte, 0, len(values)*8)
	for _, v := range values {
		var off [8]byte
		binary.NativeEndian.PutUint64(off[:], uint64(raw.Len()))
		offsets = append(offsets, off[:]...)
		raw.WriteString(v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".sp"), offsets, 0o644))
}

func TestEstimateCostConjunctionDisjointLikes(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{{Name: "name", Type: column.Text}}, nil)
	writeTextColumn(t, dir, "name", []string{"apple", "banana", "apricot"})

	p := openTestPartition(t, dir, Options{})

	// Sanity: LIKE evaluates from disk through the offsets side file.
	hits, err := p.Evaluate(Query{Like: &predicate.Like{Column: "name", Pattern: "ap*"}})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, hitRows(hits))

	disjoint := []Query{
		{Like: &predicate.Like{Column: "name", Pattern: "a*"}},
		{Like: &predicate.Like{Column: "name", Pattern: "b*"}},
	}
	require.Equal(t, 0.0, p.EstimateCostConjunction(disjoint))

	overlapping := []Query{
		{Like: &predicate.Like{Column: "name", Pattern: "a*"}},
		{Like: &predicate.Like{Column: "name", Pattern: "*e"}},
	}
	require.Greater(t, p.EstimateCostConjunction(overlapping), 0.0)
}

func TestEvaluateIntMembershipLongColumn(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 3, []metadata.ColumnHeader{{Name: "oid", Type: column.Long}}, nil)
	var buf bytes.Buffer
	for _, v := range []int64{9007199254740992, 9007199254740993, 42} {
		buf.Write(scan.EncodeInt64(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oid"), buf.Bytes(), 0o644))

	p := openTestPartition(t, dir, Options{})
	hits, err := p.Evaluate(Query{IntMember: &predicate.IntMembership{
		Column: "oid",
		Signed: []int64{9007199254740993, 42},
	}})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, hitRows(hits))
}

func TestOnCommitTriggerFires(t *testing.T) {
	dir := t.TempDir()
	writeTestHeader(t, dir, 1, []metadata.ColumnHeader{{Name: "x", Type: column.Int}}, nil)
	writeInt32Values(t, dir, "x", []int32{1})

	p := openTestPartition(t, dir, Options{})
	fired := 0
	p.OnCommit(func(*Partition) { fired++ })

	require.NoError(t, p.BuildIndexes([]IndexSpec{{Spec: "default"}}, 1))
	require.Equal(t, 1, fired, "index rebuild must fire triggers")

	require.NoError(t, p.Close())
	require.Equal(t, 2, fired, "mask persist on close must fire triggers")
}

func TestParseStateRoundtrip(t *testing.T) {
	for _, s := range []State{StateUnknown, StateStable, StateReceiving, StatePretransition, StatePosttransition} {
		require.Equal(t, s, ParseState(s.String()))
	}
	require.Equal(t, StateUnknown, ParseState("whatever"))
}
