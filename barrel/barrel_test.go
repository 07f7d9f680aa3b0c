package barrel

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/scan"
)

func newTestManager(t *testing.T) *fileman.Manager {
	t.Helper()
	m, err := fileman.New(fileman.Options{Log: ilog.NoOp()})
	require.NoError(t, err)
	return m
}

func writeColumn(t *testing.T, dir, name string, encode func(*bytes.Buffer)) {
	t.Helper()
	var buf bytes.Buffer
	encode(&buf)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func TestBarrelSeekRead(t *testing.T) {
	dir := t.TempDir()
	writeColumn(t, dir, "a", func(buf *bytes.Buffer) {
		for _, v := range []int32{10, 20, 30} {
			buf.Write(scan.EncodeInt32(v))
		}
	})
	writeColumn(t, dir, "b", func(buf *bytes.Buffer) {
		for _, v := range []float64{1.5, 2.5, 3.5} {
			buf.Write(scan.EncodeFloat64(v))
		}
	})

	cols := []*column.Descriptor{
		column.New("a", column.Int, filepath.Join(dir, "a")),
		column.New("b", column.Double, filepath.Join(dir, "b")),
	}
	b, err := Open(newTestManager(t), cols)
	require.NoError(t, err)
	defer b.Close()

	b.Seek(1)
	row, err := b.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{20, 2.5}, row)

	// Read advances one row.
	row, err = b.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{30, 3.5}, row)

	b.Seek(0)
	row, err = b.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{10, 1.5}, row)
}

func TestBarrelReadPastEnd(t *testing.T) {
	dir := t.TempDir()
	writeColumn(t, dir, "a", func(buf *bytes.Buffer) {
		buf.Write(scan.EncodeInt32(1))
	})
	cols := []*column.Descriptor{column.New("a", column.Int, filepath.Join(dir, "a"))}
	b, err := Open(newTestManager(t), cols)
	require.NoError(t, err)
	defer b.Close()

	b.Seek(5)
	_, err = b.Read()
	require.Error(t, err)
}

func TestBarrelRejectsVariableLengthColumns(t *testing.T) {
	cols := []*column.Descriptor{column.New("t", column.Text, "/nonexistent")}
	_, err := Open(newTestManager(t), cols)
	require.Error(t, err)
}

func writeRoster(t *testing.T, path string, entries []rosterEntry) {
	t.Helper()
	buf := make([]byte, len(entries)*rosterEntrySize)
	for i, e := range entries {
		off := i * rosterEntrySize
		binary.NativeEndian.PutUint64(buf[off:off+8], math.Float64bits(e.Value))
		binary.NativeEndian.PutUint64(buf[off+8:off+16], uint64(e.Row))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestVaultSeekValueAndPermutedRead(t *testing.T) {
	dir := t.TempDir()
	// Values out of row order; the roster sorts by value.
	writeColumn(t, dir, "v", func(buf *bytes.Buffer) {
		for _, v := range []float64{30, 10, 20} {
			buf.Write(scan.EncodeFloat64(v))
		}
	})
	rosterPath := filepath.Join(dir, "v.srt")
	writeRoster(t, rosterPath, []rosterEntry{
		{Value: 10, Row: 1},
		{Value: 20, Row: 2},
		{Value: 30, Row: 0},
	})

	cols := []*column.Descriptor{column.New("v", column.Double, filepath.Join(dir, "v"))}
	v, err := OpenVault(newTestManager(t), cols, rosterPath)
	require.NoError(t, err)
	defer v.Close()

	require.Equal(t, 3, v.Len())
	require.True(t, v.SeekValue(20))
	row, err := v.Read()
	require.NoError(t, err)
	require.Equal(t, []float64{20}, row)

	require.False(t, v.SeekValue(15))

	// ReadPermuted walks rows in sort order regardless of row order.
	for i, want := range []float64{10, 20, 30} {
		row, err := v.ReadPermuted(i)
		require.NoError(t, err)
		require.Equal(t, []float64{want}, row)
	}

	_, err = v.ReadPermuted(99)
	require.Error(t, err)
}

func TestVaultTruncatedRosterFails(t *testing.T) {
	dir := t.TempDir()
	writeColumn(t, dir, "v", func(buf *bytes.Buffer) {
		buf.Write(scan.EncodeFloat64(1))
	})
	rosterPath := filepath.Join(dir, "v.srt")
	require.NoError(t, os.WriteFile(rosterPath, []byte{1, 2, 3}, 0o644))

	cols := []*column.Descriptor{column.New("v", column.Double, filepath.Join(dir, "v"))}
	_, err := OpenVault(newTestManager(t), cols, rosterPath)
	require.Error(t, err)
}
