package scan

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/rowmask"
)

func TestScanFileMatchesInMemoryScan(t *testing.T) {
	m, err := fileman.New(fileman.Options{Log: ilog.NoOp()})
	require.NoError(t, err)

	values := make([]int32, 300)
	for i := range values {
		values[i] = int32(i % 17)
	}
	var buf bytes.Buffer
	for _, v := range values {
		buf.Write(EncodeInt32(v))
	}
	path := filepath.Join(t.TempDir(), "col")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	// A mask with both a long contiguous run and scattered single bits,
	// so the range-run and sparse-set paths are both exercised.
	maskBits := make([]bool, len(values))
	for i := 20; i < 120; i++ {
		maskBits[i] = true
	}
	for _, i := range []int{0, 5, 150, 231, 299} {
		maskBits[i] = true
	}
	mask := rowmask.FromBoolSlice(maskBits)

	pred := func(v int32) bool { return v >= 3 && v < 11 }

	fd, err := m.FileDescriptor(path, fileman.PreferRead)
	require.NoError(t, err)
	defer fd.Close()

	fromFile, err := ScanFile(fd, m, 4, DecodeInt32, pred, mask)
	require.NoError(t, err)
	fromMemory := Scan(values, pred, mask)

	require.True(t, fromFile.Equal(fromMemory))
	require.Greater(t, m.PagesRead(), int64(0), "file scan must report pages touched")
}

func TestScanFileEmptyMask(t *testing.T) {
	m, err := fileman.New(fileman.Options{Log: ilog.NoOp()})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "col")
	require.NoError(t, os.WriteFile(path, EncodeInt32(7), 0o644))

	fd, err := m.FileDescriptor(path, fileman.PreferRead)
	require.NoError(t, err)
	defer fd.Close()

	hits, err := ScanFile(fd, m, 4, DecodeInt32, func(int32) bool { return true }, rowmask.NewAllZeros(1))
	require.NoError(t, err)
	require.Equal(t, 0, hits.Count())
}
