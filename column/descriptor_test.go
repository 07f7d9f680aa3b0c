package column

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/rowmask"
)

func TestBoundsComputedOnce(t *testing.T) {
	d := New("score", Int, "")
	require.False(t, d.HasBounds())

	calls := 0
	compute := func() (float64, float64) {
		calls++
		return 1, 100
	}

	lo, hi := d.Bounds(compute)
	require.Equal(t, 1.0, lo)
	require.Equal(t, 100.0, hi)
	require.True(t, d.HasBounds())

	lo, hi = d.Bounds(compute)
	require.Equal(t, 1.0, lo)
	require.Equal(t, 100.0, hi)
	require.Equal(t, 1, calls) // compute only runs once
}

func TestSetBoundsOverridesComputed(t *testing.T) {
	d := New("score", Int, "")
	d.SetBounds(0, 50)
	require.True(t, d.HasBounds())

	lo, hi := d.Bounds(func() (float64, float64) { return 999, 999 })
	require.Equal(t, 0.0, lo)
	require.Equal(t, 50.0, hi)
}

func TestIsNullWithoutMask(t *testing.T) {
	d := New("score", Int, "")
	require.False(t, d.IsNull(0))
}

func TestIsNullWithMask(t *testing.T) {
	d := New("score", Int, "")
	db := rowmask.NewDenseBuilder(3)
	db.Set(1)
	d.NullMask = db.Finalize()
	require.False(t, d.IsNull(0))
	require.True(t, d.IsNull(1))
}

func TestFetchPrefersArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "score")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644))

	m, err := fileman.New(fileman.Options{})
	require.NoError(t, err)

	d := New("score", Int, path)
	handle, fd, err := d.Fetch(m, 0)
	require.NoError(t, err)
	require.NotNil(t, handle)
	require.Nil(t, fd)
	require.Equal(t, []byte{1, 2, 3, 4}, handle.Bytes)
}
