package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniqueRenameMovesAside(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "part")
	require.NoError(t, os.Mkdir(old, 0o755))

	newPath, err := uniqueRename(dir, old, "part")
	require.NoError(t, err)
	require.NotEqual(t, old, newPath)

	_, err = os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(newPath)
	require.NoError(t, err)
}

func TestUniqueRenameDistinctNames(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		old := filepath.Join(dir, "part")
		require.NoError(t, os.Mkdir(old, 0o755))
		newPath, err := uniqueRename(dir, old, "part")
		require.NoError(t, err)
		require.False(t, seen[newPath])
		seen[newPath] = true
	}
}
