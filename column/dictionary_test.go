package column

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternAndLookup(t *testing.T) {
	d := NewDictionary()
	a := d.Intern("alpha")
	b := d.Intern("beta")
	require.Equal(t, a, d.Intern("alpha")) // re-interning returns the same code

	s, ok := d.String(a)
	require.True(t, ok)
	require.Equal(t, "alpha", s)

	s, ok = d.String(b)
	require.True(t, ok)
	require.Equal(t, "beta", s)

	_, ok = d.String(99)
	require.False(t, ok)

	code, ok := d.Code("beta")
	require.True(t, ok)
	require.Equal(t, b, code)

	_, ok = d.Code("gamma")
	require.False(t, ok)

	require.Equal(t, 2, d.Len())
}

func TestLoadFromPreservesCodeOrder(t *testing.T) {
	d := LoadFrom([]string{"x", "y", "z"})
	require.Equal(t, 3, d.Len())

	code, ok := d.Code("y")
	require.True(t, ok)
	require.Equal(t, int32(1), code)

	s, ok := d.String(2)
	require.True(t, ok)
	require.Equal(t, "z", s)
}

func TestRequireCategory(t *testing.T) {
	require.NoError(t, RequireCategory("c", Category))
	require.Error(t, RequireCategory("c", Int))
}
