package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileLikeMatches(t *testing.T) {
	g, err := CompileLike("foo*bar")
	require.NoError(t, err)
	require.True(t, g.Match("foo-baz-bar"))
	require.False(t, g.Match("foobaz"))
}

func TestMatchKeyword(t *testing.T) {
	require.True(t, MatchKeyword("the quick brown fox", "quick"))
	require.False(t, MatchKeyword("the quick brown fox", "slow"))
}

func TestMatchAllKeywords(t *testing.T) {
	require.True(t, MatchAllKeywords("the quick brown fox", []string{"quick", "fox"}))
	require.False(t, MatchAllKeywords("the quick brown fox", []string{"quick", "slow"}))
}

func TestEqualityHashIsDeterministic(t *testing.T) {
	require.Equal(t, EqualityHash("abc"), EqualityHash("abc"))
	require.NotEqual(t, EqualityHash("abc"), EqualityHash("abd"))
}

func TestPatternsDisjoint(t *testing.T) {
	disjoint, err := PatternsDisjoint("foo*", "bar*")
	require.NoError(t, err)
	require.True(t, disjoint)

	overlap, err := PatternsDisjoint("foo*", "f*")
	require.NoError(t, err)
	require.False(t, overlap)
}
