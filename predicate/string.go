package predicate

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gobwas/glob"
	gintersect "github.com/yashtewari/glob-intersection"
)

// StringEquality is spec.md §4.4's string-equality predicate, evaluated
// against a CATEGORY column's dictionary. Other column types, TEXT
// included, are rejected with an unsupported-type error.
type StringEquality struct {
	Column string
	Value  string
}

// StringIn is spec.md §4.4's multi-string `IN`.
type StringIn struct {
	Column string
	Values []string
}

// Like is spec.md §4.4's pattern predicate, compiled with
// github.com/gobwas/glob (shell-style glob, not full regex — matching
// the teacher's own use of glob for path/term patterns).
type Like struct {
	Column  string
	Pattern string
}

// Keyword is a single substring/term test against a TEXT column.
type Keyword struct {
	Column string
	Term   string
}

// AllKeywords requires every term to be present (logical AND), used for
// multi-term free-text filters.
type AllKeywords struct {
	Column string
	Terms  []string
}

// EqualityHash returns a CATEGORY equality predicate's dictionary-probe
// hash: the same xxhash that column.Dictionary.Code computes internally
// before a full string compare. The dispatcher's cost estimates do not
// call it.
func EqualityHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// CompileLike compiles a Like predicate's pattern once; callers reuse
// the returned glob.Glob across every row.
func CompileLike(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern)
}

// PatternsDisjoint reports whether two LIKE patterns can never both
// match the same string, used by estimateCost to cheaply rule out
// index/scan work when a compound predicate ANDs two disjoint LIKEs
// together. Grounded on yashtewari/glob-intersection, which the teacher
// pack vendors for exactly this glob-vs-glob disjointness check.
func PatternsDisjoint(a, b string) (bool, error) {
	// glob-intersection reads '*', '+' and '?' as quantifiers and '.' as
	// any character, so the shell-style wildcards are rewritten into that
	// dialect (and its own metacharacters escaped) before the check.
	translate := strings.NewReplacer(".", `\.`, "+", `\+`, "*", ".*", "?", ".").Replace
	overlap, err := gintersect.NonEmpty(translate(a), translate(b))
	if err != nil {
		return false, err
	}
	return !overlap, nil
}

// MatchKeyword reports whether term occurs in text (case-sensitive
// substring match, the simplest faithful reading of "single keyword").
func MatchKeyword(text, term string) bool {
	return strings.Contains(text, term)
}

// MatchAllKeywords reports whether every term occurs in text.
func MatchAllKeywords(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}
