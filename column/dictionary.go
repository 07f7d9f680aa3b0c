package column

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	patricia "github.com/tchap/go-patricia/v2/patricia"

	"github.com/ibitd/ibitd/perr"
)

// Dictionary is the string<->integer-code table backing a CATEGORY
// column (spec.md §3: "CATEGORY is an integer-encoded dictionary
// string"). Lookups by string use a patricia trie (prefix-sharing,
// grounded on ast/index.go's frequency-map approach to indexing rule
// values, generalized here to a string dictionary); a hash probe with
// xxhash short-circuits misses before walking the trie.
type Dictionary struct {
	mu      sync.RWMutex
	trie    *patricia.Trie
	byCode  []string
	seen    map[uint64]struct{}
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		trie: patricia.NewTrie(),
		seen: map[uint64]struct{}{},
	}
}

// Code returns the integer code for s, and whether it is present.
func (d *Dictionary) Code(s string) (int32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h := xxhash.Sum64String(s)
	if _, ok := d.seen[h]; !ok {
		return 0, false
	}
	item := d.trie.Get(patricia.Prefix(s))
	if item == nil {
		return 0, false
	}
	return item.(int32), true
}

// String returns the dictionary string for code, and whether it is
// present.
func (d *Dictionary) String(code int32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if code < 0 || int(code) >= len(d.byCode) {
		return "", false
	}
	return d.byCode[code], true
}

// Intern returns the code for s, inserting it with a new code if not
// already present.
func (d *Dictionary) Intern(s string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := xxhash.Sum64String(s)
	if _, ok := d.seen[h]; ok {
		if item := d.trie.Get(patricia.Prefix(s)); item != nil {
			return item.(int32)
		}
	}
	code := int32(len(d.byCode))
	d.byCode = append(d.byCode, s)
	d.trie.Insert(patricia.Prefix(s), code)
	d.seen[h] = struct{}{}
	return code
}

// Len returns the number of distinct dictionary entries.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byCode)
}

// LoadFrom rebuilds the dictionary from an ordered slice of strings
// (code == index), used when reading a CATEGORY column's dictionary
// side file at open time.
func LoadFrom(values []string) *Dictionary {
	d := NewDictionary()
	for _, v := range values {
		d.Intern(v)
	}
	return d
}

// RequireCategory returns perr.UnsupportedType if t is not Category;
// used by predicate/barrel code paths that only make sense for
// dictionary-encoded columns.
func RequireCategory(name string, t Type) error {
	if t != Category {
		return perr.UnsupportedType(name, t)
	}
	return nil
}
