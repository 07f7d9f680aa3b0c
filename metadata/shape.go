package metadata

import (
	"strconv"
	"strings"
)

// ShapeEntry is one element of a columnShape/meshShape list: either a
// bare integer (Name == "") or a name=integer pair (spec.md §4.1/§6).
type ShapeEntry struct {
	Name string
	Size int
}

// parseShape parses a parenthesized comma-separated list such as
// "(10,20,30)" or "(x=10,y=20)" into a slice of ShapeEntry. An empty or
// malformed value yields a nil slice, never an error: shape metadata is
// purely advisory (spec.md §3: "mesh shape ... purely advisory").
func parseShape(raw string) []ShapeEntry {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]ShapeEntry, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i := strings.IndexByte(p, '='); i >= 0 {
			name := strings.TrimSpace(p[:i])
			n, err := strconv.Atoi(strings.TrimSpace(p[i+1:]))
			if err != nil {
				continue
			}
			out = append(out, ShapeEntry{Name: name, Size: n})
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, ShapeEntry{Size: n})
	}
	return out
}

func formatShape(entries []ShapeEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		if e.Name != "" {
			parts[i] = e.Name + "=" + strconv.Itoa(e.Size)
		} else {
			parts[i] = strconv.Itoa(e.Size)
		}
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// MetaTag is a single (name, value) pair from the header's metaTags
// field (spec.md §3: queryable as if a single-value CATEGORY column).
type MetaTag struct {
	Name  string
	Value string
}

// parseMetaTags parses "key=value,key2=value2" or "key=value;key2=value2"
// (spec.md §4.1: "separated by commas or semicolons") into an ordered
// list, preserving source order since meta tags are an ordered list
// per spec.md §3.
func parseMetaTags(raw string) []MetaTag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]MetaTag, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		i := strings.IndexByte(f, '=')
		if i < 0 {
			out = append(out, MetaTag{Name: f})
			continue
		}
		out = append(out, MetaTag{Name: strings.TrimSpace(f[:i]), Value: strings.TrimSpace(f[i+1:])})
	}
	return out
}

func formatMetaTags(tags []MetaTag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Name + "=" + t.Value
	}
	return strings.Join(parts, ",")
}

// parseColumnsSelected implements spec.md §9's documented intent for
// Columns_Selected: "keep only listed positional indices", given as a
// comma-separated list of bare indices or inclusive ranges ("0,2,4-6").
// The source's inverted guard (§9's open question) is not transcribed;
// this always applies the filter when the field is present.
func parseColumnsSelected(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i > 0 {
			lo, errLo := strconv.Atoi(strings.TrimSpace(part[:i]))
			hi, errHi := strconv.Atoi(strings.TrimSpace(part[i+1:]))
			if errLo != nil || errHi != nil || hi < lo {
				continue
			}
			for n := lo; n <= hi; n++ {
				out = append(out, n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
