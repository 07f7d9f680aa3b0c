// Package metadata implements the plain-text header store from
// spec.md §4.1: parsing and writing a partition's `-part.txt` (or
// legacy `table.tdc`) header file and its per-column blocks.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/perr"
)

// MaxRowCount is spec.md §6's size limit: nEvents is bounded by 2^31-1.
const MaxRowCount = (1 << 31) - 1

// Header is a parsed partition header.
type Header struct {
	Name                 string
	Description          string
	NumberOfRows         int64
	NumberOfColumns      int
	Timestamp            string
	State                string
	AlternativeDirectory string
	Index                string

	MetaTags    []MetaTag
	ColumnShape []ShapeEntry
	MeshShape   []ShapeEntry

	// ColumnsSelected, when non-nil, lists the positional column
	// indices to keep (spec.md §9's documented intent for
	// Columns_Selected).
	ColumnsSelected []int

	Columns []ColumnHeader
}

// ColumnHeader is one per-column header block.
type ColumnHeader struct {
	Name string
	Type column.Type
}

const (
	beginHeader = "BEGIN HEADER"
	endHeader   = "END HEADER"
	beginColumn = "BEGIN COLUMN"
	endColumn   = "END COLUMN"
)

// headerFileNames are tried in order; the legacy name is recognized but
// not preferred (spec.md §4.1: "-part.txt ... legacy name table.tdc
// also recognized").
func headerFileNames(dir string) []string {
	return []string{
		filepath.Join(dir, "-part.txt"),
		filepath.Join(dir, "table.tdc"),
	}
}

// Parse reads and parses the partition header in dir. It fails with
// perr.MetadataMissing if neither header file name exists, and with
// perr.RowCountOverflow if Number_of_rows exceeds MaxRowCount.
// Column-count mismatches between Number_of_columns and the actual
// parsed column blocks are logged by the caller and tolerated here
// (spec.md §4.1: "soft-fails ... on extra/missing trailing columns").
func Parse(dir string) (*Header, string, error) {
	var path string
	for _, p := range headerFileNames(dir) {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, "", perr.MetadataMissing(dir)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", perr.Wrap(perr.ErrConfiguration, err, "metadata: reading %s", path)
	}

	lines := strings.Split(string(raw), "\n")
	headerBlock, rest, err := extractBlock(lines, beginHeader, endHeader)
	if err != nil {
		return nil, "", perr.Wrap(perr.ErrConfiguration, err, "metadata: parsing header block in %s", path)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, []byte(strings.Join(headerBlock, "\n")))
	if err != nil {
		return nil, "", perr.Wrap(perr.ErrConfiguration, err, "metadata: parsing header fields in %s", path)
	}
	sec := cfg.Section("")

	h := &Header{
		Name:                 sec.Key("Name").String(),
		Description:          sec.Key("Description").String(),
		Timestamp:            sec.Key("Timestamp").String(),
		State:                sec.Key("State").String(),
		AlternativeDirectory: sec.Key("Alternative_Directory").String(),
		Index:                sec.Key("index").String(),
		MetaTags:             parseMetaTags(sec.Key("metaTags").String()),
		ColumnShape:          parseShape(sec.Key("columnShape").String()),
		MeshShape:            parseShape(sec.Key("meshShape").String()),
		ColumnsSelected:      parseColumnsSelectedField(sec),
	}

	if v := sec.Key("Number_of_rows").String(); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, "", perr.Wrap(perr.ErrConfiguration, err, "metadata: Number_of_rows in %s", path)
		}
		if n > MaxRowCount {
			return nil, "", perr.RowCountOverflow("Number_of_rows", n)
		}
		h.NumberOfRows = n
	}
	if v := sec.Key("Number_of_columns").String(); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, "", perr.Wrap(perr.ErrConfiguration, err, "metadata: Number_of_columns in %s", path)
		}
		h.NumberOfColumns = n
	}

	cols, err := parseColumnBlocks(rest)
	if err != nil {
		return nil, "", perr.Wrap(perr.ErrData, err, "metadata: parsing column blocks in %s", path)
	}
	h.Columns = cols

	return h, path, nil
}

// parseColumnsSelectedField reads Columns_Selected if present.
func parseColumnsSelectedField(sec *ini.Section) []int {
	v := sec.Key("Columns_Selected").String()
	if v == "" {
		return nil
	}
	return parseColumnsSelected(v)
}

// extractBlock finds the first `begin`..`end` bracket (case-insensitive,
// trimmed) in lines and returns the lines strictly between them plus
// every line after `end` (the per-column blocks follow the header
// block in spec.md §4.1's layout).
func extractBlock(lines []string, begin, end string) (block, rest []string, err error) {
	startIdx, endIdx := -1, -1
	for i, l := range lines {
		t := strings.ToUpper(strings.TrimSpace(l))
		if startIdx < 0 && t == begin {
			startIdx = i
			continue
		}
		if startIdx >= 0 && t == end {
			endIdx = i
			break
		}
	}
	if startIdx < 0 || endIdx < 0 {
		return nil, nil, fmt.Errorf("missing %s/%s block", begin, end)
	}
	return lines[startIdx+1 : endIdx], lines[endIdx+1:], nil
}

// parseColumnBlocks parses every `BEGIN COLUMN`/`END COLUMN` block in
// lines, in order. A column block with an unrecognized Type is left out
// of the result entirely rather than failing the whole parse, matching
// spec.md §4.1's soft-fail posture for column-level trouble.
func parseColumnBlocks(lines []string) ([]ColumnHeader, error) {
	var out []ColumnHeader
	for i := 0; i < len(lines); i++ {
		t := strings.ToUpper(strings.TrimSpace(lines[i]))
		if t != beginColumn {
			continue
		}
		j := i + 1
		for j < len(lines) && strings.ToUpper(strings.TrimSpace(lines[j])) != endColumn {
			j++
		}
		if j >= len(lines) {
			return out, fmt.Errorf("unterminated %s block", beginColumn)
		}
		cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, []byte(strings.Join(lines[i+1:j], "\n")))
		if err != nil {
			return out, err
		}
		sec := cfg.Section("")
		name := sec.Key("Name").String()
		typ, ok := column.ParseType(strings.ToUpper(strings.TrimSpace(sec.Key("Type").String())))
		if !ok {
			i = j
			continue
		}
		out = append(out, ColumnHeader{Name: name, Type: typ})
		i = j
	}
	return out, nil
}
