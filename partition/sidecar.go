package partition

import (
	"encoding/binary"
	"os"
	"strings"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/ilog"
)

// loadSidecars populates each column's side structures from disk:
// the ".sp" 64-bit start-offset file for TEXT/BLOB columns and the
// ".dic" newline-separated dictionary file for CATEGORY columns
// (code = line number, matching the codes stored in the ".int" value
// file). A missing side file leaves the column usable for fetches but
// makes string-level predicates on it match nothing; that is logged
// rather than failed, per spec.md §7's data-error posture.
func loadSidecars(activeDir string, cols []*column.Descriptor, log ilog.Logger) {
	for _, c := range cols {
		switch {
		case c.Type.IsVariableLength():
			offsets, err := readOffsets(activeDir + "/" + c.Name + ".sp")
			if err != nil {
				log.Warnf("partition: no offsets side file for column %s: %v", c.Name, err)
				continue
			}
			c.Offsets = offsets
		case c.Type == column.Category:
			raw, err := os.ReadFile(activeDir + "/" + c.Name + ".dic")
			if err != nil {
				log.Warnf("partition: no dictionary file for column %s: %v", c.Name, err)
				continue
			}
			lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
			c.Dict = column.LoadFrom(lines)
		}
	}
}

func readOffsets(path string) ([]int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n := len(raw) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.NativeEndian.Uint64(raw[i*8 : (i+1)*8]))
	}
	return out, nil
}

// repairColumnFiles enforces the spec.md §3 invariant that every
// fixed-width value file has length >= nEvents * elementSize: a shorter
// file is logged and padded in place with fill bytes up to the
// authoritative row count (spec.md §7's pad-to-nEvents repair). Pad
// failures are logged, never fatal.
func repairColumnFiles(cols []*column.Descriptor, nEvents int, fill byte, log ilog.Logger) {
	for _, c := range cols {
		elem := c.Type.ElementSize()
		if elem == 0 {
			continue
		}
		want := int64(nEvents) * int64(elem)
		fi, err := os.Stat(c.ValuePath)
		if err != nil {
			log.Warnf("partition: missing value file for column %s: %v", c.Name, err)
			continue
		}
		if fi.Size() >= want {
			continue
		}
		log.Warnf("partition: value file for column %s is %d bytes, need %d; padding",
			c.Name, fi.Size(), want)
		if err := padFile(c.ValuePath, want-fi.Size(), fill); err != nil {
			log.Warnf("partition: padding %s: %v", c.ValuePath, err)
		}
	}
}

func padFile(path string, n int64, fill byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = fill
	}
	for n > 0 {
		chunk := int64(len(buf))
		if n < chunk {
			chunk = n
		}
		if _, err := f.Write(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
