package partition

import (
	"os"
	"path/filepath"

	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/rowmask"
)

const maskFileName = "-part.msk"

// loadMask implements spec.md §4.2: reads -part.msk; a size smaller
// than nEvents is extended with 1-bits and persisted; an all-ones mask
// is deleted rather than stored; a missing file or read error defaults
// to all-ones in memory.
func loadMask(dir string, nEvents int, log ilog.Logger) *rowmask.Bitmap {
	path := filepath.Join(dir, maskFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return rowmask.NewAllOnes(nEvents)
	}

	bits := decodeMaskBits(raw, nEvents)
	if len(bits) < nEvents {
		for len(bits) < nEvents {
			bits = append(bits, true)
		}
		if werr := persistMaskBits(dir, bits); werr != nil {
			log.Warnf("partition: extending short mask %s: %v", path, werr)
		}
	}

	m := rowmask.FromBoolSlice(bits[:nEvents])
	if m.Count() == nEvents {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warnf("partition: removing all-ones mask %s: %v", path, err)
		}
	}
	return m
}

// decodeMaskBits unpacks the persisted mask byte stream as one bit per
// row, most-significant-bit first within each byte, truncated to at
// most nEvents bits.
func decodeMaskBits(raw []byte, nEvents int) []bool {
	out := make([]bool, 0, len(raw)*8)
	for _, b := range raw {
		for k := 7; k >= 0; k-- {
			if len(out) >= nEvents {
				return out
			}
			out = append(out, b&(1<<uint(k)) != 0)
		}
	}
	return out
}

func encodeMaskBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func persistMaskBits(dir string, bits []bool) error {
	return os.WriteFile(filepath.Join(dir, maskFileName), encodeMaskBits(bits), 0o644)
}

// persistMask writes m to dir's -part.msk, deleting the file instead
// when m is all-ones (spec.md §4.2).
func persistMask(dir string, m *rowmask.Bitmap) error {
	if m.Count() == m.Size() {
		err := os.Remove(filepath.Join(dir, maskFileName))
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return persistMaskBits(dir, m.ToBoolSlice())
}
