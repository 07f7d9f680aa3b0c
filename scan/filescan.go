package scan

import (
	"io"

	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/rowmask"
)

// Decoder converts a little/native-endian element-sized byte slice into
// a value of T; callers pass one of the DecodeXxx helpers in decode.go.
type Decoder[T Numeric] func([]byte) T

// ScanFile implements the file-backed scan kernel variant (spec.md
// §4.5): values are not in memory, so the kernel issues large
// sequential reads guided by mask's range-run iterator, doing one
// seek + bulk read per contiguous run, split into reads of at most
// fileman.ArrayReadHint bytes (a run of length one degenerates to an
// individual seek, so both cases named in the spec fall out of the
// same loop).
func ScanFile[T Numeric](fd *fileman.FD, m *fileman.Manager, elemSize int, decode Decoder[T], pred Predicate[T], mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	b := newBuilder(mask.Size(), mask.Count())
	chunkRows := max(fileman.ArrayReadHint/elemSize, 1)
	buf := make([]byte, chunkRows*elemSize)

	for _, r := range mask.RangeRuns() {
		for start := r.Start; start < r.End; start += chunkRows {
			n := min(r.End-start, chunkRows)
			nbytes := n * elemSize
			chunk := buf[:nbytes]

			if _, err := fd.File.Seek(int64(start)*int64(elemSize), io.SeekStart); err != nil {
				return nil, perr.Wrap(perr.ErrTransient, err, "scan: seek to row %d", start)
			}
			if _, err := io.ReadFull(fd.File, chunk); err != nil {
				return nil, perr.Wrap(perr.ErrTransient, err, "scan: read %d bytes at row %d", nbytes, start)
			}
			m.NotePageAccess(fd.Path, int64(nbytes))

			for k := 0; k < n; k++ {
				v := decode(chunk[k*elemSize : (k+1)*elemSize])
				if pred(v) {
					b.set(start + k)
				}
			}
		}
	}

	return b.finalize(), nil
}
