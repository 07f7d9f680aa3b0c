package predicate

import (
	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/rowmask"
)

// evalText decodes each masked row's TEXT/BLOB value and applies match,
// returning the hit bitmap. Offsets holds one start position per row
// plus a trailing sentinel equal to len(raw); an offsets array without
// the sentinel (len(Offsets) == rowCount) falls back to len(raw) for the
// last row.
func evalText(col *column.Descriptor, raw []byte, mask *rowmask.Bitmap, match func(string) bool) *rowmask.Bitmap {
	dense := mask.Size()>>8 < mask.Count()
	var db *rowmask.DenseBuilder
	var sb *rowmask.SparseBuilder
	if dense {
		db = rowmask.NewDenseBuilder(mask.Size())
	} else {
		sb = rowmask.NewSparseBuilder(mask.Size())
	}

	offsets := col.Offsets
	end := func(i int) int64 {
		if i+1 < len(offsets) {
			return offsets[i+1]
		}
		return int64(len(raw))
	}

	mask.ForEachSetBit(func(i int) {
		if i >= len(offsets) {
			return
		}
		s := string(raw[offsets[i]:end(i)])
		if match(s) {
			if dense {
				db.Set(i)
			} else {
				sb.Add(i)
			}
		}
	})

	if dense {
		return db.Finalize()
	}
	return sb.Finalize()
}

func (d *Dispatcher) fetchText(col *column.Descriptor) ([]byte, error) {
	if !col.Type.IsVariableLength() {
		return nil, perr.UnsupportedType(col.Name, col.Type)
	}
	h, err := col.FetchArray(d.Manager)
	if err != nil {
		return nil, err
	}
	return h.Bytes, nil
}

// EvaluateLike implements evaluate for the `LIKE` pattern predicate on
// TEXT columns.
func (d *Dispatcher) EvaluateLike(col *column.Descriptor, p Like, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	raw, err := d.fetchText(col)
	if err != nil {
		return nil, err
	}
	g, err := CompileLike(p.Pattern)
	if err != nil {
		return nil, perr.Wrap(perr.ErrQuery, err, "predicate: compiling LIKE pattern %q", p.Pattern)
	}
	return evalText(col, raw, mask, g.Match), nil
}

// EstimateCostLike prices a LIKE predicate. Text columns never carry a
// bitmap index in this implementation, so a single pattern costs the
// candidate population like any other scan; a pattern that fails to
// compile costs the same (the error surfaces at Evaluate time).
func (d *Dispatcher) EstimateCostLike(col *column.Descriptor, _ Like, mask *rowmask.Bitmap) float64 {
	return float64(mask.Count())
}

// EvaluateKeyword implements evaluate for the single-keyword predicate.
func (d *Dispatcher) EvaluateKeyword(col *column.Descriptor, k Keyword, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	raw, err := d.fetchText(col)
	if err != nil {
		return nil, err
	}
	return evalText(col, raw, mask, func(s string) bool { return MatchKeyword(s, k.Term) }), nil
}

// EvaluateAllKeywords implements evaluate for the all-keywords predicate.
func (d *Dispatcher) EvaluateAllKeywords(col *column.Descriptor, k AllKeywords, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	raw, err := d.fetchText(col)
	if err != nil {
		return nil, err
	}
	return evalText(col, raw, mask, func(s string) bool { return MatchAllKeywords(s, k.Terms) }), nil
}
