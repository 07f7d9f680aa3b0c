package selftest

import (
	"fmt"
	"math/rand"

	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/rowmask"
)

// RunRidRoundtrip implements spec.md §4.9's "RID → row-number → RID
// roundtrip is identity" check over n rows sampled uniformly from the
// partition's active rows.
func RunRidRoundtrip(p *partition.Partition, n int, rng *rand.Rand) (ok bool, failures []string) {
	rows := sampleActiveRows(p.ActiveMask(), n, rng)
	if len(rows) == 0 {
		return true, nil
	}

	ok = true
	for _, row := range rows {
		rid, found := p.RidAt(row)
		if !found {
			ok = false
			failures = append(failures, fmt.Sprintf("row %d: no RID found", row))
			continue
		}
		back, found := p.RowFromRid(rid)
		if !found || int(back) != row {
			ok = false
			failures = append(failures, fmt.Sprintf(
				"row %d -> rid %+v -> row %d (found=%v): not identity", row, rid, back, found))
		}
	}
	return ok, failures
}

func sampleActiveRows(mask *rowmask.Bitmap, n int, rng *rand.Rand) []int {
	var active []int
	for i := 0; i < mask.Size(); i++ {
		if mask.Test(i) {
			active = append(active, i)
		}
	}
	if len(active) == 0 || n <= 0 {
		return nil
	}
	if n >= len(active) {
		return active
	}
	rng.Shuffle(len(active), func(i, j int) { active[i], active[j] = active[j], active[i] })
	return active[:n]
}
