package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ibitd/ibitd/perr"
)

// maxRenameAttempts bounds the duplicate-name rename loop. spec.md §9's
// open question notes the source loops forever appending a time-beat
// plus random numbers; this resolves it with a bounded retry that
// returns a typed error instead of hanging.
const maxRenameAttempts = 8

// uniqueRename renames oldPath to a name derived from base that does
// not already exist under dir, trying a monotonic time-beat suffix
// first and falling back to a UUID salt after repeated collisions.
func uniqueRename(dir, oldPath, base string) (string, error) {
	for attempt := 0; attempt < maxRenameAttempts; attempt++ {
		var candidate string
		if attempt < maxRenameAttempts/2 {
			candidate = fmt.Sprintf("%s.%d", base, time.Now().UnixNano())
		} else {
			candidate = fmt.Sprintf("%s.%s", base, uuid.NewString())
		}
		newPath := filepath.Join(dir, candidate)
		if _, err := os.Stat(newPath); err == nil {
			continue // collision, retry
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", perr.Wrap(perr.ErrIO, err, "partition: renaming %s to %s", oldPath, newPath)
		}
		return newPath, nil
	}
	return "", perr.New(perr.ErrIO, "partition: could not find a unique name for %s after %d attempts", base, maxRenameAttempts)
}
