package partition

import (
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/klauspost/compress/zstd"

	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/resource"
)

// makeBackupCopy detaches a goroutine that mirrors p's active directory
// into its backup directory, holding the partition's read lock for the
// duration (spec.md §5). Go has no per-goroutine signal mask, so the
// "block SIGINT/SIGHUP for the duration" intent from spec.md §5 is
// approximated by temporarily installing a no-op signal.Notify for
// those two signals around the copy and restoring the prior disposition
// afterward — the closest analogue Go's process-wide signal model
// offers to pthread_sigmask on one thread.
func (p *Partition) makeBackupCopy() {
	if p.backupDir == "" {
		return
	}
	p.copiers.Add(1)
	go func() {
		defer p.copiers.Done()
		ignored := make(chan os.Signal, 1)
		signal.Notify(ignored, syscall.SIGINT, syscall.SIGHUP)
		defer signal.Stop(ignored)

		p.rw.RLock()
		defer p.rw.RUnlock()

		if err := p.copyActiveToBackup(); err != nil {
			p.log.Warnf("partition %s: background backup copy failed: %v", p.Name, err)
			return
		}
		p.log.Infof("partition %s: backup copy complete", p.Name)
	}()
}

func (p *Partition) copyActiveToBackup() error {
	compressed := p.resource != nil && p.resource.BoolOr(resource.PartitionKey(p.Name, resource.SuffixCompressBackup), false)

	entries, err := os.ReadDir(p.activeDir)
	if err != nil {
		return perr.Wrap(perr.ErrIO, err, "partition: reading active dir %s", p.activeDir)
	}
	if err := os.MkdirAll(p.backupDir, 0o755); err != nil {
		return perr.Wrap(perr.ErrIO, err, "partition: creating backup dir %s", p.backupDir)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(p.activeDir, e.Name())
		dstName := e.Name()
		if compressed {
			dstName += ".zst"
		}
		dst := filepath.Join(p.backupDir, dstName)
		if err := copyFile(src, dst, compressed); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies src to dst, optionally zstd-compressing it. The
// active directory's own on-disk format is never compressed — spec.md
// §6 mandates its byte-for-byte layout; compression only ever applies
// to the backup mirror, gated by <partition>.compressBackup.
func copyFile(src, dst string, compressed bool) error {
	in, err := os.Open(src)
	if err != nil {
		return perr.Wrap(perr.ErrIO, err, "partition: opening %s for backup", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return perr.Wrap(perr.ErrIO, err, "partition: creating backup file %s", dst)
	}
	defer out.Close()

	if !compressed {
		if _, err := io.Copy(out, in); err != nil {
			return perr.Wrap(perr.ErrIO, err, "partition: copying %s to %s", src, dst)
		}
		return nil
	}

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return perr.Wrap(perr.ErrIO, err, "partition: building zstd writer for %s", dst)
	}
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return perr.Wrap(perr.ErrIO, err, "partition: compressing %s to %s", src, dst)
	}
	return zw.Close()
}

// watchActiveDir reacts to external changes in the active directory by
// re-checking backup consistency and re-mirroring when the two have
// drifted, instead of polling (spec.md §4.3/§5). Watch setup failure is
// logged and degrades to the open-time copy only. The watcher is
// stopped by Close, which joins the goroutine through p.copiers.
func (p *Partition) watchActiveDir() {
	dw, err := p.manager.WatchDir(p.activeDir)
	if err != nil {
		p.log.Warnf("partition %s: watching %s: %v", p.Name, p.activeDir, err)
		return
	}
	p.watch = dw
	p.copiers.Add(1)
	go func() {
		defer p.copiers.Done()
		for range dw.Events() {
			if backupConsistent(int64(p.NEvents), len(p.Columns), p.backupDir) {
				continue
			}
			p.rw.RLock()
			err := p.copyActiveToBackup()
			p.rw.RUnlock()
			if err != nil {
				p.log.Warnf("partition %s: backup re-mirror failed: %v", p.Name, err)
			}
		}
	}()
}

// backupConsistent implements spec.md §4.10's STABLE-state check: a
// backup directory is consistent with the active directory when both
// headers report the same row count and column count.
func backupConsistent(activeRows int64, activeCols int, backupDir string) bool {
	h, _, err := parseHeaderQuiet(backupDir)
	if err != nil {
		return false
	}
	return h.NumberOfRows == activeRows && len(h.Columns) == activeCols
}
