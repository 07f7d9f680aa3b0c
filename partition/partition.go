// Package partition implements the partition lifecycle described in
// spec.md §3/§4.1-§4.10/§5: the directory-backed columnar dataset that
// owns its columns, active-row mask, RID index, and bitmap indexes, and
// answers predicate queries through the predicate dispatcher.
package partition

import (
	"os"
	"sync"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/metadata"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/predicate"
	"github.com/ibitd/ibitd/resource"
	"github.com/ibitd/ibitd/ridindex"
	"github.com/ibitd/ibitd/rowmask"
)

// Partition is a named, directory-backed columnar dataset (spec.md §3).
type Partition struct {
	Name        string
	Description string
	SwitchTime  int64 // monotonic timestamp, process-local unit

	state State

	NEvents int
	Columns []*column.Descriptor
	byName  map[string]int

	Mask *rowmask.Bitmap
	Rids *ridindex.Index

	MetaTags    []metadata.MetaTag
	ColumnShape []metadata.ShapeEntry
	MeshShape   []metadata.ShapeEntry

	activeDir string
	backupDir string

	// mu guards bookkeeping that is not the query read/write path:
	// rename, RID sort, header rewrite scheduling (spec.md §5).
	mu sync.Mutex
	// rw is the read/write lock queries take on the read side and
	// structural operations take on the write side (spec.md §5).
	rw sync.RWMutex

	manager  *fileman.Manager
	resource *resource.Store
	log      ilog.Logger
	dispatch *predicate.Dispatcher

	triggers triggerRegistry

	// copiers tracks detached background backup goroutines so Close
	// can join them before the partition's directories go away.
	copiers sync.WaitGroup

	// watch observes the active directory while a backup mirror is
	// configured; stopped by Close before copiers are joined.
	watch *fileman.DirWatch

	indexBuildNThreads int
}

// Options configures Open.
type Options struct {
	Manager  *fileman.Manager
	Resource *resource.Store
	Log      ilog.Logger

	// FillValue pads short value files up to nEvents * elementSize
	// (spec.md §3's invariant repair). Zero is the conventional fill.
	FillValue byte
}

// Open constructs a Partition from activeDir's header (spec.md §4.1).
// It fails the constructor (ErrConfiguration) on a missing or malformed
// header or a row-count overflow; the caller must not use the returned
// Partition on error. Data-level problems (short value files, mask
// length mismatch) are logged and repaired in place rather than failing
// the open, per spec.md §7.
func Open(activeDir string, opts Options) (*Partition, error) {
	if opts.Manager == nil {
		return nil, perr.New(perr.ErrConfiguration, "partition: Open requires a fileman.Manager")
	}
	if opts.Log == nil {
		opts.Log = ilog.NoOp()
	}

	h, _, err := metadata.Parse(activeDir)
	if err != nil {
		return nil, err
	}
	if h.NumberOfRows > metadata.MaxRowCount {
		return nil, perr.RowCountOverflow("Number_of_rows", h.NumberOfRows)
	}

	if len(h.Columns) != h.NumberOfColumns {
		opts.Log.Warnf("partition %s: header declares %d columns but %d column blocks were parsed",
			h.Name, h.NumberOfColumns, len(h.Columns))
	}

	nEvents := int(h.NumberOfRows)
	cols, byName := buildColumns(activeDir, h)
	if h.ColumnsSelected != nil {
		cols, byName = applyColumnSelection(cols, h.ColumnsSelected)
	}
	loadSidecars(activeDir, cols, opts.Log)
	repairColumnFiles(cols, nEvents, opts.FillValue, opts.Log)

	mask := loadMask(activeDir, nEvents, opts.Log)

	p := &Partition{
		Name:               h.Name,
		Description:        h.Description,
		NEvents:            nEvents,
		Columns:            cols,
		byName:             byName,
		Mask:               mask,
		MetaTags:           h.MetaTags,
		ColumnShape:        h.ColumnShape,
		MeshShape:          h.MeshShape,
		activeDir:          activeDir,
		backupDir:          resolveBackupDir(h, opts.Resource),
		manager:            opts.Manager,
		resource:           opts.Resource,
		log:                opts.Log,
		dispatch:           predicate.New(opts.Manager),
		indexBuildNThreads: 4,
	}
	p.Rids = loadRids(activeDir)
	if p.Rids == nil && opts.Resource != nil && opts.Resource.BoolOr(resource.PartitionKey(h.Name, resource.SuffixFillRIDs), false) {
		p.log.Infof("partition %s: no RID file found and fillRIDs is set; RIDs remain unindexed until built externally", h.Name)
	}
	p.state = resolveState(h, p, opts.Log)

	opts.Manager.RegisterCleaner(p)

	if p.backupDir != "" {
		if p.state != StateStable {
			p.makeBackupCopy()
		}
		p.watchActiveDir()
	}

	return p, nil
}

// resolveBackupDir picks the partition's backup mirror directory. The
// header's own Alternative_Directory field wins when present; otherwise
// a per-partition ShadowDir override, then the process-wide backupDir,
// are consulted. <partition>.useBackupDir can disable mirroring for one
// partition even when a process-wide backupDir is configured.
func resolveBackupDir(h *metadata.Header, res *resource.Store) string {
	if h.AlternativeDirectory != "" {
		return h.AlternativeDirectory
	}
	if res == nil {
		return ""
	}
	if !res.BoolOr(resource.PartitionKey(h.Name, resource.SuffixUseBackupDir), true) {
		return ""
	}
	if v, ok := res.String(resource.PartitionKey(h.Name, resource.SuffixShadowDir)); ok {
		return v
	}
	if v, ok := res.String(resource.KeyBackupDir); ok {
		return v
	}
	return ""
}

func resolveState(h *metadata.Header, p *Partition, log ilog.Logger) State {
	declared := ParseState(h.State)
	if p.backupDir == "" {
		if declared == StateUnknown {
			return StateStable
		}
		return declared
	}
	if backupConsistent(h.NumberOfRows, len(h.Columns), p.backupDir) {
		return StateStable
	}
	log.Infof("partition %s: backup directory inconsistent with active directory, scheduling rebuild", p.Name)
	return StateUnknown
}

// parseHeaderQuiet returns metadata.Parse's result unchanged, errors
// included; it is used only by the STABLE-state backup consistency
// check, which treats any error ("no usable backup header") the same
// as "inconsistent."
func parseHeaderQuiet(dir string) (*metadata.Header, string, error) {
	return metadata.Parse(dir)
}

func buildColumns(activeDir string, h *metadata.Header) ([]*column.Descriptor, map[string]int) {
	cols := make([]*column.Descriptor, 0, len(h.Columns))
	byName := make(map[string]int, len(h.Columns))
	for _, ch := range h.Columns {
		path := columnValuePath(activeDir, ch)
		d := column.New(ch.Name, ch.Type, path)
		d.PartitionHandle = len(cols)
		if ch.Type == column.Category {
			d.Dict = column.NewDictionary()
		}
		byName[ch.Name] = len(cols)
		cols = append(cols, d)
	}
	return cols, byName
}

func columnValuePath(activeDir string, ch metadata.ColumnHeader) string {
	suffix := ""
	if ch.Type == column.Category {
		suffix = ".int"
	}
	return activeDir + "/" + ch.Name + suffix
}

func applyColumnSelection(cols []*column.Descriptor, selected []int) ([]*column.Descriptor, map[string]int) {
	out := make([]*column.Descriptor, 0, len(selected))
	byName := make(map[string]int, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(cols) {
			continue
		}
		d := cols[idx]
		d.PartitionHandle = len(out)
		byName[d.Name] = len(out)
		out = append(out, d)
	}
	return out, byName
}

func loadRids(activeDir string) *ridindex.Index {
	ridPath := activeDir + "/-rids"
	sortedPath := activeDir + "/-rids.srt"
	ix, err := ridindex.Load(existingOr(ridPath), existingOr(sortedPath))
	if err != nil {
		return nil
	}
	return ix
}

func existingOr(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Close joins any background backup copier still running, unregisters
// the partition's cleaner, and persists the mask on every call. It takes the write lock, so it serializes
// against every in-flight query (spec.md §5: the destructor is a
// structural operation on the lock's write side).
func (p *Partition) Close() error {
	if p.watch != nil {
		p.watch.Close()
	}
	p.copiers.Wait()

	p.rw.Lock()
	p.manager.UnregisterCleaner(p)
	err := persistMask(p.activeDir, p.Mask)
	p.rw.Unlock()

	if err == nil {
		p.fireTriggers()
	}
	return err
}

// ActiveMask returns the partition's current active-row mask under the
// read lock, for callers (the self-test package) that need to run their
// own kernels directly against it rather than going through Evaluate.
func (p *Partition) ActiveMask() *rowmask.Bitmap {
	p.rw.RLock()
	defer p.rw.RUnlock()
	return p.Mask
}

// Manager returns the file manager backing this partition's columns,
// for callers (the self-test package) that fetch column values outside
// the predicate dispatcher.
func (p *Partition) Manager() *fileman.Manager {
	return p.manager
}

// RowFromRid resolves rid to a row number via the partition's loaded
// RID index; ok is false when the partition has no RID file or rid is
// unknown.
func (p *Partition) RowFromRid(rid ridindex.Rid) (row int32, ok bool) {
	p.rw.RLock()
	defer p.rw.RUnlock()
	if p.Rids == nil {
		return 0, false
	}
	return p.Rids.RowFromRid(rid)
}

// RidAt is RowFromRid's reverse: the RID for a given row, used by the
// self-test's roundtrip sample.
func (p *Partition) RidAt(row int) (ridindex.Rid, bool) {
	p.rw.RLock()
	defer p.rw.RUnlock()
	if p.Rids == nil {
		return ridindex.Rid{}, false
	}
	return p.Rids.RidAt(int32(row))
}

// Column returns the descriptor for name, or nil if unknown.
func (p *Partition) Column(name string) *column.Descriptor {
	i, ok := p.byName[name]
	if !ok {
		return nil
	}
	return p.Columns[i]
}

// TryEvict implements fileman.Cleaner: it unloads every loaded bitmap
// index and, if a soft write lock can be acquired, also drops the
// loaded RID index (spec.md §5: "in turn unloads indexes and optionally
// drops RIDs if a soft write-lock can be acquired").
func (p *Partition) TryEvict() bool {
	freed := p.unloadIndexesLocked()
	if p.rw.TryLock() {
		defer p.rw.Unlock()
		if p.Rids != nil {
			p.Rids = nil
			freed = true
		}
	}
	return freed
}

// unloadable is the small local interface col.Index is asserted against
// to reach the concrete generic index, mirroring predicate.indexedEval;
// kept separate since this package needs only the Unload half.
type unloadable interface {
	Unload()
}

func (p *Partition) unloadIndexesLocked() bool {
	freed := false
	for _, c := range p.Columns {
		if c.Index == nil {
			continue
		}
		if ix, ok := c.Index.(unloadable); ok {
			ix.Unload()
			freed = true
		}
	}
	return freed
}
