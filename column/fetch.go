package column

import "github.com/ibitd/ibitd/fileman"

// Fetch implements the selection policy from spec.md §4.3: array fetch
// is attempted first and returned as a *fileman.Handle; the
// file-descriptor path is the fallback when the array allocation fails
// or the column's file exceeds maxArrayBytes (0 means "no limit, always
// prefer array"). Exactly one of the two return handles is non-nil on
// success.
func (d *Descriptor) Fetch(m *fileman.Manager, maxArrayBytes int64) (*fileman.Handle, *fileman.FD, error) {
	if maxArrayBytes > 0 {
		if size, err := m.Stat(d.ValuePath); err == nil && size > maxArrayBytes {
			fd, err := d.FetchFD(m, fileman.MmapLarge)
			if err != nil {
				return nil, nil, err
			}
			return nil, fd, nil
		}
	}

	h, err := d.FetchArray(m)
	if err == nil {
		return h, nil, nil
	}

	fd, ferr := d.FetchFD(m, fileman.PreferRead)
	if ferr != nil {
		return nil, nil, ferr
	}
	return nil, fd, nil
}

// FetchArray requests the full column as a decoded buffer from the file
// manager (spec.md §4.3's array-fetch path). The returned bytes are
// read-only; callers must not mutate them.
func (d *Descriptor) FetchArray(m *fileman.Manager) (*fileman.Handle, error) {
	return m.Array(d.ValuePath)
}

// FetchFD obtains a read-only file-descriptor handle (spec.md §4.3's
// fallback path); the scan kernel reads it in buffered chunks sized to
// fileman.ArrayReadHint.
func (d *Descriptor) FetchFD(m *fileman.Manager, pref fileman.AccessPreference) (*fileman.FD, error) {
	return m.FileDescriptor(d.ValuePath, pref)
}
