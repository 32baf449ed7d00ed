//go:build unix

// Package memseg acquires contiguous backing regions for timer stores. A
// segment is a file-backed shared mapping: its bytes survive process
// restarts, and the store laid out inside it resumes with all pending timers
// intact when the file is mapped again.
package memseg

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Segment is a writable shared mapping of a regular file.
type Segment struct {
	f     *os.File
	data  []byte
	fresh bool
}

// Open maps size bytes of the file at path, creating and sizing the file if
// it does not exist. An existing file smaller than size is refused rather
// than grown, since a short file means the caller's geometry disagrees with
// whoever created it.
func Open(path string, size int) (*Segment, error) {
	if size <= 0 {
		return nil, errors.Errorf("memseg: invalid segment size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "memseg: open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "memseg: stat %s", path)
	}
	fresh := st.Size() == 0
	if fresh {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "memseg: size %s to %d bytes", path, size)
		}
	} else if st.Size() < int64(size) {
		f.Close()
		return nil, errors.Errorf("memseg: segment %s holds %d bytes, need %d", path, st.Size(), size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "memseg: mmap %s", path)
	}
	return &Segment{f: f, data: data, fresh: fresh}, nil
}

// Bytes returns the mapped region. Valid until Close.
func (s *Segment) Bytes() []byte { return s.data }

// Fresh reports whether Open created the file, i.e. the region has never
// held a store and needs fresh initialization rather than an attach.
func (s *Segment) Fresh() bool { return s.fresh }

// Sync flushes the mapping to the file synchronously.
func (s *Segment) Sync() error {
	return errors.Wrap(unix.Msync(s.data, unix.MS_SYNC), "memseg: msync")
}

// Close unmaps the region and closes the file. The slice from Bytes must not
// be touched afterwards.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "memseg: close")
}
