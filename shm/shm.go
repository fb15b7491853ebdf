// Package shm provides cross-process shared memory segments for the
// process-parallel batch strategy. A segment is a shared file mapping: the
// parent creates it (memfd on Linux, an unlinked temp file on other unixes),
// hands the descriptor to child processes over fd inheritance, and each child
// maps the same physical pages with Attach. Bytes returns a live view over
// the mapping, never a copy; the backing file keeps the memory alive for as
// long as any process holds the descriptor.
package shm

import (
	"errors"
	"os"
)

// ErrUnsupported is returned by Create and Attach on platforms without
// shared-mapping and descriptor-inheritance semantics.
var ErrUnsupported = errors.New("shm: shared memory segments are not supported on this platform")

// Segment is a shared memory block backed by a file mapping.
type Segment struct {
	name   string
	f      *os.File
	data   []byte
	closed bool
}

// Name returns the debug label the segment was created with.
func (s *Segment) Name() string { return s.name }

// Size returns the mapped size in bytes.
func (s *Segment) Size() int { return len(s.data) }

// Bytes returns the live mapping. Writes are visible to every process that
// has the segment mapped.
func (s *Segment) Bytes() []byte { return s.data }

// File returns the backing file, for passing to child processes via
// exec.Cmd ExtraFiles.
func (s *Segment) File() *os.File { return s.f }
