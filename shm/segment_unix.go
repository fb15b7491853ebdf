//go:build unix

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Create allocates a zero-filled shared segment of the given size. name is a
// debug label only.
func Create(name string, size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: segment size must be positive, got %d", size)
	}
	f, err := createFile(name)
	if err != nil {
		return nil, fmt.Errorf("shm: create segment %q: %w", name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: size segment %q: %w", name, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: map segment %q: %w", name, err)
	}
	return &Segment{name: name, f: f, data: data}, nil
}

// Attach maps an inherited segment descriptor in a child process. The segment
// takes ownership of f.
func Attach(f *os.File, size int) (*Segment, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: attach fd %d: %w", f.Fd(), err)
	}
	return &Segment{name: f.Name(), f: f, data: data}, nil
}

// Close unmaps the segment and closes the backing descriptor. Safe to call
// more than once.
func (s *Segment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
