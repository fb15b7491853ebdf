//go:build !unix

package shm

import "os"

// Create is unavailable on this platform.
func Create(name string, size int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Attach is unavailable on this platform.
func Attach(f *os.File, size int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Close is a no-op on this platform.
func (s *Segment) Close() error { return nil }
