//go:build linux

package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

// createFile backs segments with an anonymous memfd: no filesystem entry, no
// disk I/O, freed when the last descriptor closes.
func createFile(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), name), nil
}
