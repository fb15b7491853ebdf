//go:build unix && !linux

package shm

import "os"

// createFile backs segments with an unlinked temp file. The unlink keeps the
// filesystem clean; the descriptor keeps the pages alive.
func createFile(name string) (*os.File, error) {
	f, err := os.CreateTemp("", "shm-"+name+"-*")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
