//go:build unix

package shm

import (
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"
	"golang.org/x/sys/unix"
)

func TestCreateAndWrite(t *testing.T) {
	seg, err := Create("test", 4096)
	assert.NoError(t, err)
	defer seg.Close()

	assert.Equal(t, 4096, seg.Size())
	for _, b := range seg.Bytes() {
		assert.Equal(t, byte(0), b)
	}

	seg.Bytes()[0] = 0xAB
	seg.Bytes()[4095] = 0xCD
	assert.Equal(t, byte(0xAB), seg.Bytes()[0])
}

func TestAttachSeesWrites(t *testing.T) {
	seg, err := Create("shared", 64)
	assert.NoError(t, err)
	defer seg.Close()

	copy(seg.Bytes(), []byte("written by creator"))

	// a second mapping over a duplicated descriptor, as an inheriting child
	// process would make
	fd, err := unix.Dup(int(seg.File().Fd()))
	assert.NoError(t, err)
	other, err := Attach(os.NewFile(uintptr(fd), "dup"), seg.Size())
	assert.NoError(t, err)
	defer other.Close()

	assert.Equal(t, "written by creator", string(other.Bytes()[:18]))

	other.Bytes()[0] = 'W'
	assert.Equal(t, byte('W'), seg.Bytes()[0])
}

func TestCreateRejectsBadSize(t *testing.T) {
	_, err := Create("bad", 0)
	assert.Error(t, err)
	_, err = Create("bad", -1)
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	seg, err := Create("closeme", 16)
	assert.NoError(t, err)
	assert.NoError(t, seg.Close())
	assert.NoError(t, seg.Close())
}
