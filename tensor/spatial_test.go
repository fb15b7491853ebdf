package tensor

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

// 2x3 plane:
//
//	1 2 3
//	4 5 6
func plane23() *Dense {
	return FromFloat32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
}

func TestSwapAxes01(t *testing.T) {
	got, err := SwapAxes01(plane23())
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.Float32s())
}

func TestFlip(t *testing.T) {
	ud, err := Flip(plane23(), 0)
	assert.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6, 1, 2, 3}, ud.Float32s())

	lr, err := Flip(plane23(), 1)
	assert.NoError(t, err)
	assert.Equal(t, []float32{3, 2, 1, 6, 5, 4}, lr.Float32s())

	_, err = Flip(plane23(), 2)
	assert.Error(t, err)
}

func TestRot90(t *testing.T) {
	// counter-clockwise quarter turn of
	//  1 2 3      3 6
	//  4 5 6  ->  2 5
	//             1 4
	got, err := Rot90(plane23(), 1)
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got.Shape())
	assert.Equal(t, []float32{3, 6, 2, 5, 1, 4}, got.Float32s())

	// four quarter turns is the identity
	full, err := Rot90(plane23(), 4)
	assert.NoError(t, err)
	assert.True(t, Equal(plane23(), full))

	// negative turns wrap
	neg, err := Rot90(plane23(), -3)
	assert.NoError(t, err)
	assert.True(t, Equal(got, neg))
}

func TestCrop2D(t *testing.T) {
	got, err := Crop2D(plane23(), 0, 1, 2, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 2}, got.Shape())
	assert.Equal(t, []float32{2, 3, 5, 6}, got.Float32s())

	_, err = Crop2D(plane23(), 1, 1, 2, 2)
	assert.Error(t, err)
}

func TestShift2D(t *testing.T) {
	got, err := Shift2D(plane23(), 1, 1)
	assert.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0, 1, 2}, got.Float32s())

	id, err := Shift2D(plane23(), 0, 0)
	assert.NoError(t, err)
	assert.True(t, Equal(plane23(), id))
}

func TestSpatialKeepsTrailingBlock(t *testing.T) {
	// shape (2,2,2): per-pixel block of two channels must move as a unit
	d := FromFloat32([]float32{
		1, 10, 2, 20,
		3, 30, 4, 40,
	}, 2, 2, 2)

	got, err := Flip(d, 0)
	assert.NoError(t, err)
	assert.Equal(t, []float32{3, 30, 4, 40, 1, 10, 2, 20}, got.Float32s())
}
