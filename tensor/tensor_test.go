package tensor

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewZeroed(t *testing.T) {
	d := New(Float32, 3, 2, 2)
	assert.Equal(t, []int{3, 2, 2}, d.Shape())
	assert.Equal(t, 12, d.NumElem())
	assert.Equal(t, 48, d.NumBytes())
	for _, v := range d.Float32s() {
		assert.Equal(t, float32(0), v)
	}
}

func TestRowViewSharesMemory(t *testing.T) {
	d := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	row := d.Row(1)
	assert.Equal(t, []int{2}, row.Shape())
	assert.Equal(t, []float32{3, 4}, row.Float32s())

	row.Float32s()[0] = 99
	assert.Equal(t, float32(99), d.Float32s()[2])
}

func TestSetRow(t *testing.T) {
	d := New(Float32, 2, 3)
	assert.NoError(t, d.SetRow(1, FromFloat32([]float32{7, 8, 9}, 3)))
	assert.Equal(t, []float32{0, 0, 0, 7, 8, 9}, d.Float32s())

	assert.Error(t, d.SetRow(0, FromFloat32([]float32{1, 2}, 2)))
	assert.Error(t, d.SetRow(0, FromFloat64([]float64{1, 2, 3}, 3)))
	assert.Error(t, d.SetRow(5, FromFloat32([]float32{1, 2, 3}, 3)))
}

func TestTake(t *testing.T) {
	d := FromFloat32([]float32{0, 0, 1, 1, 2, 2}, 3, 2)

	got, err := d.Take([]int{2, 0, 2})
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got.Shape())
	assert.Equal(t, []float32{2, 2, 0, 0, 2, 2}, got.Float32s())

	_, err = d.Take([]int{3})
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := FromFloat32([]float32{1, 2}, 1, 2)
	b := FromFloat32([]float32{3, 4, 5, 6}, 2, 2)

	got, err := Concat(a, b)
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got.Float32s())

	_, err = Concat(a, FromFloat32([]float32{1, 2, 3}, 1, 3))
	assert.Error(t, err)
	_, err = Concat(a, FromFloat64([]float64{1, 2}, 1, 2))
	assert.Error(t, err)
}

func TestCopyFromAndClone(t *testing.T) {
	src := FromFloat64([]float64{1, 2, 3, 4}, 2, 2)
	dst := New(Float64, 2, 2)
	assert.NoError(t, dst.CopyFrom(src))
	assert.True(t, Equal(src, dst))

	cl := src.Clone()
	cl.Float64s()[0] = -1
	assert.Equal(t, float64(1), src.Float64s()[0])

	assert.Error(t, dst.CopyFrom(New(Float64, 3, 2)))
}

func TestFromBytesView(t *testing.T) {
	buf := make([]byte, 8)
	d, err := FromBytes(Uint8, []int{2, 4}, buf)
	assert.NoError(t, err)
	d.Uint8s()[3] = 42
	assert.Equal(t, byte(42), buf[3])

	_, err = FromBytes(Float32, []int{2, 4}, buf)
	assert.Error(t, err)
}

func TestFloatAtRoundTrip(t *testing.T) {
	for _, dtype := range []DType{Uint8, Int32, Float32, Float64} {
		d := New(dtype, 4)
		d.SetFloatAt(2, 7)
		assert.Equal(t, 7.0, d.FloatAt(2), "dtype %s", dtype)
	}
}
