// Package tensor provides a dense, dtype-tagged nd-array type used as the
// record currency of the batch generation engine. Arrays are row-major over a
// flat byte buffer, so row views, row copies and cross-process sharing are all
// cheap block operations.
package tensor

import (
	"bytes"
	"fmt"
	"unsafe"
)

// DType identifies the element type of a Dense array.
type DType uint8

const (
	Uint8 DType = iota + 1
	Int32
	Float32
	Float64
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		panic(fmt.Sprintf("tensor: unknown dtype %d", d))
	}
}

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Dense is a dense nd-array. The zero value is not usable; construct with
// New, FromBytes or one of the typed constructors.
type Dense struct {
	dtype DType
	shape []int
	data  []byte
}

// New returns a zero-filled array of the given dtype and shape. The backing
// buffer is 8-byte aligned so typed views are always valid.
func New(dtype DType, shape ...int) *Dense {
	n := numElem(shape)
	size := n * dtype.Size()
	backing := make([]uint64, (size+7)/8)
	var data []byte
	if size > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), size)
	}
	return &Dense{dtype: dtype, shape: append([]int(nil), shape...), data: data}
}

// FromBytes wraps caller-owned memory as a Dense without copying. The caller
// must guarantee len(data) matches the shape and that the memory is aligned
// for the dtype (mmap'd and heap-allocated buffers both are).
func FromBytes(dtype DType, shape []int, data []byte) (*Dense, error) {
	want := numElem(shape) * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("tensor: buffer is %d bytes, shape %v of %s needs %d", len(data), shape, dtype, want)
	}
	return &Dense{dtype: dtype, shape: append([]int(nil), shape...), data: data}, nil
}

// FromFloat32 builds a Float32 array from vals, which must match the shape.
func FromFloat32(vals []float32, shape ...int) *Dense {
	if len(vals) != numElem(shape) {
		panic(fmt.Sprintf("tensor: %d values for shape %v", len(vals), shape))
	}
	d := New(Float32, shape...)
	copy(d.Float32s(), vals)
	return d
}

// FromFloat64 builds a Float64 array from vals, which must match the shape.
func FromFloat64(vals []float64, shape ...int) *Dense {
	if len(vals) != numElem(shape) {
		panic(fmt.Sprintf("tensor: %d values for shape %v", len(vals), shape))
	}
	d := New(Float64, shape...)
	copy(d.Float64s(), vals)
	return d
}

func numElem(shape []int) int {
	n := 1
	for _, s := range shape {
		if s < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
		n *= s
	}
	return n
}

// DType returns the element type.
func (d *Dense) DType() DType { return d.dtype }

// Shape returns a copy of the array's shape.
func (d *Dense) Shape() []int { return append([]int(nil), d.shape...) }

// NDim returns the number of dimensions.
func (d *Dense) NDim() int { return len(d.shape) }

// Dim returns the size of dimension i.
func (d *Dense) Dim(i int) int { return d.shape[i] }

// Len returns the leading dimension, the record count of a batch array.
func (d *Dense) Len() int {
	if len(d.shape) == 0 {
		return 0
	}
	return d.shape[0]
}

// NumElem returns the total element count.
func (d *Dense) NumElem() int { return numElem(d.shape) }

// NumBytes returns the byte size of the backing data.
func (d *Dense) NumBytes() int { return len(d.data) }

// ElemSize returns the element size in bytes.
func (d *Dense) ElemSize() int { return d.dtype.Size() }

// Bytes returns the live backing buffer. Mutating it mutates the array.
func (d *Dense) Bytes() []byte { return d.data }

// Float32s returns the data as a live []float32 view. Panics if the dtype is
// not Float32.
func (d *Dense) Float32s() []float32 {
	d.mustDType(Float32)
	if len(d.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&d.data[0])), d.NumElem())
}

// Float64s returns the data as a live []float64 view. Panics if the dtype is
// not Float64.
func (d *Dense) Float64s() []float64 {
	d.mustDType(Float64)
	if len(d.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&d.data[0])), d.NumElem())
}

// Uint8s returns the data as a live []uint8 view. Panics if the dtype is not
// Uint8.
func (d *Dense) Uint8s() []uint8 {
	d.mustDType(Uint8)
	return d.data
}

// Int32s returns the data as a live []int32 view. Panics if the dtype is not
// Int32.
func (d *Dense) Int32s() []int32 {
	d.mustDType(Int32)
	if len(d.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&d.data[0])), d.NumElem())
}

func (d *Dense) mustDType(want DType) {
	if d.dtype != want {
		panic(fmt.Sprintf("tensor: dtype is %s, not %s", d.dtype, want))
	}
}

// FloatAt reads the element at flat index i as a float64, whatever the dtype.
func (d *Dense) FloatAt(i int) float64 {
	switch d.dtype {
	case Uint8:
		return float64(d.data[i])
	case Int32:
		return float64(*(*int32)(unsafe.Pointer(&d.data[i*4])))
	case Float32:
		return float64(*(*float32)(unsafe.Pointer(&d.data[i*4])))
	case Float64:
		return *(*float64)(unsafe.Pointer(&d.data[i*8]))
	default:
		panic("tensor: unknown dtype")
	}
}

// SetFloatAt writes v to the element at flat index i, converting to the dtype.
func (d *Dense) SetFloatAt(i int, v float64) {
	switch d.dtype {
	case Uint8:
		d.data[i] = uint8(v)
	case Int32:
		*(*int32)(unsafe.Pointer(&d.data[i*4])) = int32(v)
	case Float32:
		*(*float32)(unsafe.Pointer(&d.data[i*4])) = float32(v)
	case Float64:
		*(*float64)(unsafe.Pointer(&d.data[i*8])) = v
	default:
		panic("tensor: unknown dtype")
	}
}

// rowSize returns the byte size of one record along the leading dimension.
func (d *Dense) rowSize() int {
	if len(d.shape) == 0 {
		return 0
	}
	return numElem(d.shape[1:]) * d.dtype.Size()
}

// RowBytes returns the live bytes of record i.
func (d *Dense) RowBytes(i int) []byte {
	rs := d.rowSize()
	return d.data[i*rs : (i+1)*rs : (i+1)*rs]
}

// Row returns a no-copy view of record i with shape Shape()[1:]. Mutations
// through the view are visible in the parent.
func (d *Dense) Row(i int) *Dense {
	if i < 0 || i >= d.Len() {
		panic(fmt.Sprintf("tensor: row %d out of range [0,%d)", i, d.Len()))
	}
	return &Dense{dtype: d.dtype, shape: append([]int(nil), d.shape[1:]...), data: d.RowBytes(i)}
}

// SetRow copies rec into record slot i. The record's dtype and shape must
// match Shape()[1:].
func (d *Dense) SetRow(i int, rec *Dense) error {
	if i < 0 || i >= d.Len() {
		return fmt.Errorf("tensor: row %d out of range [0,%d)", i, d.Len())
	}
	if rec.dtype != d.dtype {
		return fmt.Errorf("tensor: cannot write %s record into %s array", rec.dtype, d.dtype)
	}
	if !shapeEqual(rec.shape, d.shape[1:]) {
		return fmt.Errorf("tensor: record shape %v does not fit array of shape %v", rec.shape, d.shape)
	}
	copy(d.RowBytes(i), rec.data)
	return nil
}

// Take returns a new array holding the records at the given indices, in
// order. Duplicate indices are allowed (selection with replacement).
func (d *Dense) Take(indices []int) (*Dense, error) {
	n := d.Len()
	out := New(d.dtype, append([]int{len(indices)}, d.shape[1:]...)...)
	for k, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("tensor: index %d out of range [0,%d)", idx, n)
		}
		copy(out.RowBytes(k), d.RowBytes(idx))
	}
	return out, nil
}

// Concat appends b's records to a's along the leading dimension, returning a
// new array. Record shapes and dtypes must match.
func Concat(a, b *Dense) (*Dense, error) {
	if a.dtype != b.dtype {
		return nil, fmt.Errorf("tensor: cannot concat %s and %s arrays", a.dtype, b.dtype)
	}
	if !shapeEqual(a.shape[1:], b.shape[1:]) {
		return nil, fmt.Errorf("tensor: cannot concat record shapes %v and %v", a.shape[1:], b.shape[1:])
	}
	out := New(a.dtype, append([]int{a.Len() + b.Len()}, a.shape[1:]...)...)
	copy(out.data, a.data)
	copy(out.data[len(a.data):], b.data)
	return out, nil
}

// CopyFrom overwrites the array's data in place from src, which must have the
// same dtype and shape. Used to refresh shared input buffers between
// iterations without reallocating.
func (d *Dense) CopyFrom(src *Dense) error {
	if src.dtype != d.dtype || !shapeEqual(src.shape, d.shape) {
		return fmt.Errorf("tensor: cannot copy %s%v into %s%v", src.dtype, src.shape, d.dtype, d.shape)
	}
	copy(d.data, src.data)
	return nil
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	out := New(d.dtype, d.shape...)
	copy(out.data, d.data)
	return out
}

// Equal reports whether two arrays have the same dtype, shape and data.
func Equal(a, b *Dense) bool {
	return a.dtype == b.dtype && shapeEqual(a.shape, b.shape) && bytes.Equal(a.data, b.data)
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ShapeEqual reports whether two shapes are identical.
func ShapeEqual(a, b []int) bool { return shapeEqual(a, b) }

func (d *Dense) String() string {
	return fmt.Sprintf("Dense[%s]%v", d.dtype, d.shape)
}
