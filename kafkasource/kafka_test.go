package kafkasource

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ekerman/batchgen"
	"github.com/ekerman/batchgen/codec"
	"github.com/ekerman/batchgen/tensor"
)

func encodedTuple(t *testing.T, shapes ...[]int) []byte {
	t.Helper()
	tuple := make([]*tensor.Dense, len(shapes))
	for i, s := range shapes {
		tuple[i] = tensor.New(tensor.Float32, s...)
	}
	raw, err := codec.Tuple.Serializer(tuple)
	assert.NoError(t, err)
	return raw
}

func newTestIngest(t *testing.T) (*Ingest, *batchgen.BufferSource) {
	t.Helper()
	dst, err := batchgen.NewBufferSource()
	assert.NoError(t, err)
	return &Ingest{
		dst:    dst,
		decode: codec.Tuple.Deserializer,
		log:    batchgen.NullLogger(),
	}, dst
}

func TestHandleAppendsDecodedTuples(t *testing.T) {
	in, dst := newTestIngest(t)

	assert.NoError(t, in.handle(encodedTuple(t, []int{1, 4, 4}, []int{1, 2})))
	assert.NoError(t, in.handle(encodedTuple(t, []int{1, 4, 4}, []int{1, 2})))

	assert.Equal(t, 2, dst.Size())
	assert.Equal(t, int64(2), in.Ingested())
	assert.Equal(t, int64(0), in.Rejected())
}

func TestHandleDropsUndecodableRecords(t *testing.T) {
	in, dst := newTestIngest(t)

	err := in.handle([]byte("not a tuple frame"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errAppend))
	assert.Equal(t, int64(1), in.Rejected())
	assert.Equal(t, 0, dst.Size())
}

func TestHandleStopsOnTupleShapeMismatch(t *testing.T) {
	in, dst := newTestIngest(t)

	assert.NoError(t, in.handle(encodedTuple(t, []int{1, 4, 4}, []int{1, 2})))
	err := in.handle(encodedTuple(t, []int{1, 4, 4}))
	assert.True(t, errors.Is(err, errAppend))
	assert.Equal(t, 1, dst.Size())
}
