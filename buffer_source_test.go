package batchgen

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ekerman/batchgen/tensor"
)

func bufferRecords(n int, fill float32) []*tensor.Dense {
	images := tensor.New(tensor.Float32, n, 4, 4)
	vals := images.Float32s()
	for i := range vals {
		vals[i] = fill
	}
	labels := tensor.New(tensor.Float32, n, 2)
	return []*tensor.Dense{images, labels}
}

func TestBufferSourceAppendAndClear(t *testing.T) {
	buf, err := NewBufferSource(WithSeed(1))
	assert.NoError(t, err)
	assert.Equal(t, 0, buf.Size())

	assert.NoError(t, buf.Append(bufferRecords(3, 1)...))
	assert.Equal(t, 3, buf.Size())

	assert.NoError(t, buf.Append(bufferRecords(2, 2)...))
	assert.Equal(t, 5, buf.Size())

	buf.Clear()
	assert.Equal(t, 0, buf.Size())

	// a cleared buffer accepts a different tuple shape
	assert.NoError(t, buf.Append(tensor.New(tensor.Float64, 2, 8)))
	assert.Equal(t, 2, buf.Size())
}

func TestBufferSourceRejectsMismatches(t *testing.T) {
	buf, err := NewBufferSource()
	assert.NoError(t, err)

	assert.IsError(t, buf.Append(), ErrConfig)

	assert.NoError(t, buf.Append(bufferRecords(2, 0)...))

	// wrong arity
	assert.IsError(t, buf.Append(tensor.New(tensor.Float32, 1, 4, 4)), ErrConfig)

	// unaligned leading dimensions
	err = buf.Append(tensor.New(tensor.Float32, 2, 4, 4), tensor.New(tensor.Float32, 3, 2))
	assert.IsError(t, err, ErrConfig)

	// wrong record shape
	err = buf.Append(tensor.New(tensor.Float32, 1, 5, 5), tensor.New(tensor.Float32, 1, 2))
	assert.Error(t, err)

	assert.Equal(t, 2, buf.Size())
}

func TestBufferSourceGeneratesAfterAppend(t *testing.T) {
	buf, err := NewBufferSource(WithSeed(3))
	assert.NoError(t, err)

	_, err = buf.BatchGenerator(2)
	assert.IsError(t, err, ErrEmptySource)

	assert.NoError(t, buf.Append(bufferRecords(4, 7)...))

	gen, err := buf.BatchGenerator(2, WithStrategy(StrategyThread))
	assert.NoError(t, err)
	defer gen.Close()

	batch, err := gen.Pull()
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 4, 4}, batch[0].Shape())
	assert.Equal(t, float64(7), batch[0].FloatAt(0))

	// growth while a generator is live must not disturb pulls
	assert.NoError(t, buf.Append(bufferRecords(4, 9)...))
	_, err = gen.Pull()
	assert.NoError(t, err)
	assert.Equal(t, 8, buf.Size())
}

func TestBufferSourceUniformWeights(t *testing.T) {
	buf, err := NewBufferSource()
	assert.NoError(t, err)
	buf.UniformWeights()

	assert.NoError(t, buf.Append(bufferRecords(2, 0)...))
	assert.NoError(t, buf.Append(bufferRecords(2, 1)...))

	buf.mu.RLock()
	defer buf.mu.RUnlock()
	assert.Equal(t, 4, len(buf.weights))
	for _, w := range buf.weights {
		assert.Equal(t, 0.25, w)
	}
}
