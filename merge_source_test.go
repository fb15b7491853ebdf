package batchgen

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ekerman/batchgen/tensor"
)

func TestMergeSourceConcatenatesTuples(t *testing.T) {
	pair, err := NewDataSource(trainingArrays(t), WithSeed(1))
	assert.NoError(t, err)
	single, err := NewDataSource([]*tensor.Dense{tensor.New(tensor.Int32, 5, 3)}, WithSeed(2))
	assert.NoError(t, err)

	merged, err := NewMergeSource(pair, single)
	assert.NoError(t, err)

	gen, err := merged.BatchGenerator(4, WithWorkers(2))
	assert.NoError(t, err)
	defer gen.Close()

	for i := 0; i < 3; i++ {
		batch, err := gen.Pull()
		assert.NoError(t, err)
		assert.Equal(t, 3, len(batch))
		assert.Equal(t, []int{4, 1, 16, 16}, batch[0].Shape())
		assert.Equal(t, []int{4, 2}, batch[1].Shape())
		assert.Equal(t, []int{4, 3}, batch[2].Shape())
		assert.Equal(t, tensor.Int32, batch[2].DType())
	}
}

func TestMergeSourceNeedsChildren(t *testing.T) {
	_, err := NewMergeSource()
	assert.IsError(t, err, ErrConfig)
}

func TestMergeSourceReleasesChildrenOnAcquireFailure(t *testing.T) {
	good, err := NewDataSource(trainingArrays(t))
	assert.NoError(t, err)
	empty, err := NewDataSource([]*tensor.Dense{tensor.New(tensor.Float32, 0, 2)})
	assert.NoError(t, err)

	merged, err := NewMergeSource(good, empty)
	assert.NoError(t, err)

	// the child's own error classification survives the merge wrapping
	_, err = merged.BatchGenerator(4)
	assert.IsError(t, err, ErrEmptySource)
}

func TestMergeSourceCloseStopsChildren(t *testing.T) {
	a, err := NewDataSource(trainingArrays(t), WithSeed(3))
	assert.NoError(t, err)
	b, err := NewDataSource(trainingArrays(t), WithSeed(4))
	assert.NoError(t, err)

	merged, err := NewMergeSource(a, b)
	assert.NoError(t, err)

	gen, err := merged.BatchGenerator(2)
	assert.NoError(t, err)

	_, err = gen.Pull()
	assert.NoError(t, err)

	assert.NoError(t, gen.Close())
	assert.NoError(t, gen.Close())
}
