//go:build unix

package batchgen

import (
	"math/rand/v2"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ekerman/batchgen/augment"
	"github.com/ekerman/batchgen/tensor"
)

func TestProcessStrategyShapes(t *testing.T) {
	src, err := NewDataSource(trainingArrays(t), WithSeed(42))
	assert.NoError(t, err)

	gen, err := src.BatchGenerator(4, WithStrategy(StrategyProcess), WithWorkers(2))
	assert.NoError(t, err)
	defer gen.Close()

	for i := 0; i < 3; i++ {
		batch, err := gen.Pull()
		assert.NoError(t, err)
		assert.Equal(t, 2, len(batch))
		assert.Equal(t, []int{4, 1, 16, 16}, batch[0].Shape())
		assert.Equal(t, []int{4, 2}, batch[1].Shape())
	}
}

func TestProcessStrategyMatchesLocal(t *testing.T) {
	pipeline := augment.Pipeline{
		augment.FlipLR(augment.WithProb(1), augment.WithIndices(0)),
		augment.Normalize(augment.WithIndices(0)),
	}

	pullOne := func(strategy Strategy) Batch {
		src, err := NewDataSource(constantArrays(6),
			WithPipeline(pipeline), WithSeed(11))
		assert.NoError(t, err)
		gen, err := src.BatchGenerator(4, WithStrategy(strategy), WithWorkers(2))
		assert.NoError(t, err)
		defer gen.Close()
		batch, err := gen.Pull()
		assert.NoError(t, err)
		return batch.Clone()
	}

	want := pullOne(StrategyLocal)
	got := pullOne(StrategyProcess)
	assert.Equal(t, len(want), len(got))
	for k := range want {
		assert.True(t, tensor.Equal(want[k], got[k]))
	}
}

func TestProcessStrategyRejectsCustomStages(t *testing.T) {
	custom := augment.New(func(rng *rand.Rand, tuple []*tensor.Dense) (augment.Transform, error) {
		return func(d *tensor.Dense) (*tensor.Dense, error) { return d, nil }, nil
	})
	src, err := NewDataSource(constantArrays(4),
		WithPipeline(augment.Pipeline{custom}), WithSeed(1))
	assert.NoError(t, err)

	_, err = src.BatchGenerator(2, WithStrategy(StrategyProcess))
	assert.IsError(t, err, ErrConfig)
}

func TestProcessStrategyWithEmptyPipeline(t *testing.T) {
	src, err := NewDataSource(constantArrays(6), WithSeed(9))
	assert.NoError(t, err)

	gen, err := src.BatchGenerator(3, WithStrategy(StrategyProcess), WithWorkers(2))
	assert.NoError(t, err)
	defer gen.Close()

	batch, err := gen.Pull()
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 16, 16}, batch[0].Shape())
	// identical records: every row must equal record 0
	for i := 0; i < 3; i++ {
		assert.True(t, tensor.Equal(batch[0].Row(i), constantArrays(1)[0].Row(0)))
	}
}
