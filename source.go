// Package batchgen is a parallel batch-generation engine for array-shaped
// training data. A DataSource holds aligned record arrays (or a generator
// function standing in for them) and an augmentation pipeline; acquiring a
// Generator from it yields a pull-based stream of fixed-size batches,
// produced inline, across a goroutine pool, or across a pool of worker
// processes sharing memory-mapped buffers.
package batchgen

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ekerman/batchgen/augment"
	"github.com/ekerman/batchgen/tensor"
)

// Batch is one record tuple's worth of arrays, each shaped
// (batchSize, recordShape...).
type Batch []*tensor.Dense

// Clone deep-copies every array of the batch.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for i, a := range b {
		out[i] = a.Clone()
	}
	return out
}

// GenerateFunc produces record arrays in place of backing arrays. Exactly one
// of batchSize or chosen is meaningful per call: chosen == nil means "draw
// batchSize records yourself, honoring weights", otherwise return the records
// at the chosen indices. Implementations must return the same tuple arity on
// every call.
type GenerateFunc func(rng *rand.Rand, batchSize int, weights []float64, chosen []int) (Batch, error)

// DataSource holds the backing record arrays, the selection weights and the
// augmentation pipeline, and answers index-selected or randomly-selected
// batch queries. All methods are safe for concurrent use.
type DataSource struct {
	mu       sync.RWMutex
	arrays   Batch
	weights  []float64
	generate GenerateFunc
	pipeline augment.Pipeline

	rngMu sync.Mutex
	rng   *rand.Rand

	log *slog.Logger
}

// SourceOption configures a DataSource.
type SourceOption func(*DataSource)

// WithPipeline sets the augmentation pipeline applied to every record.
var WithPipeline = func(p augment.Pipeline) SourceOption {
	return func(s *DataSource) {
		s.pipeline = p
	}
}

// WithWeights sets per-record selection weights. The vector length must equal
// the record count; weights are normalized by their total mass, so they need
// not sum to exactly 1.
var WithWeights = func(w []float64) SourceOption {
	return func(s *DataSource) {
		s.weights = append([]float64(nil), w...)
	}
}

// WithGenerator replaces the backing arrays with a generator function.
var WithGenerator = func(g GenerateFunc) SourceOption {
	return func(s *DataSource) {
		s.generate = g
	}
}

// WithSeed seeds the source's random stream, making selection and stage
// randomness reproducible.
var WithSeed = func(seed uint64) SourceOption {
	return func(s *DataSource) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	}
}

// WithLog sets the logger for the source and its generators.
var WithLog = func(log *slog.Logger) SourceOption {
	return func(s *DataSource) {
		s.log = log
	}
}

// NewDataSource creates a source over the given aligned arrays. All arrays
// must share the same leading dimension.
func NewDataSource(arrays []*tensor.Dense, opts ...SourceOption) (*DataSource, error) {
	s := &DataSource{
		arrays: append(Batch(nil), arrays...),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		log:    NullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.arrays) > 0 {
		n := s.arrays[0].Len()
		for i, a := range s.arrays {
			if a.Len() != n {
				return nil, configErrorf("array %d has %d records, array 0 has %d", i, a.Len(), n)
			}
		}
		if s.weights != nil && len(s.weights) != n {
			return nil, configErrorf("%d selection weights for %d records", len(s.weights), n)
		}
	}
	if len(s.arrays) == 0 && s.generate == nil && s.weights != nil {
		return nil, configErrorf("selection weights without backing arrays")
	}
	if err := validateWeights(s.weights); err != nil {
		return nil, err
	}
	return s, nil
}

// validateWeights rejects weight vectors distuv.Categorical would panic on.
func validateWeights(w []float64) error {
	if w == nil {
		return nil
	}
	var total float64
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return configErrorf("selection weight %d is %v, must be finite and non-negative", i, v)
		}
		total += v
	}
	if total <= 0 {
		return configErrorf("selection weights sum to %v, must be positive", total)
	}
	return nil
}

// RandomSource returns a generator-backed source producing batches of
// standard-normal float32 data of the given record shape, the same array
// appearing twice in every tuple.
func RandomSource(shape []int, opts ...SourceOption) *DataSource {
	gen := func(rng *rand.Rand, batchSize int, _ []float64, chosen []int) (Batch, error) {
		if chosen != nil {
			// nothing to index into, the index count is just a size
			batchSize = len(chosen)
		}
		d := tensor.New(tensor.Float32, append([]int{batchSize}, shape...)...)
		vals := d.Float32s()
		for i := range vals {
			vals[i] = float32(rng.NormFloat64())
		}
		return Batch{d, d}, nil
	}
	src, err := NewDataSource(nil, append([]SourceOption{WithGenerator(gen)}, opts...)...)
	if err != nil {
		// no arrays and no weights: construction cannot fail
		panic(err)
	}
	return src
}

// Len returns the record count, or -1 for a purely generator-backed source.
func (s *DataSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.arrays) == 0 {
		if s.generate != nil {
			return -1
		}
		return 0
	}
	return s.arrays[0].Len()
}

// Pipeline returns the source's augmentation pipeline.
func (s *DataSource) Pipeline() augment.Pipeline { return s.pipeline }

// RandomBatch draws batchSize records with replacement, honoring the
// selection weights, and returns one array per backing array sliced along the
// leading dimension.
func (s *DataSource) RandomBatch(batchSize int) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generate != nil {
		return s.runGenerate(batchSize, s.weights, nil)
	}
	indices, err := s.drawIndices(batchSize)
	if err != nil {
		return nil, err
	}
	return s.takeAll(indices)
}

// IndexBatch returns the records at the caller-supplied indices.
func (s *DataSource) IndexBatch(indices []int) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generate != nil {
		return s.runGenerate(0, nil, indices)
	}
	return s.takeAll(indices)
}

// runGenerate invokes the generator function with the rng mutex held, so
// concurrently acquired generators never race on the shared random stream. A
// panic in the generator is reported as an error, not a crashed producer.
func (s *DataSource) runGenerate(batchSize int, weights []float64, chosen []int) (batch Batch, err error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, panicError(r)
		}
	}()
	return s.generate(s.rng, batchSize, weights, chosen)
}

func (s *DataSource) takeAll(indices []int) (Batch, error) {
	if len(s.arrays) == 0 || s.arrays[0].Len() == 0 {
		return nil, ErrEmptySource
	}
	out := make(Batch, len(s.arrays))
	for i, a := range s.arrays {
		sel, err := a.Take(indices)
		if err != nil {
			return nil, err
		}
		out[i] = sel
	}
	return out, nil
}

// drawIndices samples batchSize indices with replacement. Callers hold at
// least the read lock.
func (s *DataSource) drawIndices(batchSize int) ([]int, error) {
	if len(s.arrays) == 0 || s.arrays[0].Len() == 0 {
		return nil, ErrEmptySource
	}
	n := s.arrays[0].Len()
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	indices := make([]int, batchSize)
	if s.weights == nil {
		for i := range indices {
			indices[i] = s.rng.IntN(n)
		}
		return indices, nil
	}
	dist := distuv.NewCategorical(s.weights, s.rng)
	for i := range indices {
		indices[i] = int(dist.Rand())
	}
	return indices, nil
}

// deriveSeed draws a fresh seed from the source's random stream, used to give
// each production iteration an independent, reproducible worker stream.
func (s *DataSource) deriveSeed() uint64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Uint64()
}

// augmentRecord runs the pipeline once over the tuple formed from row i of
// the batch arrays. A panic inside a Builder or Transform is recovered into
// an error so every strategy reports it through its normal failure path.
func (s *DataSource) augmentRecord(rng *rand.Rand, batch Batch, i int) (res []*tensor.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, panicError(r)
		}
	}()
	tuple := make([]*tensor.Dense, len(batch))
	for k, a := range batch {
		tuple[k] = a.Row(i)
	}
	return s.pipeline.Apply(rng, tuple)
}

// applyRows augments the given rows of batch and writes the results into the
// matching rows of outs. Disjoint row sets never contend: each worker owns
// its rows, so no locking is needed on the output buffers.
func (s *DataSource) applyRows(rng *rand.Rand, batch, outs Batch, rows []int) error {
	for _, i := range rows {
		res, err := s.augmentRecord(rng, batch, i)
		if err != nil {
			return err
		}
		for k, r := range res {
			if err := outs[k].SetRow(i, r); err != nil {
				return err
			}
		}
	}
	return nil
}
