package batchgen

import (
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/ekerman/batchgen/tensor"
)

// Strategy selects how a generator produces its batches.
type Strategy int

const (
	// StrategyLocal produces batches synchronously in the pulling goroutine.
	StrategyLocal Strategy = iota
	// StrategyThread produces batches in a background producer goroutine
	// fanning each batch out over a pool of worker goroutines.
	StrategyThread
	// StrategyProcess produces batches in a pool of worker processes
	// operating on shared memory-mapped buffers.
	StrategyProcess
)

func (s Strategy) String() string {
	switch s {
	case StrategyLocal:
		return "local"
	case StrategyThread:
		return "thread"
	case StrategyProcess:
		return "process"
	default:
		return "unknown"
	}
}

type genConfig struct {
	strategy Strategy
	workers  int
}

// GenOption configures generator acquisition.
type GenOption func(*genConfig)

// WithStrategy selects the production strategy. Default is StrategyLocal.
var WithStrategy = func(s Strategy) GenOption {
	return func(c *genConfig) {
		c.strategy = s
	}
}

// WithWorkers sets the worker goroutine/process count. Defaults to the
// available parallelism; always clamped to the batch size.
var WithWorkers = func(n int) GenOption {
	return func(c *genConfig) {
		c.workers = n
	}
}

// Source is anything a batch generator can be acquired from. MergeSource
// composes other Sources through this interface alone.
type Source interface {
	BatchGenerator(batchSize int, opts ...GenOption) (*Generator, error)
}

// Generator is an acquired (pull, release) pair. Pull blocks until a batch or
// a production failure is available; Close releases every goroutine, process
// and buffer the generator started and is safe to call more than once.
// Pulling after Close returns ErrClosed.
type Generator struct {
	pull func() (Batch, error)

	closeOnce sync.Once
	closeErr  error
	release   func() error
}

// Pull returns the next batch. The returned arrays are owned by the caller
// for the thread and process strategies (they are defensive copies); the
// local strategy returns its reused internal buffers, valid until the next
// Pull.
func (g *Generator) Pull() (Batch, error) { return g.pull() }

// Close stops production and reclaims all workers. Idempotent.
func (g *Generator) Close() error {
	g.closeOnce.Do(func() {
		if g.release != nil {
			g.closeErr = g.release()
		}
	})
	return g.closeErr
}

// BatchGenerator acquires a generator producing batchSize-record batches from
// the source. Configuration problems (bad batch size, empty source,
// mismatched weights, unsupported strategy on this platform) are reported
// here, never from inside the production loop.
func (s *DataSource) BatchGenerator(batchSize int, opts ...GenOption) (*Generator, error) {
	cfg := genConfig{strategy: StrategyLocal}
	for _, opt := range opts {
		opt(&cfg)
	}
	if batchSize < 1 {
		return nil, configErrorf("batch size must be positive, got %d", batchSize)
	}
	if s.Len() == 0 {
		return nil, ErrEmptySource
	}
	workers := cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > batchSize {
		workers = batchSize
	}

	log := s.log.With("strategy", cfg.strategy.String(), "batch_size", batchSize)

	switch cfg.strategy {
	case StrategyLocal:
		return s.newLocalGenerator(batchSize, log)
	case StrategyThread:
		return s.newThreadGenerator(batchSize, workers, log)
	case StrategyProcess:
		return s.newProcessGenerator(batchSize, workers, log)
	default:
		return nil, configErrorf("unknown strategy %d", cfg.strategy)
	}
}

// warmup fetches record 0, runs the pipeline once to discover the output
// record shapes and dtypes, and pre-allocates the reusable output buffers,
// one (batchSize, recordShape...) array per tuple position.
func (s *DataSource) warmup(batchSize int) (Batch, error) {
	probe, err := s.IndexBatch([]int{0})
	if err != nil {
		return nil, err
	}
	res, err := s.augmentRecord(rand.New(rand.NewPCG(s.deriveSeed(), 0)), probe, 0)
	if err != nil {
		return nil, err
	}
	outs := make(Batch, len(res))
	for i, r := range res {
		outs[i] = tensor.New(r.DType(), append([]int{batchSize}, r.Shape()...)...)
	}
	return outs, nil
}

var _ Source = (*DataSource)(nil)
