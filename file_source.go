package batchgen

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ekerman/batchgen/codec"
	"github.com/ekerman/batchgen/tensor"
)

// Loader turns a file path into a record tensor. Implementations own any
// format concerns; the source only sees decoded arrays.
type Loader interface {
	Load(path string) (*tensor.Dense, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(path string) (*tensor.Dense, error)

func (f LoaderFunc) Load(path string) (*tensor.Dense, error) { return f(path) }

// TensorLoader reads files holding a single codec.Tensor frame.
var TensorLoader Loader = LoaderFunc(func(path string) (*tensor.Dense, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := codec.Tensor.Deserializer(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return d, nil
})

// fileCache keeps decoded records keyed by path under a byte budget. Entries
// are evicted oldest-first once the budget is exceeded; eviction runs between
// batches, not per lookup, so a single batch can transiently overshoot.
type fileCache struct {
	mu     sync.Mutex
	budget int64
	bytes  int64
	order  []string
	byPath map[string]*tensor.Dense
}

func newFileCache(budget int64) *fileCache {
	return &fileCache{budget: budget, byPath: make(map[string]*tensor.Dense)}
}

func (c *fileCache) get(path string) (*tensor.Dense, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byPath[path]
	return d, ok
}

func (c *fileCache) put(path string, d *tensor.Dense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byPath[path]; ok {
		return
	}
	c.byPath[path] = d
	c.order = append(c.order, path)
	c.bytes += int64(d.NumBytes())
}

func (c *fileCache) trim() {
	if c.budget <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.bytes > c.budget && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		c.bytes -= int64(c.byPath[victim].NumBytes())
		delete(c.byPath, victim)
	}
}

func (c *fileCache) size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// FileSource is a DataSource whose records live on disk: one path list per
// tuple position, aligned by record index, decoded on demand through a Loader
// and held in a budgeted cache.
type FileSource struct {
	*DataSource
	cache   *fileCache
	records int
}

type fileConfig struct {
	loader Loader
	budget int64
}

// FileOption configures a FileSource.
type FileOption func(*fileConfig)

// WithLoader replaces the default codec.Tensor file loader.
var WithLoader = func(l Loader) FileOption {
	return func(c *fileConfig) {
		c.loader = l
	}
}

// WithCacheBudget bounds the decoded-record cache to the given byte total.
// Zero or negative disables eviction entirely.
var WithCacheBudget = func(bytes int64) FileOption {
	return func(c *fileConfig) {
		c.budget = bytes
	}
}

// NewFileSource creates a source over the given path lists, paths[k] holding
// the files for tuple position k. All lists must have the same length.
// SourceOptions apply to the underlying DataSource; selection weights must
// match the record count.
func NewFileSource(paths [][]string, fileOpts []FileOption, opts ...SourceOption) (*FileSource, error) {
	if len(paths) == 0 {
		return nil, configErrorf("file source needs at least one path list")
	}
	n := len(paths[0])
	for k, list := range paths {
		if len(list) != n {
			return nil, configErrorf("path list %d has %d entries, list 0 has %d", k, len(list), n)
		}
	}
	if n == 0 {
		return nil, ErrEmptySource
	}

	cfg := fileConfig{loader: TensorLoader}
	for _, opt := range fileOpts {
		opt(&cfg)
	}
	fs := &FileSource{cache: newFileCache(cfg.budget), records: n}

	lists := make([][]string, len(paths))
	for k, list := range paths {
		lists[k] = append([]string(nil), list...)
	}
	gen := func(rng *rand.Rand, batchSize int, weights []float64, chosen []int) (Batch, error) {
		defer fs.cache.trim()
		if chosen == nil {
			var err error
			if chosen, err = drawFileIndices(rng, n, batchSize, weights); err != nil {
				return nil, err
			}
		}
		batch := make(Batch, len(lists))
		for k, list := range lists {
			records := make([]*tensor.Dense, len(chosen))
			for i, idx := range chosen {
				if idx < 0 || idx >= n {
					return nil, fmt.Errorf("batchgen: file index %d out of range [0,%d)", idx, n)
				}
				rec, err := fs.load(cfg.loader, list[idx])
				if err != nil {
					return nil, err
				}
				records[i] = rec
			}
			stacked, err := stackRecords(records)
			if err != nil {
				return nil, err
			}
			batch[k] = stacked
		}
		return batch, nil
	}

	src, err := NewDataSource(nil, append([]SourceOption{WithGenerator(gen)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if src.weights != nil && len(src.weights) != n {
		return nil, configErrorf("%d selection weights for %d files", len(src.weights), n)
	}
	fs.DataSource = src
	return fs, nil
}

// Size returns the record count (the length of each path list).
func (fs *FileSource) Size() int { return fs.records }

// CacheBytes returns the decoded bytes currently cached.
func (fs *FileSource) CacheBytes() int64 { return fs.cache.size() }

func (fs *FileSource) load(l Loader, path string) (*tensor.Dense, error) {
	if d, ok := fs.cache.get(path); ok {
		return d, nil
	}
	d, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	fs.cache.put(path, d)
	return d, nil
}

func drawFileIndices(rng *rand.Rand, n, batchSize int, weights []float64) ([]int, error) {
	indices := make([]int, batchSize)
	if weights == nil {
		for i := range indices {
			indices[i] = rng.IntN(n)
		}
		return indices, nil
	}
	dist := distuv.NewCategorical(weights, rng)
	for i := range indices {
		indices[i] = int(dist.Rand())
	}
	return indices, nil
}

// stackRecords concatenates same-shaped records along a new leading axis.
func stackRecords(records []*tensor.Dense) (*tensor.Dense, error) {
	first := records[0]
	out := tensor.New(first.DType(), append([]int{len(records)}, first.Shape()...)...)
	for i, r := range records {
		if err := out.SetRow(i, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
