package batchgen

import (
	"github.com/ekerman/batchgen/tensor"
)

// BufferSource is a DataSource whose backing arrays grow over time, typically
// fed by a streaming ingester. Append is safe to call while generators pull
// from the source; each batch selection sees a consistent snapshot of the
// buffer.
type BufferSource struct {
	*DataSource
	weighted bool
}

// NewBufferSource creates an empty buffer source. The tuple arity and record
// shapes are fixed by the first Append.
func NewBufferSource(opts ...SourceOption) (*BufferSource, error) {
	src, err := NewDataSource(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &BufferSource{DataSource: src}, nil
}

// UniformWeights makes the buffer maintain a uniform selection-weight vector
// across appends, rebuilding it whenever the buffer grows.
func (b *BufferSource) UniformWeights() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weighted = true
	if n := len(b.arrays); n > 0 {
		b.rebuildWeightsLocked()
	}
}

// Append adds the records of the given aligned arrays to the buffer. The
// arrays must agree with the buffer's established tuple arity, dtypes and
// record shapes and must share a leading dimension.
func (b *BufferSource) Append(arrays ...*tensor.Dense) error {
	if len(arrays) == 0 {
		return configErrorf("append of empty tuple")
	}
	n := arrays[0].Len()
	for i, a := range arrays {
		if a.Len() != n {
			return configErrorf("appended array %d has %d records, array 0 has %d", i, a.Len(), n)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.arrays) == 0 {
		b.arrays = make(Batch, len(arrays))
		for i, a := range arrays {
			b.arrays[i] = a.Clone()
		}
	} else {
		if len(arrays) != len(b.arrays) {
			return configErrorf("append of %d arrays to a %d-array buffer", len(arrays), len(b.arrays))
		}
		grown := make(Batch, len(b.arrays))
		for i, a := range arrays {
			g, err := tensor.Concat(b.arrays[i], a)
			if err != nil {
				return err
			}
			grown[i] = g
		}
		b.arrays = grown
	}
	if b.weighted {
		b.rebuildWeightsLocked()
	}
	b.log.Debug("buffer grew", "added", n, "size", b.arrays[0].Len())
	return nil
}

func (b *BufferSource) rebuildWeightsLocked() {
	total := b.arrays[0].Len()
	w := make([]float64, total)
	for i := range w {
		w[i] = 1.0 / float64(total)
	}
	b.weights = w
}

// Size returns the buffered record count.
func (b *BufferSource) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.arrays) == 0 {
		return 0
	}
	return b.arrays[0].Len()
}

// Clear drops every buffered record. The tuple arity is reset too; the next
// Append re-establishes it.
func (b *BufferSource) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arrays = nil
	if b.weighted {
		b.weights = nil
	}
}
