package batchgen

import (
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// MergeSource composes several sources into one: every pulled batch is the
// positional concatenation of one batch from each child, so a tuple of arity
// a1 merged with a tuple of arity a2 yields batches of arity a1+a2. Each
// child keeps its own pipeline and selection weights.
type MergeSource struct {
	children []Source
}

// NewMergeSource wraps the given child sources. At least one is required.
func NewMergeSource(children ...Source) (*MergeSource, error) {
	if len(children) == 0 {
		return nil, configErrorf("merge of zero sources")
	}
	return &MergeSource{children: append([]Source(nil), children...)}, nil
}

// BatchGenerator acquires one thread-strategy generator per child, all at the
// requested batch size, and returns a generator whose Pull drives the
// children concurrently. A failure while acquiring releases the children
// already acquired before returning.
func (m *MergeSource) BatchGenerator(batchSize int, opts ...GenOption) (*Generator, error) {
	gens := make([]*Generator, 0, len(m.children))
	closeAll := func() error {
		var err error
		for _, g := range gens {
			err = multierr.Append(err, g.Close())
		}
		return err
	}

	childOpts := append(append([]GenOption(nil), opts...), WithStrategy(StrategyThread))
	for i, c := range m.children {
		g, err := c.BatchGenerator(batchSize, childOpts...)
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("batchgen: merge child %d: %w", i, err)
		}
		gens = append(gens, g)
	}

	pull := func() (Batch, error) {
		parts := make([]Batch, len(gens))
		var g errgroup.Group
		for i, gen := range gens {
			g.Go(func() error {
				b, err := gen.Pull()
				if err != nil {
					return err
				}
				parts[i] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		var merged Batch
		for _, part := range parts {
			merged = append(merged, part...)
		}
		return merged, nil
	}
	return &Generator{pull: pull, release: closeAll}, nil
}

var _ Source = (*MergeSource)(nil)
