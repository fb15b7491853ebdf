// Package augment implements the probabilistic per-record transform pipeline
// applied while batches are assembled. A pipeline is an ordered list of
// stages; each stage decides with a single coin flip whether to apply itself
// to the record tuple, and when it does, it builds exactly one transform
// instance and applies it to every targeted tuple position. Any randomness
// inside the transform (angle, offset, crop origin) is therefore fixed once
// per invocation, keeping e.g. an image and its label mask pixel-aligned.
package augment

import (
	"fmt"
	"math/rand/v2"

	"github.com/ekerman/batchgen/tensor"
)

// Transform rewrites a single record array. Output shape may differ from the
// input only if every invocation of the same transform instance family
// produces the same output shape (a crop to a fixed patch size).
type Transform func(*tensor.Dense) (*tensor.Dense, error)

// Builder constructs one Transform per stage application. It sees the
// stage's targeted tuple positions, in target order, so data-dependent
// choices (shift ranges, crop origins) can be made up front; the returned
// Transform is then applied to each of those positions.
type Builder func(rng *rand.Rand, tuple []*tensor.Dense) (Transform, error)

// DefaultProb is the application probability of a stage unless overridden.
const DefaultProb = 0.5

// Stage is one probabilistic transform in a pipeline. Construct with New for
// a custom builder, or with one of the built-in constructors (FlipLR, Rot90,
// ...) for a stage that can also be reconstructed inside worker processes.
type Stage struct {
	name    string
	prob    float64
	indices []int
	args    map[string]float64
	build   Builder
}

// StageOption adjusts a stage at construction time.
type StageOption func(*Stage)

// WithProb sets the application probability. 1.0 means always apply.
var WithProb = func(p float64) StageOption {
	return func(s *Stage) {
		s.prob = p
	}
}

// WithIndices restricts the stage to the given tuple positions. Default is
// all positions.
var WithIndices = func(indices ...int) StageOption {
	return func(s *Stage) {
		s.indices = append([]int(nil), indices...)
	}
}

// New creates a stage from a custom builder. Such a stage works with the
// local and thread strategies but cannot travel to worker processes; use a
// registered stage (or Register your builder) for the process strategy.
func New(build Builder, opts ...StageOption) Stage {
	s := Stage{prob: DefaultProb, build: build}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Name returns the registered name, or "" for a custom stage.
func (s Stage) Name() string { return s.name }

// Prob returns the application probability.
func (s Stage) Prob() float64 { return s.prob }

func (s Stage) apply(rng *rand.Rand, tuple []*tensor.Dense) ([]*tensor.Dense, error) {
	if s.prob < 1.0 && rng.Float64() >= s.prob {
		return tuple, nil
	}
	targets := s.indices
	if targets == nil {
		targets = make([]int, len(tuple))
		for i := range targets {
			targets[i] = i
		}
	}
	sub := make([]*tensor.Dense, len(targets))
	for k, i := range targets {
		if i < 0 || i >= len(tuple) {
			return nil, fmt.Errorf("augment: stage %q targets index %d of %d-tuple", s.describe(), i, len(tuple))
		}
		sub[k] = tuple[i]
	}
	op, err := s.build(rng, sub)
	if err != nil {
		return nil, fmt.Errorf("augment: build %q: %w", s.describe(), err)
	}
	out := append([]*tensor.Dense(nil), tuple...)
	for k, i := range targets {
		r, err := op(sub[k])
		if err != nil {
			return nil, fmt.Errorf("augment: apply %q to position %d: %w", s.describe(), i, err)
		}
		out[i] = r
	}
	return out, nil
}

func (s Stage) describe() string {
	if s.name != "" {
		return s.name
	}
	return "custom"
}

// Pipeline is an ordered sequence of stages.
type Pipeline []Stage

// Apply runs every stage over the tuple in order. The returned tuple always
// has the same arity as the input.
func (p Pipeline) Apply(rng *rand.Rand, tuple []*tensor.Dense) ([]*tensor.Dense, error) {
	for _, s := range p {
		out, err := s.apply(rng, tuple)
		if err != nil {
			return nil, err
		}
		tuple = out
	}
	return tuple, nil
}

// Specs returns the serializable description of the pipeline. ok is false if
// any stage was built from an unregistered closure, in which case the
// pipeline cannot be reconstructed in a worker process.
func (p Pipeline) Specs() ([]Spec, bool) {
	specs := make([]Spec, 0, len(p))
	for _, s := range p {
		if s.name == "" {
			return nil, false
		}
		specs = append(specs, Spec{Name: s.name, Prob: s.prob, Indices: s.indices, Args: s.args})
	}
	return specs, true
}
