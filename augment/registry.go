package augment

import (
	"fmt"
	"sort"
	"sync"
)

// Spec is the portable description of a stage: enough to rebuild it in
// another process, provided the same builder factory is registered there.
type Spec struct {
	Name    string             `json:"name"`
	Prob    float64            `json:"prob"`
	Indices []int              `json:"indices,omitempty"`
	Args    map[string]float64 `json:"args,omitempty"`
}

// BuilderFactory produces a Builder from a stage's numeric arguments.
type BuilderFactory func(args map[string]float64) (Builder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BuilderFactory{}
)

// Register makes a builder factory available under name, for both in-process
// use and reconstruction inside worker processes. Built-in stages register
// themselves; custom stages intended for the process strategy must be
// registered before the worker hook runs in main.
func Register(name string, f BuilderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("augment: stage %q registered twice", name))
	}
	registry[name] = f
}

// Registered returns the sorted names of all registered stages.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromSpec reconstructs a stage from its portable description.
func FromSpec(spec Spec) (Stage, error) {
	registryMu.RLock()
	f, ok := registry[spec.Name]
	registryMu.RUnlock()
	if !ok {
		return Stage{}, fmt.Errorf("augment: stage %q is not registered", spec.Name)
	}
	build, err := f(spec.Args)
	if err != nil {
		return Stage{}, fmt.Errorf("augment: stage %q: %w", spec.Name, err)
	}
	return Stage{
		name:    spec.Name,
		prob:    spec.Prob,
		indices: append([]int(nil), spec.Indices...),
		args:    spec.Args,
		build:   build,
	}, nil
}

// PipelineFromSpecs reconstructs a pipeline from its portable description.
func PipelineFromSpecs(specs []Spec) (Pipeline, error) {
	p := make(Pipeline, 0, len(specs))
	for _, spec := range specs {
		s, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		p = append(p, s)
	}
	return p, nil
}

// registered builds a stage directly from the registry, panicking on unknown
// names or bad arguments. Used by the built-in constructors, whose names and
// argument sets are fixed at compile time.
func registered(name string, defaultProb float64, args map[string]float64, opts ...StageOption) Stage {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("augment: built-in stage %q missing from registry", name))
	}
	build, err := f(args)
	if err != nil {
		panic(fmt.Sprintf("augment: built-in stage %q: %v", name, err))
	}
	s := Stage{name: name, prob: defaultProb, args: args, build: build}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
