// Package procpool runs the worker-subprocess pool behind the process
// strategy. The parent re-executes its own binary for each worker; workers
// inherit the shared memory segment descriptors, receive one JSON init frame
// describing the segments and the augmentation pipeline, then serve row-chunk
// tasks until their stdin closes.
package procpool

import (
	"github.com/ekerman/batchgen/augment"
	"github.com/ekerman/batchgen/tensor"
)

// childEnv marks a process as a pool worker. The host binary must call the
// worker hook (batchgen.ProcessPoolInit) before doing anything else so a
// re-executed copy never runs the host's main path.
const childEnv = "BATCHGEN_PROCESS_WORKER"

// segmentFDStart is the first inherited descriptor: 0..2 are the stdio pipes,
// segments follow in init-frame order (inputs, then outputs).
const segmentFDStart = 3

// ArraySpec carries the dtype+shape metadata a worker needs to map a shared
// segment back into an array view.
type ArraySpec struct {
	DType uint8 `json:"dtype"`
	Shape []int `json:"shape"`
}

// SpecOf describes an existing array.
func SpecOf(d *tensor.Dense) ArraySpec {
	return ArraySpec{DType: uint8(d.DType()), Shape: d.Shape()}
}

// NumBytes returns the byte size of the described array.
func (a ArraySpec) NumBytes() int {
	n := tensor.DType(a.DType).Size()
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// Init is the one-time handshake frame sent to every worker at pool start.
type Init struct {
	Stages  []augment.Spec `json:"stages"`
	Inputs  []ArraySpec    `json:"inputs"`
	Outputs []ArraySpec    `json:"outputs"`
}

// Task tells a worker to augment one disjoint chunk of batch rows. Seed and
// Stream identify the iteration's random stream so results are reproducible
// regardless of which process runs the chunk.
type Task struct {
	Rows   []int  `json:"rows"`
	Seed   uint64 `json:"seed"`
	Stream uint64 `json:"stream"`
}

// Result answers one Task. A non-empty Err is the worker-side failure,
// stringified across the process boundary.
type Result struct {
	Err string `json:"err,omitempty"`
}
