package procpool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/ekerman/batchgen/augment"
	"github.com/ekerman/batchgen/shm"
	"github.com/ekerman/batchgen/tensor"
)

// IsWorker reports whether this process was launched as a pool worker.
func IsWorker() bool {
	return os.Getenv(childEnv) != ""
}

// workerContext is everything a worker initializes exactly once at start and
// then reuses for every task: the mapped segments, their array views and the
// reconstructed pipeline. Passing it explicitly keeps worker state out of
// globals.
type workerContext struct {
	pipeline augment.Pipeline
	segments []*shm.Segment
	inputs   []*tensor.Dense
	outputs  []*tensor.Dense
}

// RunWorker is the worker process body: handshake, then a task loop that ends
// cleanly when the parent closes our stdin. Any error is fatal to this worker
// only; the parent observes it as a transport error on the next dispatch.
func RunWorker() error {
	dec := json.NewDecoder(os.Stdin)
	enc := json.NewEncoder(os.Stdout)

	var init Init
	if err := dec.Decode(&init); err != nil {
		return fmt.Errorf("procpool worker: read init: %w", err)
	}
	ctx, err := newWorkerContext(init)
	if err != nil {
		return err
	}
	defer ctx.close()

	for {
		var task Task
		if err := dec.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("procpool worker: read task: %w", err)
		}
		var res Result
		if err := ctx.runTask(task); err != nil {
			res.Err = err.Error()
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("procpool worker: write result: %w", err)
		}
	}
}

func newWorkerContext(init Init) (*workerContext, error) {
	pipeline, err := augment.PipelineFromSpecs(init.Stages)
	if err != nil {
		return nil, fmt.Errorf("procpool worker: rebuild pipeline: %w", err)
	}
	ctx := &workerContext{pipeline: pipeline}

	attach := func(specs []ArraySpec, fd *int) ([]*tensor.Dense, error) {
		arrays := make([]*tensor.Dense, 0, len(specs))
		for _, spec := range specs {
			f := os.NewFile(uintptr(*fd), fmt.Sprintf("segment-%d", *fd))
			*fd++
			seg, err := shm.Attach(f, spec.NumBytes())
			if err != nil {
				return nil, err
			}
			ctx.segments = append(ctx.segments, seg)
			arr, err := tensor.FromBytes(tensor.DType(spec.DType), spec.Shape, seg.Bytes())
			if err != nil {
				return nil, err
			}
			arrays = append(arrays, arr)
		}
		return arrays, nil
	}

	fd := segmentFDStart
	if ctx.inputs, err = attach(init.Inputs, &fd); err != nil {
		ctx.close()
		return nil, fmt.Errorf("procpool worker: map inputs: %w", err)
	}
	if ctx.outputs, err = attach(init.Outputs, &fd); err != nil {
		ctx.close()
		return nil, fmt.Errorf("procpool worker: map outputs: %w", err)
	}
	return ctx, nil
}

// runTask shields the task loop from panics in stage code: the worker stays
// alive and reports the failure in its result frame instead of dying and
// surfacing as a transport error.
func (c *workerContext) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.run(task)
}

// run augments the task's rows in place: read the tuple from the shared
// input rows, apply the pipeline, write the result into the same rows of the
// shared outputs. Rows are disjoint across workers, so no synchronization is
// needed beyond the parent's dispatch barrier.
func (c *workerContext) run(task Task) error {
	rng := rand.New(rand.NewPCG(task.Seed, task.Stream))
	for _, row := range task.Rows {
		tuple := make([]*tensor.Dense, len(c.inputs))
		for k, a := range c.inputs {
			tuple[k] = a.Row(row)
		}
		res, err := c.pipeline.Apply(rng, tuple)
		if err != nil {
			return err
		}
		if len(res) != len(c.outputs) {
			return fmt.Errorf("pipeline returned %d arrays, have %d output buffers", len(res), len(c.outputs))
		}
		for k, r := range res {
			if err := c.outputs[k].SetRow(row, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *workerContext) close() {
	for _, seg := range c.segments {
		_ = seg.Close()
	}
}
