package batchgen

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/multierr"

	"github.com/ekerman/batchgen/internal/procpool"
	"github.com/ekerman/batchgen/shm"
	"github.com/ekerman/batchgen/tensor"
)

// ProcessPoolInit must be the first call in the main (or TestMain) of any
// binary using StrategyProcess. When the current process is a re-executed
// pool worker it runs the worker loop and exits instead of returning; in the
// parent it is a no-op. Custom augmentation stages must be registered before
// this call so workers can rebuild them.
func ProcessPoolInit() {
	if !procpool.IsWorker() {
		return
	}
	if err := procpool.RunWorker(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

// newProcessGenerator builds the worker-process strategy. Input and output
// buffers live in shared memory segments created once here and mapped by
// every worker; each iteration overwrites the inputs in place with a fresh
// selection, dispatches disjoint row chunks to the pool, waits for the
// barrier and publishes a defensive copy of the outputs.
func (s *DataSource) newProcessGenerator(batchSize, workers int, log *slog.Logger) (*Generator, error) {
	if !procpool.Supported {
		return nil, configErrorf("process strategy needs shared mappings and descriptor inheritance, unavailable on this platform")
	}
	specs, ok := s.pipeline.Specs()
	if !ok {
		return nil, configErrorf("pipeline contains unregistered stages and cannot be rebuilt in worker processes")
	}

	outs, err := s.warmup(batchSize)
	if err != nil {
		return nil, err
	}
	probe, err := s.IndexBatch([]int{0})
	if err != nil {
		return nil, err
	}
	ins := make(Batch, len(probe))
	for i, r := range probe {
		ins[i] = tensor.New(r.DType(), append([]int{batchSize}, r.Shape()[1:]...)...)
	}

	var segments []*shm.Segment
	closeSegments := func() error {
		var err error
		for _, seg := range segments {
			err = multierr.Append(err, seg.Close())
		}
		return err
	}

	// shareAll gives each array a shared counterpart: same dtype, shape and
	// bytes, backed by a segment workers can map.
	shareAll := func(arrays Batch, kind string) (Batch, error) {
		shared := make(Batch, len(arrays))
		for i, a := range arrays {
			seg, err := shm.Create(fmt.Sprintf("batchgen-%s-%d", kind, i), a.NumBytes())
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
			view, err := tensor.FromBytes(a.DType(), a.Shape(), seg.Bytes())
			if err != nil {
				return nil, err
			}
			if err := view.CopyFrom(a); err != nil {
				return nil, err
			}
			shared[i] = view
		}
		return shared, nil
	}

	inArrays, err := shareAll(ins, "in")
	if err != nil {
		_ = closeSegments()
		return nil, fmt.Errorf("batchgen: share input buffers: %w", err)
	}
	outArrays, err := shareAll(outs, "out")
	if err != nil {
		_ = closeSegments()
		return nil, fmt.Errorf("batchgen: share output buffers: %w", err)
	}

	init := procpool.Init{Stages: specs}
	files := make([]*os.File, 0, len(segments))
	for _, a := range inArrays {
		init.Inputs = append(init.Inputs, procpool.SpecOf(a))
	}
	for _, a := range outArrays {
		init.Outputs = append(init.Outputs, procpool.SpecOf(a))
	}
	for _, seg := range segments {
		files = append(files, seg.File())
	}

	pool, err := procpool.Start(workers, init, files, log)
	if err != nil {
		_ = closeSegments()
		return nil, fmt.Errorf("batchgen: start worker pool: %w", err)
	}

	chunks := splitRows(batchSize, workers)
	emptyPipeline := len(specs) == 0
	p := newProducer(log)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(p.slot)
		for !p.stopped() {
			batch, err := s.RandomBatch(batchSize)
			if err != nil {
				p.fail(err)
				return
			}
			for i, a := range batch {
				if err := inArrays[i].CopyFrom(a); err != nil {
					p.fail(err)
					return
				}
			}
			// with no pipeline the freshly written inputs already are the
			// desired outputs, so dispatch is skipped entirely
			published := inArrays
			if !emptyPipeline {
				iterSeed := s.deriveSeed()
				tasks := make([]procpool.Task, len(chunks))
				for ci, rows := range chunks {
					tasks[ci] = procpool.Task{Rows: rows, Seed: iterSeed, Stream: uint64(ci)}
				}
				if err := pool.Dispatch(tasks); err != nil {
					p.fail(&WorkerError{Worker: -1, Err: err})
					return
				}
				published = outArrays
			}
			if !p.publish(pullResult{batch: published.Clone()}) {
				return
			}
		}
	}()

	log.Debug("acquired process generator", "workers", pool.Workers(), "segments", len(segments))

	release := func() error {
		p.halt()
		<-done
		// teardown problems are logged, not propagated: release must stay
		// safe to call on any exit path
		if err := pool.Close(); err != nil {
			log.Warn("worker pool teardown", "error", err)
		}
		if err := closeSegments(); err != nil {
			log.Warn("segment teardown", "error", err)
		}
		log.Debug("process generator released")
		return nil
	}
	return &Generator{pull: p.pull, release: release}, nil
}
