package batchgen

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"
)

// pullResult is what crosses the handoff channel: a completed batch or a
// production failure, never both.
type pullResult struct {
	batch Batch
	err   error
}

// producer is the shared machinery of the background strategies: a capacity-1
// handoff channel, a stop channel and a terminal error. The production loop
// publishes into the slot and the consumer blocks on it, so a slow consumer
// stalls production at exactly one in-flight batch.
type producer struct {
	slot chan pullResult
	stop chan struct{}

	stopOnce sync.Once

	errMu sync.Mutex
	err   error

	log *slog.Logger
}

func newProducer(log *slog.Logger) *producer {
	return &producer{
		slot: make(chan pullResult, 1),
		stop: make(chan struct{}),
		log:  log,
	}
}

// publish offers res to the consumer, blocking until it is taken or the
// generator is stopped. Returns false once stopped. Selecting on stop here is
// what makes shutdown bounded: the producer can never be left stuck on a full
// slot.
func (p *producer) publish(res pullResult) bool {
	select {
	case p.slot <- res:
		return true
	case <-p.stop:
		return false
	}
}

// fail records a terminal error and delivers it through the slot.
func (p *producer) fail(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
	p.log.Error("production failed", "error", err)
	p.publish(pullResult{err: err})
}

// pull blocks for the next result. A closed slot means the producer exited;
// the recorded terminal error, or ErrClosed after a plain Close, is returned
// from then on.
func (p *producer) pull() (Batch, error) {
	res, ok := <-p.slot
	if !ok {
		p.errMu.Lock()
		defer p.errMu.Unlock()
		if p.err != nil {
			return nil, p.err
		}
		return nil, ErrClosed
	}
	return res.batch, res.err
}

// halt flips the stop signal. Idempotent.
func (p *producer) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *producer) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// newThreadGenerator builds the goroutine-pool strategy: one background
// producer loop that partitions each batch's rows into contiguous disjoint
// chunks, runs one worker goroutine per chunk against the shared output
// buffers, joins them, and publishes a defensive copy. The copy is mandatory:
// the buffers are reused by the next iteration while the consumer still holds
// the previous batch.
func (s *DataSource) newThreadGenerator(batchSize, workers int, log *slog.Logger) (*Generator, error) {
	outs, err := s.warmup(batchSize)
	if err != nil {
		return nil, err
	}
	chunks := splitRows(batchSize, workers)
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
			iterSeed := s.deriveSeed()

			var g errgroup.Group
			for ci, rows := range chunks {
				g.Go(func() (err error) {
					defer func() {
						if r := recover(); r != nil {
							err = &WorkerError{Worker: ci, Err: panicError(r)}
						}
					}()
					rng := rand.New(rand.NewPCG(iterSeed, uint64(ci)))
					if err := s.applyRows(rng, batch, outs, rows); err != nil {
						return &WorkerError{Worker: ci, Err: err}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				p.fail(err)
				return
			}
			if !p.publish(pullResult{batch: outs.Clone()}) {
				return
			}
		}
	}()

	log.Debug("acquired thread generator", "workers", len(chunks))

	release := func() error {
		p.halt()
		<-done
		log.Debug("thread generator released")
		return nil
	}
	return &Generator{pull: p.pull, release: release}, nil
}
