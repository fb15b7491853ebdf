package batchgen

import (
	"log/slog"
	"math/rand/v2"
)

// newLocalGenerator builds the single-context strategy: every Pull draws a
// selection, augments record by record and fills the reused output buffers in
// the calling goroutine. The buffers are returned directly, so each Pull
// invalidates the previous result.
func (s *DataSource) newLocalGenerator(batchSize int, log *slog.Logger) (*Generator, error) {
	outs, err := s.warmup(batchSize)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(s.deriveSeed(), 0))
	rows := splitRows(batchSize, 1)[0]

	log.Debug("acquired local generator")

	pull := func() (b Batch, err error) {
		defer func() {
			if r := recover(); r != nil {
				b, err = nil, panicError(r)
			}
		}()
		batch, err := s.RandomBatch(batchSize)
		if err != nil {
			return nil, err
		}
		if err := s.applyRows(rng, batch, outs, rows); err != nil {
			return nil, err
		}
		return outs, nil
	}
	return &Generator{pull: pull, release: func() error { return nil }}, nil
}
