// Package kafkasource feeds a batchgen.BufferSource from a Kafka topic of
// encoded record tuples, turning the composite-source layer into a streaming
// ingestion path.
package kafkasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ekerman/batchgen"
	"github.com/ekerman/batchgen/codec"
	"github.com/ekerman/batchgen/tensor"
)

// Decoder turns one Kafka record value into a record tuple.
type Decoder = codec.Deserializer[[]*tensor.Dense]

// Ingest consumes a topic and appends each decoded tuple to its destination
// buffer. Decode failures are logged and counted, never fatal: the stream
// keeps flowing past a bad record.
type Ingest struct {
	client *kgo.Client
	dst    *batchgen.BufferSource
	decode Decoder
	log    *slog.Logger

	ingested atomic.Int64
	rejected atomic.Int64
}

type config struct {
	group  string
	decode Decoder
	log    *slog.Logger
}

// Option configures an Ingest.
type Option func(*config)

// WithGroup joins the given consumer group instead of consuming standalone.
var WithGroup = func(group string) Option {
	return func(c *config) {
		c.group = group
	}
}

// WithDecoder replaces the default codec.Tuple decoder.
var WithDecoder = func(d Decoder) Option {
	return func(c *config) {
		c.decode = d
	}
}

// WithLog sets the logger.
var WithLog = func(log *slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// New connects to the brokers and prepares ingestion of topic into dst.
func New(brokers []string, topic string, dst *batchgen.BufferSource, opts ...Option) (*Ingest, error) {
	cfg := config{
		decode: codec.Tuple.Deserializer,
		log:    batchgen.NullLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
	}
	if cfg.group != "" {
		kopts = append(kopts, kgo.ConsumerGroup(cfg.group))
	}
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("kafkasource: connect: %w", err)
	}
	return &Ingest{
		client: client,
		dst:    dst,
		decode: cfg.decode,
		log:    cfg.log.With("topic", topic),
	}, nil
}

// Run polls until ctx is cancelled, appending every decoded tuple to the
// destination buffer.
func (in *Ingest) Run(ctx context.Context) error {
	for {
		fetches := in.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.Canceled) {
					return nil
				}
			}
			return fmt.Errorf("kafkasource: poll: %w", errs[0].Err)
		}

		var iterErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if iterErr != nil {
				return
			}
			switch err := in.handle(rec.Value); {
			case errors.Is(err, errAppend):
				iterErr = err
			case err != nil:
				in.log.Warn("dropping undecodable record",
					"partition", rec.Partition, "offset", rec.Offset, "error", err)
			}
		})
		if iterErr != nil {
			return iterErr
		}
	}
}

var errAppend = errors.New("kafkasource: append")

// handle decodes one record value and appends the tuple. A decode failure is
// counted and reported for logging only; an append failure means the stream
// and the buffer disagree on tuple shape and wraps errAppend, which stops the
// ingestion loop.
func (in *Ingest) handle(value []byte) error {
	tuple, err := in.decode(value)
	if err != nil {
		in.rejected.Add(1)
		return err
	}
	if err := in.dst.Append(tuple...); err != nil {
		return fmt.Errorf("%w: %v", errAppend, err)
	}
	in.ingested.Add(1)
	return nil
}

// Ingested returns the count of tuples appended so far.
func (in *Ingest) Ingested() int64 { return in.ingested.Load() }

// Rejected returns the count of records dropped for decode failures.
func (in *Ingest) Rejected() int64 { return in.rejected.Load() }

// Close releases the Kafka client. Call after Run has returned.
func (in *Ingest) Close() {
	in.client.Close()
}
