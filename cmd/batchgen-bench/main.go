// batchgen-bench pulls batches of random image-like data through a small
// augmentation pipeline and reports throughput, comparing the production
// strategies under identical settings.
package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ekerman/batchgen"
	"github.com/ekerman/batchgen/augment"
	"github.com/ekerman/batchgen/pkg/log"
)

type Config struct {
	Strategies string `envconfig:"BENCH_STRATEGIES" default:"local,thread,process"`
	BatchSize  int    `envconfig:"BENCH_BATCH_SIZE" default:"32"`
	Workers    int    `envconfig:"BENCH_WORKERS" default:"0"`
	Height     int    `envconfig:"BENCH_HEIGHT" default:"64"`
	Width      int    `envconfig:"BENCH_WIDTH" default:"64"`
	Pulls      int    `envconfig:"BENCH_PULLS" default:"50"`
	Seed       uint64 `envconfig:"BENCH_SEED" default:"1"`
	Verbose    bool   `envconfig:"BENCH_VERBOSE" default:"false"`
}

func main() {
	// must run before anything else: a re-executed pool worker never returns
	// from this call
	batchgen.ProcessPoolInit()

	zl := log.New()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		zl.Fatal().Err(err).Msg("load config")
	}

	engineLog := batchgen.NullLogger()
	if cfg.Verbose {
		engineLog = log.Slog(zl)
	}

	for _, name := range strings.Split(cfg.Strategies, ",") {
		strategy, err := parseStrategy(strings.TrimSpace(name))
		if err != nil {
			zl.Fatal().Err(err).Msg("bad strategy")
		}
		elapsed, err := run(cfg, strategy, engineLog)
		if err != nil {
			zl.Fatal().Err(err).Str("strategy", strategy.String()).Msg("benchmark failed")
		}
		records := cfg.Pulls * cfg.BatchSize
		zl.Info().
			Str("strategy", strategy.String()).
			Int("pulls", cfg.Pulls).
			Int("batch_size", cfg.BatchSize).
			Dur("elapsed", elapsed).
			Float64("records_per_sec", float64(records)/elapsed.Seconds()).
			Msg("strategy done")
	}
}

func run(cfg Config, strategy batchgen.Strategy, engineLog *slog.Logger) (time.Duration, error) {
	pipeline := augment.Pipeline{
		augment.FlipLR(),
		augment.Shift(10, augment.WithProb(0.8)),
	}
	src := batchgen.RandomSource(
		[]int{cfg.Height, cfg.Width},
		batchgen.WithPipeline(pipeline),
		batchgen.WithSeed(cfg.Seed),
		batchgen.WithLog(engineLog),
	)

	gen, err := src.BatchGenerator(cfg.BatchSize,
		batchgen.WithStrategy(strategy),
		batchgen.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return 0, err
	}
	defer gen.Close()

	start := time.Now()
	for i := 0; i < cfg.Pulls; i++ {
		if _, err := gen.Pull(); err != nil {
			return 0, fmt.Errorf("pull %d: %w", i, err)
		}
	}
	return time.Since(start), nil
}

func parseStrategy(name string) (batchgen.Strategy, error) {
	switch name {
	case "local":
		return batchgen.StrategyLocal, nil
	case "thread":
		return batchgen.StrategyThread, nil
	case "process":
		return batchgen.StrategyProcess, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}
