package experiment

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/fmusim/internal/config"
	"github.com/san-kum/fmusim/internal/kernel"
)

// Outcome is the result of one run of a batch.
type Outcome struct {
	Config config.Config
	Result *kernel.Result
	Err    error
}

// RunBatch executes every run of b concurrently, each with its own model
// instance and kernel context. A failing run does not stop the others;
// its error is kept in its Outcome. Only cancellation of ctx aborts the
// batch.
//
// Observers passed through opts are shared by all runs and must be safe for
// concurrent use.
func RunBatch(ctx context.Context, b *config.Batch, reg *Registry, log *zap.Logger, opts ...kernel.Option) ([]Outcome, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := b.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	outcomes := make([]Outcome, len(b.Runs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, cfg := range b.Runs {
		g.Go(func() error {
			outcomes[i].Config = cfg

			exp, err := New(cfg, reg, log, opts...)
			if err != nil {
				outcomes[i].Err = err
				return nil
			}
			res, err := exp.Run(ctx)
			outcomes[i].Result = res
			outcomes[i].Err = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				log.Warn("run failed", zap.String("run", cfg.Label()), zap.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	return outcomes, err
}
