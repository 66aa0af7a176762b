package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/fmusim/internal/config"
	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/kernel"
)

var ErrStepRejected = errors.New("model rejected the step")

// Experiment binds a validated config to a model from the registry.
type Experiment struct {
	cfg   config.Config
	model Model
	log   *zap.Logger
	opts  []kernel.Option
}

func New(cfg config.Config, reg *Registry, log *zap.Logger, opts ...kernel.Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := reg.GetModel(cfg.Model, cfg.Params)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Experiment{
		cfg:   cfg,
		model: model,
		log:   log.With(zap.String("run", cfg.Label())),
		opts:  opts,
	}, nil
}

func (e *Experiment) Config() config.Config { return e.cfg }

// Model returns the configured backend.
func (e *Experiment) Model() Model { return e.model }

// Start initializes a kernel context for the run. The caller owns it and
// must call Terminate.
func (e *Experiment) Start() (*kernel.Context, error) {
	opts := []kernel.Option{
		kernel.WithLogger(e.log),
		kernel.WithLoggingOn(e.cfg.LoggingOn),
		kernel.WithInstanceName(e.cfg.Label()),
	}
	if len(e.cfg.LogCategories) > 0 {
		opts = append(opts, kernel.WithLogCategories(e.cfg.LogCategories...))
	}
	if len(e.cfg.Outputs) > 0 {
		opts = append(opts, kernel.WithOutputs(e.cfg.Outputs...))
	}
	opts = append(opts, e.opts...)

	c, err := kernel.Initialize(e.model, e.cfg.Experiment(), opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize %s: %w", e.cfg.Label(), err)
	}
	return c, nil
}

// Run drives the run to completion. A cancelled ctx stops it between steps;
// the partial result is still returned. A step the model discards ends the
// run, since the step size is fixed and there is nothing to retry with.
func (e *Experiment) Run(ctx context.Context) (*kernel.Result, error) {
	c, err := e.Start()
	if err != nil {
		return nil, err
	}

	for !c.Done() {
		select {
		case <-ctx.Done():
			e.log.Info("run cancelled", zap.Float64("t", c.Time()))
			c.Terminate()
			return c.Result(), ctx.Err()
		default:
		}

		status, err := c.Step()
		if err != nil {
			c.Terminate()
			if status == fmi.Discard {
				err = fmt.Errorf("%w: %w", ErrStepRejected, err)
			}
			return c.Result(), fmt.Errorf("run %s: %w", e.cfg.Label(), err)
		}
	}

	if err := c.Terminate(); err != nil {
		return c.Result(), fmt.Errorf("run %s: %w", e.cfg.Label(), err)
	}
	return c.Result(), nil
}
