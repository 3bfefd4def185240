package terrain

import (
	"context"
	"log/slog"
	"sync"
)

// Runner serialises generation requests with latest-wins semantics: a new
// Begin cancels whatever run is in flight, and only the most recent
// request can produce a model.
type Runner struct {
	pipeline *Pipeline
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	current *Model
}

func NewRunner(pipeline *Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		pipeline = NewPipeline(logger)
	}
	return &Runner{
		pipeline: pipeline,
		logger:   logger,
	}
}

// Ticket is a reserved slot in a Runner's request order.
type Ticket struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Begin reserves the next request slot and cancels the in-flight run.
// Callers that hand the run off to another goroutine call Begin first, so
// arrival order decides which request is latest.
func (r *Runner) Begin(ctx context.Context) *Ticket {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.cancel != nil {
		r.logger.Debug("superseding in-flight generation", "run", r.seq-1)
		r.cancel()
	}
	r.cancel = cancel
	return &Ticket{id: r.seq, ctx: runCtx, cancel: cancel}
}

// Run executes the pipeline for a ticket from Begin. It returns
// ErrCancelled if a later Begin or Cancel superseded the ticket, even if the
// pipeline had already finished.
func (r *Runner) Run(t *Ticket, p Params, width, height int) (*Model, error) {
	defer t.cancel()

	model, err := r.pipeline.Run(t.ctx, p.Clone(), width, height)

	r.mu.Lock()
	defer r.mu.Unlock()

	if t.id != r.seq {
		return nil, cancelled(context.Canceled)
	}
	r.cancel = nil
	if err != nil {
		return nil, err
	}
	r.current = model
	return model, nil
}

// Submit validates p, then runs it as the latest request. Invalid requests
// leave the in-flight run alone.
func (r *Runner) Submit(ctx context.Context, p Params, width, height int) (*Model, error) {
	if err := ValidateGrid(width, height); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return r.Run(r.Begin(ctx), p, width, height)
}

// Current is the model of the most recently completed latest run.
func (r *Runner) Current() *Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Cancel aborts the in-flight run, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
