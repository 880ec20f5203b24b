package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/model"
)

// Step is one stage of the evaluation of a discovered URL.
type Step interface {
	// Do refines d. Ineligibility is recorded on d with Reject; an error
	// means the URL cannot be evaluated at all.
	Do(ctx context.Context, d *model.ResourceDecision) error

	// Name identifies the step in logs and errors.
	Name() string
}

// StepError reports the step that aborted the evaluation of a URL.
type StepError struct {
	Step string
	URL  string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed for %s: %v", e.Step, e.URL, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline runs its steps in order over one decision at a time. It holds
// no per-URL state and may be shared by concurrent workers.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-step trace output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New returns an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddSteps appends steps in evaluation order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute evaluates d. A rejected decision still flows through the
// remaining steps, since a URL that is not downloaded may be crawled. The
// first step error stops the evaluation and is returned as a *StepError.
// Cancellation is checked between steps.
func (p *Pipeline) Execute(ctx context.Context, d *model.ResourceDecision) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Do(ctx, d); err != nil {
			return &StepError{Step: step.Name(), URL: d.URL, Err: err}
		}
		p.logger.Log(ctx, log.LevelTrace, "step",
			"name", step.Name(),
			"url", d.URL,
			"eligible", d.Eligible,
		)
	}
	return nil
}

// String lists the step names, e.g. "path > admission > probe".
func (p *Pipeline) String() string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return strings.Join(names, " > ")
}
