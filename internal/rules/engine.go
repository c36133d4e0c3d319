package rules

import (
	"log/slog"

	"github.com/solatis/logview/internal/source"
	"github.com/solatis/logview/internal/types"
)

// Engine starts processing runs. It holds only shared, read-only
// dependencies; every run gets its own FilterState, so one Engine may serve
// concurrent requests.
type Engine struct {
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a new rules engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process starts a run of view over reader with fresh variable memory.
// The run reads reader sequentially from its current offset.
func (e *Engine) Process(reader source.Reader, view *View) *Iterator {
	runID := types.NewRunID()
	e.metrics.runStarted()
	return &Iterator{
		reader:  reader,
		view:    view,
		state:   NewFilterState(),
		runID:   runID,
		logger:  e.logger.With("run_id", string(runID)),
		metrics: e.metrics,
	}
}

// Process starts a run with a default engine (no metrics).
func Process(reader source.Reader, view *View) *Iterator {
	return NewEngine().Process(reader, view)
}
