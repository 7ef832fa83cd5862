package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/can1357/retro/internal/compiler"
	"github.com/can1357/retro/internal/emit"
	"github.com/can1357/retro/internal/store"
)

// Kind classifies a document.
type Kind string

const (
	KindSchema Kind = "schema"
	KindRules  Kind = "rules"
)

// Status is the outcome of one document.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of processing one document.
type Result struct {
	Path      string
	Kind      Kind
	Status    Status
	Namespace string

	// Outputs lists the files the document renders to, whether or not they
	// were written by this run.
	Outputs []string

	// Functions is the number of matcher functions a rule document emitted.
	Functions int

	Err error
}

// Summary is the outcome of one batch.
type Summary struct {
	RunID     string
	Results   []Result
	Generated int
	Skipped   int
	Failed    int
}

// OK reports whether no document failed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusGenerated:
		s.Generated++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Options configure a batch.
type Options struct {
	// IncludeDir is the directory name schema namespaces are derived below.
	IncludeDir string

	// ManagedDir receives managed output. Empty writes it beside the document.
	ManagedDir string

	// OperatorDocument is the schema document declaring the operator enum
	// named OperatorEnum. Required when the batch contains rule documents.
	OperatorDocument string
	OperatorEnum     string

	// Includes are prepended to every native header.
	Includes []string

	// DryRun renders every document without writing outputs or touching
	// the cache.
	DryRun bool

	// Force regenerates documents even when their fingerprint is cached.
	Force bool
}

// Recorder observes batch progress. Implemented by metrics.Collector.
type Recorder interface {
	ObserveDocument(kind, result string, elapsed time.Duration)
	AddRuleFunctions(n int)
	ObserveRun(generated, skipped, failed int)
}

// RunLog persists finished batches. Implemented by *store.Store.
type RunLog interface {
	LogRun(ctx context.Context, run store.Run) (store.Run, error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDocument(string, string, time.Duration) {}
func (nopRecorder) AddRuleFunctions(int)                          {}
func (nopRecorder) ObserveRun(int, int, int)                      {}

// Engine runs batches. It holds no declaration or rule state between
// runs; only the cache carries fingerprints across them.
type Engine struct {
	opts       Options
	cache      Cache
	runLog     RunLog
	ids        RunIDGenerator
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
	generators []emit.Generator
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the fingerprint cache. Default: a fresh MemoryCache.
func WithCache(c Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithRunLog records every finished batch.
func WithRunLog(l RunLog) Option {
	return func(e *Engine) {
		e.runLog = l
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithRecorder sets the progress observer.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock sets the time source used to measure document durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine.
func New(opts Options, logger zerolog.Logger, options ...Option) *Engine {
	if opts.IncludeDir == "" {
		opts.IncludeDir = "include"
	}
	if opts.OperatorEnum == "" {
		opts.OperatorEnum = "op"
	}
	e := &Engine{
		opts:       opts,
		cache:      NewMemoryCache(),
		ids:        UUIDv7Generator{},
		recorder:   nopRecorder{},
		logger:     logger,
		now:        time.Now,
		generators: emit.Generators(emit.Options{Includes: opts.Includes}),
	}
	for _, opt := range options {
		opt(e)
	}
	if opts.DryRun {
		e.cache = nopCache{}
	}
	return e
}

// Run processes paths as one batch: schema documents first, then the
// operator document, then rule documents, each group in path order.
// Document failures are reported in the Summary; Run itself fails only
// when ctx is cancelled or the run log cannot be written.
func (e *Engine) Run(ctx context.Context, paths []string) (Summary, error) {
	sum := Summary{RunID: e.ids.Generate()}
	log := e.logger.With().Str("run_id", sum.RunID).Logger()

	var schemas, ruleDocs []string
	for _, p := range paths {
		if compiler.IsRuleDocument(p) {
			ruleDocs = append(ruleDocs, p)
		} else {
			schemas = append(schemas, p)
		}
	}
	sort.Strings(schemas)
	sort.Strings(ruleDocs)

	log.Debug().Int("schemas", len(schemas)).Int("rules", len(ruleDocs)).Msg("batch starting")

	for _, p := range schemas {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.add(e.finish(log, e.schema(ctx, p)))
	}

	if len(ruleDocs) > 0 {
		ops := e.operators()
		if ops.err != nil {
			log.Error().Err(ops.err).Str("document", e.opts.OperatorDocument).Msg("operator document failed")
		}
		for _, p := range ruleDocs {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			sum.add(e.finish(log, e.rules(ctx, p, ops)))
		}
	}

	e.recorder.ObserveRun(sum.Generated, sum.Skipped, sum.Failed)
	if e.runLog != nil && !e.opts.DryRun {
		_, err := e.runLog.LogRun(ctx, store.Run{
			ID:        sum.RunID,
			Generated: sum.Generated,
			Skipped:   sum.Skipped,
			Failed:    sum.Failed,
		})
		if err != nil {
			return sum, fmt.Errorf("log run: %w", err)
		}
	}

	log.Info().
		Int("generated", sum.Generated).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("batch complete")
	return sum, nil
}

// finish logs and meters a document result.
func (e *Engine) finish(log zerolog.Logger, t timed) Result {
	r := t.Result
	e.recorder.ObserveDocument(string(r.Kind), string(r.Status), t.elapsed)

	ev := log.Info()
	switch r.Status {
	case StatusSkipped:
		ev = log.Debug()
	case StatusFailed:
		ev = log.Error().Err(r.Err)
	}
	ev = ev.Str("document", r.Path).Str("status", string(r.Status))
	if r.Namespace != "" {
		ev = ev.Str("namespace", r.Namespace)
	}
	if r.Kind == KindRules && r.Status == StatusGenerated {
		ev = ev.Int("functions", r.Functions)
	}
	ev.Dur("elapsed", t.elapsed).Msg("document processed")
	return r
}

// timed pairs a result with its processing time.
type timed struct {
	Result
	elapsed time.Duration
}
