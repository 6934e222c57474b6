// Package pipeline runs searches end to end. It picks the fetch strategy,
// drives one iterator per term and hands every result to the store and the
// caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/serpent/internal/serp"
	"github.com/FranksOps/serpent/internal/storage"
)

// ErrOutput marks failures to store or emit a result. They stop every
// running search, unlike a failed search which only ends its own term.
var ErrOutput = errors.New("pipeline: output failed")

// Sink receives each result in yield order. Calls are serialized.
type Sink func(*storage.Record) error

// Config configures a Pipeline.
type Config struct {
	// Options is the template for every search; Term is set per run.
	Options serp.Options
	// Direct and Render are the two fetch strategies. Options.Render picks
	// which one runs; only that one is required.
	Direct serp.Fetcher
	Render serp.Fetcher
	// Store, when set, persists every yielded result.
	Store storage.Backend
	// Concurrency bounds how many searches RunAll drives at once. Defaults to 1.
	Concurrency int
	Logger      *slog.Logger
}

// Outcome describes one finished search.
type Outcome struct {
	Term     string
	Results  int
	Duration time.Duration
	Err      error
}

// Pipeline executes searches with a fixed strategy and destination.
type Pipeline struct {
	config  Config
	fetcher serp.Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
}

// New validates the strategy selection and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Options.Logger == nil {
		cfg.Options.Logger = cfg.Logger
	}

	fetcher := cfg.Direct
	if cfg.Options.Render {
		fetcher = cfg.Render
	}
	if fetcher == nil {
		name := "direct"
		if cfg.Options.Render {
			name = "render"
		}
		return nil, fmt.Errorf("pipeline: %s strategy selected but not configured", name)
	}

	return &Pipeline{
		config:  cfg,
		fetcher: fetcher,
		logger:  cfg.Logger.With("strategy", fetcher.Name()),
	}, nil
}

// Strategy names the fetch strategy in use.
func (p *Pipeline) Strategy() string { return p.fetcher.Name() }

// Run executes a single search and returns how many results it yielded.
// Results already emitted stand when the search later fails.
func (p *Pipeline) Run(ctx context.Context, term string, sink Sink) (int, error) {
	opts := p.config.Options
	opts.Term = term

	start := time.Now()
	it := serp.Search(p.fetcher, opts)
	n := 0
	for it.Next(ctx) {
		res := it.Result()
		rec := &storage.Record{
			ID:          uuid.NewString(),
			Query:       term,
			Rank:        it.Yielded(),
			Offset:      opts.StartOffset,
			URL:         res.URL,
			Title:       res.Title,
			Description: res.Description,
			Lang:        opts.Lang,
			Region:      opts.Region,
			Strategy:    p.fetcher.Name(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := p.emit(ctx, rec, sink); err != nil {
			return n, err
		}
		n++
	}
	if err := it.Err(); err != nil {
		p.logger.Warn("search failed", "term", term, "results", n, "offset", it.Offset(), "error", err)
		return n, fmt.Errorf("pipeline: search %q: %w", term, err)
	}

	p.logger.Info("search complete", "term", term, "results", n, "duration", time.Since(start))
	return n, nil
}

func (p *Pipeline) emit(ctx context.Context, rec *storage.Record, sink Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Store != nil {
		if err := p.config.Store.Save(ctx, rec); err != nil {
			return fmt.Errorf("%w: save %s: %w", ErrOutput, rec.URL, err)
		}
	}
	if sink != nil {
		if err := sink(rec); err != nil {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}
	return nil
}

// RunAll searches every term, up to Concurrency at a time. Outcomes are
// returned in term order. A failed search is recorded in its Outcome and
// joined into the returned error; an ErrOutput failure cancels the rest.
func (p *Pipeline) RunAll(ctx context.Context, terms []string, sink Sink) ([]Outcome, error) {
	outcomes := make([]Outcome, len(terms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i, term := range terms {
		g.Go(func() error {
			start := time.Now()
			n, err := p.Run(gctx, term, sink)
			outcomes[i] = Outcome{Term: term, Results: n, Duration: time.Since(start), Err: err}
			if errors.Is(err, ErrOutput) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return outcomes, errors.Join(errs...)
}
