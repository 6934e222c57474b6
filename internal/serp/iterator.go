package serp

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/pkg/ratelimit"
)

// Iterator is a lazy, pull-driven search. Each call to Next yields at most one
// result and fetches a new page only when the current one is used up. An
// Iterator must not be used from more than one goroutine.
type Iterator struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger
	pacer   *ratelimit.Limiter

	offset  int
	yielded int
	seen    map[string]struct{}

	pending []Result
	cur     Result
	fetched bool
	done    bool
	err     error
}

// Search prepares a search over fetcher. No request is made until Next is
// called. Invalid options surface from the first Next as ErrInvalidOptions.
func Search(fetcher Fetcher, opts Options) *Iterator {
	opts = opts.withDefaults()
	it := &Iterator{
		fetcher: fetcher,
		opts:    opts,
		logger:  opts.Logger.With("term", opts.Term, "strategy", fetcherName(fetcher)),
		pacer:   ratelimit.NewLimiter(opts.SleepInterval, opts.SleepJitter),
		offset:  opts.StartOffset,
		seen:    make(map[string]struct{}),
	}
	if err := opts.validate(); err != nil {
		it.fail(err)
	} else if fetcher == nil {
		it.fail(fmt.Errorf("%w: nil fetcher", ErrInvalidOptions))
	}
	return it
}

func fetcherName(f Fetcher) string {
	if f == nil {
		return ""
	}
	return f.Name()
}

// Next advances to the next result. It returns false when the target count
// is reached, the results are exhausted, the context ends or a fetch fails;
// Err distinguishes the cases.
func (it *Iterator) Next(ctx context.Context) bool {
	for {
		if len(it.pending) > 0 {
			it.cur = it.pending[0]
			it.pending = it.pending[1:]
			it.yielded++
			metrics.ResultsYieldedTotal.Inc()
			return true
		}
		if it.done || it.yielded >= it.opts.NumResults {
			it.done = true
			return false
		}
		if it.fetched {
			if err := it.pacer.Wait(ctx); err != nil {
				it.fail(err)
				return false
			}
		}
		newResults, err := it.fetchPage(ctx)
		if err != nil {
			it.fail(err)
			return false
		}
		if newResults == 0 {
			it.logger.Debug("results exhausted", "offset", it.offset, "yielded", it.yielded)
			it.done = true
			return false
		}
		it.offset += PageStride
	}
}

// fetchPage fetches the page at the current offset and queues its new
// results, stopping once the target count would be reached.
func (it *Iterator) fetchPage(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	want := it.opts.NumResults - it.yielded
	it.logger.Debug("fetching result page", "offset", it.offset, "num", want)

	page, err := it.fetcher.FetchPage(ctx, FetchRequest{
		Term:          it.opts.Term,
		Num:           want,
		Lang:          it.opts.Lang,
		Offset:        it.offset,
		Proxy:         it.opts.Proxy,
		Timeout:       it.opts.Timeout,
		Safe:          it.opts.Safe,
		SkipTLSVerify: it.opts.SkipTLSVerify,
		Region:        it.opts.Region,
		Render:        it.opts.Render,
	})
	it.fetched = true
	if err != nil {
		return 0, err
	}

	candidates, err := it.opts.Extractor.Extract(page.HTML)
	if err != nil {
		return 0, err
	}

	for _, c := range candidates {
		if len(it.pending) == want {
			break
		}
		link := DecodeLink(c.Href)
		if _, dup := it.seen[link]; dup && it.opts.Unique {
			metrics.DuplicatesSkippedTotal.Inc()
			continue
		}
		it.seen[link] = struct{}{}

		res := Result{URL: link}
		if it.opts.Advanced {
			res.Title = c.Title
			res.Description = c.Description
		}
		it.pending = append(it.pending, res)
	}
	return len(it.pending), nil
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.done = true
	it.pending = nil
}

// Result returns the current result. With Advanced unset only URL is filled.
func (it *Iterator) Result() Result { return it.cur }

// URL returns the current result's URL.
func (it *Iterator) URL() string { return it.cur.URL }

// Err returns the error that stopped the iteration, or nil when it ended
// because the target was reached or the results ran out.
func (it *Iterator) Err() error { return it.err }

// Offset returns the offset of the next page to fetch.
func (it *Iterator) Offset() int { return it.offset }

// Yielded returns how many results Next has produced so far.
func (it *Iterator) Yielded() int { return it.yielded }

// All adapts the iterator for range-over-func. A terminal error is yielded
// once with a zero Result. Breaking out of the loop stops fetching.
func (it *Iterator) All(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Result(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Result{}, err)
		}
	}
}

// Collect drains the iterator. Results yielded before a failure are returned
// alongside the error.
func (it *Iterator) Collect(ctx context.Context) ([]Result, error) {
	var out []Result
	for it.Next(ctx) {
		out = append(out, it.Result())
	}
	return out, it.Err()
}
