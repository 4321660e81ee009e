// Package parallel sends a batch of requests over a fixed number of
// workers. Results keep the order of the input.
package parallel

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/frankli0324/go-h1client/internal"
	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrSkipped is the error of requests never started, because of FailFast
// or because ctx was done first.
var ErrSkipped = errors.New("parallel: request not started")

type Options struct {
	Concurrency int // number of workers, default 1
	// FailFast stops starting new requests after the first failure.
	// requests already running are not canceled.
	FailFast bool
	// IsolatePools gives every worker its own connection pool, by default
	// all workers share the pool of the client.
	IsolatePools bool
	// Limiter paces request starts across all workers.
	Limiter *rate.Limiter
	// Handle consumes a response inside the worker and must close its
	// body. by default the body is read into [Result.Body].
	Handle func(i int, resp *http.Response) error
}

type Result struct {
	Response *http.Response // body already consumed
	Body     []byte
	Err      error
}

type Results []Result

// Err returns all failures combined, or nil.
func (rs Results) Err() error {
	var merr *multierror.Error
	for _, r := range rs {
		if r.Err != nil {
			merr = multierror.Append(merr, r.Err)
		}
	}
	return merr.ErrorOrNil()
}

// Do sends every request of reqs through client and waits for all of
// them. a failed request doesn't affect its siblings unless FailFast is
// set.
func Do(ctx context.Context, client *internal.Client, reqs []*http.Request, opts Options) Results {
	results := make(Results, len(reqs))
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	jobs := make(chan int)
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for i := range reqs {
			select {
			case jobs <- i:
			case <-stop:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		cl := client
		if opts.IsolatePools {
			cl = client.Clone()
		}
		g.Go(func() error {
			if opts.IsolatePools {
				defer cl.Close()
			}
			for i := range jobs {
				select {
				case <-stop: // drain what the feeder handed out before the halt
					continue
				default:
				}
				results[i] = run(ctx, cl, i, reqs[i], opts)
				if results[i].Err != nil && opts.FailFast {
					halt()
				}
			}
			return nil
		})
	}
	g.Wait()

	for i := range results {
		if !results[i].started() {
			results[i].Err = ErrSkipped
		}
	}
	return results
}

func (r Result) started() bool {
	return r.Response != nil || r.Err != nil
}

func run(ctx context.Context, cl *internal.Client, i int, req *http.Request, opts Options) (res Result) {
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(ctx); err != nil {
			return Result{Err: &http.Error{Kind: http.KindCanceled, Phase: http.PhaseResolving, Err: err}}
		}
	}
	resp, err := cl.CtxDo(ctx, req)
	if err != nil {
		return Result{Err: err}
	}
	res.Response = resp
	if opts.Handle != nil {
		res.Err = opts.Handle(i, resp)
		return res
	}
	defer resp.Body.Close()
	res.Body, res.Err = io.ReadAll(resp.Body)
	return res
}
