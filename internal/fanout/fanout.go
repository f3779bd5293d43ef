// Package fanout runs one task per item concurrently and joins the results.
package fanout

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type FailurePolicy int

const (
	// FailFast cancels outstanding work on the first failure and returns that error.
	FailFast FailurePolicy = iota
	// Settle lets every item finish and reports failures per item.
	Settle
)

type Options struct {
	// Workers caps concurrency. Set to <=0 to run every item at once.
	Workers int

	// RequestTimeout bounds each item. Set to <=0 to disable.
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Input  In
	Output Out
	Err    error
}

// ProcessAll runs fn over items and returns one Result per item, in input
// order. Under FailFast the first error is returned and no results are.
// Under Settle the returned error is only ever the caller's context error.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	out := make([]Result[In, Out], len(items))
	if len(items) == 0 {
		return out, ctx.Err()
	}

	workers := opts.Workers
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := processOne(runCtx, items[idx], fn, limiter, opts.RequestTimeout)
				out[idx] = res
				if res.Err != nil && opts.FailurePolicy == FailFast {
					fail(res.Err)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func processOne[In any, Out any](
	ctx context.Context,
	item In,
	fn func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
	timeout time.Duration,
) Result[In, Out] {
	res := Result[In, Out]{Input: item}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res.Output, res.Err = fn(reqCtx, item)
	return res
}
