// Package asyncpool runs a task over a slice with bounded concurrency.
package asyncpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const maxConcurrency = 10

type Options[T any] struct {
	// Concurrency is clamped to [1, 10].
	Concurrency int
	// ShouldStop is polled before each item is picked up. Items already running finish.
	ShouldStop func() bool
	OnStarted  func(item T, index int)
	OnSettled  func(item T, index int)
}

// PanicError carries a panic raised by a task out of its worker goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// Run executes task for items until they are exhausted, ShouldStop reports true or ctx
// is done. Results come back in input order for the items that actually ran.
//
// A panicking task stops the pool and the panic is re-raised on the caller's
// goroutine as a *PanicError once every worker has returned. Use RunRecover to turn
// panics into per-item results instead.
func Run[T, R any](ctx context.Context, items []T, opts Options[T], task func(ctx context.Context, item T, index int) R) []R {
	return RunRecover(ctx, items, opts, task, nil)
}

// RunRecover is Run with a recover hook: a panic in task for an item becomes the result
// returned by recovered, and the remaining items keep running.
func RunRecover[T, R any](ctx context.Context, items []T, opts Options[T], task func(ctx context.Context, item T, index int) R, recovered func(item T, index int, p *PanicError) R) []R {
	if len(items) == 0 {
		return nil
	}

	workers := min(max(opts.Concurrency, 1), maxConcurrency, len(items))
	results := make([]R, len(items))
	ran := make([]bool, len(items))
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				if opts.ShouldStop != nil && opts.ShouldStop() {
					return nil
				}
				i := int(next.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				if opts.OnStarted != nil {
					opts.OnStarted(items[i], i)
				}
				res, perr := call(gctx, items[i], i, task)
				if perr != nil {
					if recovered == nil {
						return perr
					}
					res = recovered(items[i], i, perr)
				}
				results[i] = res
				ran[i] = true
				if opts.OnSettled != nil {
					opts.OnSettled(items[i], i)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		var perr *PanicError
		if errors.As(err, &perr) {
			panic(perr)
		}
	}

	out := make([]R, 0, len(items))
	for i, ok := range ran {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}

func call[T, R any](ctx context.Context, item T, index int, task func(ctx context.Context, item T, index int) R) (res R, perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			perr = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx, item, index), nil
}
