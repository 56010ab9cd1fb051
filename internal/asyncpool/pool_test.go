package asyncpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunKeepsInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}

	results := Run(context.Background(), items, Options[int]{Concurrency: 3}, func(ctx context.Context, item, index int) int {
		time.Sleep(time.Duration(item) * time.Millisecond)
		return item * 10
	})

	assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
}

func TestRunBoundsConcurrency(t *testing.T) {
	items := make([]int, 30)
	var active, peak atomic.Int32

	Run(context.Background(), items, Options[int]{Concurrency: 50}, func(ctx context.Context, item, index int) struct{} {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return struct{}{}
	})

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrency))
}

func TestRunShouldStopSkipsRemainingItems(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	var stop atomic.Bool
	var mu sync.Mutex
	var seen []string

	results := Run(context.Background(), items, Options[string]{
		Concurrency: 1,
		ShouldStop:  stop.Load,
	}, func(ctx context.Context, item string, index int) string {
		mu.Lock()
		seen = append(seen, item)
		mu.Unlock()
		if item == "b" {
			stop.Store(true)
		}
		return item
	})

	assert.Equal(t, []string{"a", "b"}, results)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRunHooks(t *testing.T) {
	var started, settled atomic.Int32

	Run(context.Background(), []int{1, 2, 3}, Options[int]{
		Concurrency: 2,
		OnStarted:   func(int, int) { started.Add(1) },
		OnSettled:   func(int, int) { settled.Add(1) },
	}, func(ctx context.Context, item, index int) int { return item })

	assert.Equal(t, int32(3), started.Load())
	assert.Equal(t, int32(3), settled.Load())
}

func TestRunEmptyAndCancelled(t *testing.T) {
	assert.Nil(t, Run(context.Background(), nil, Options[int]{}, func(ctx context.Context, item, index int) int { return item }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, []int{1, 2}, Options[int]{Concurrency: 1}, func(ctx context.Context, item, index int) int { return item })
	assert.Empty(t, results)
}

func TestRunReraisesPanicOnCaller(t *testing.T) {
	run := func() {
		Run(context.Background(), []int{1, 2, 3}, Options[int]{Concurrency: 2}, func(ctx context.Context, item, index int) int {
			if item == 2 {
				panic("boom")
			}
			return item
		})
	}

	defer func() {
		r := recover()
		perr, ok := r.(*PanicError)
		if assert.True(t, ok, "recovered %v", r) {
			assert.Equal(t, "boom", perr.Value)
			assert.Equal(t, "boom", perr.Error())
			assert.NotEmpty(t, perr.Stack)
		}
	}()
	run()
	t.Fatal("Run returned without panicking")
}

func TestRunRecoverKeepsGoing(t *testing.T) {
	results := RunRecover(context.Background(), []int{1, 2, 3}, Options[int]{Concurrency: 1}, func(ctx context.Context, item, index int) string {
		if item == 2 {
			panic("boom")
		}
		return "ok"
	}, func(item, index int, p *PanicError) string {
		return "recovered: " + p.Error()
	})

	assert.Equal(t, []string{"ok", "recovered: boom", "ok"}, results)
}
