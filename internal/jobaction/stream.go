package jobaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/justsurfingit/jobops-pipeline/internal/asyncpool"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is one message of an action stream. Tallies are always set except on error
// events, which carry Code and Message instead.
type Event struct {
	Type      EventType `json:"type"`
	Action    Action    `json:"action,omitempty"`
	Requested int       `json:"requested"`
	Completed int       `json:"completed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Result    *Result   `json:"result,omitempty"`
	Results   []Result  `json:"results,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Stream validates the request synchronously, then runs the batch in the background.
// The channel yields started, one progress event per settled job and completed, then
// closes. If ctx ends first the stream stops picking up jobs and closes without a
// completed event. An unexpected failure ends the stream with a single error event.
func (e *Executor) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	ids, err := e.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan Event)
	go e.stream(ctx, req.Action, ids, out)
	return out, nil
}

func (e *Executor) stream(ctx context.Context, action Action, ids []string, out chan<- Event) {
	defer close(out)
	logger := e.logger.With("action", action, "requested", len(ids))

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// tally is guarded by mu; events are sent while holding it so completed counts
	// reach the consumer in order.
	var (
		mu      sync.Mutex
		results []Result
		ok      int
	)
	tally := func(t EventType) Event {
		return Event{
			Type:      t,
			Action:    action,
			Requested: len(ids),
			Completed: len(results),
			Succeeded: ok,
			Failed:    len(results) - ok,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job action stream failed", "panic", r)
			send(Event{Type: EventError, Code: CodeInternal, Message: fmt.Sprintf("unexpected failure: %v", r)})
		}
	}()

	if !send(tally(EventStarted)) {
		logger.Info("client disconnected before action stream started")
		return
	}

	b := e.newBatch(ctx, action)
	asyncpool.Run(ctx, ids, asyncpool.Options[string]{
		Concurrency: concurrency,
		ShouldStop:  func() bool { return ctx.Err() != nil },
	}, func(ctx context.Context, id string, _ int) struct{} {
		res := b.run(ctx, id)

		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if res.OK {
			ok++
		}
		ev := tally(EventProgress)
		ev.Result = &res
		send(ev)
		return struct{}{}
	})

	if ctx.Err() != nil {
		logger.Info("client disconnected during action stream", "completed", len(results), "succeeded", ok)
		return
	}

	done := tally(EventCompleted)
	done.Results = results
	send(done)
	logger.Info("job action stream completed", "succeeded", ok, "failed", len(results)-ok)
}
