package citation

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source is an incremental text stream. Recv returns io.EOF when the
// stream ends normally.
type Source interface {
	Recv() (string, error)
	Close()
}

// Demux reads src until it ends and returns the resulting events on a
// channel that is closed when the sequence terminates.
//
// On a normal end the buffered remainder is flushed as a final text event.
// A src error flushes the remainder and ends with an ErrModelStreamFailed
// error event. When ctx is cancelled Demux stops reading, emits nothing
// more and does not flush. src should be bound to ctx so a pending Recv
// returns once the consumer goes away. The consumer must either drain the
// channel or cancel ctx.
func Demux(ctx context.Context, src Source) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		defer src.Close()

		send := func(events []Event) bool {
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		var p Parser
		for {
			if ctx.Err() != nil {
				return
			}
			inc, err := src.Recv()
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				send(p.Flush())
				return
			}
			if err != nil {
				if send(p.Flush()) {
					send([]Event{Error(fmt.Errorf("%w: %w", ErrModelStreamFailed, err))})
				}
				return
			}
			if !send(p.Feed(inc)) {
				return
			}
		}
	}()
	return out
}

// Collect runs Demux to completion and returns every event.
func Collect(ctx context.Context, src Source) []Event {
	var events []Event
	for ev := range Demux(ctx, src) {
		events = append(events, ev)
	}
	return events
}
