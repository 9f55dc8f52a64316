package events

import (
	"context"
	"log"
	"time"
)

// publishTimeout is the max time allowed for a single async publish. Used by
// PublishAsync and by ShutdownDrainDuration.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops
// before closing the publisher, so in-flight async publishes can complete.
// Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// Async wraps a Publisher so Publish returns immediately and the write
// happens on a goroutine with a bounded timeout. Used in the request path so
// a slow bus never blocks login/refresh/logout.
type Async struct {
	inner Publisher
}

// NewAsync returns the async wrapper, or nil when inner is nil.
func NewAsync(inner Publisher) *Async {
	if inner == nil {
		return nil
	}
	return &Async{inner: inner}
}

// Publish hands the event to a goroutine and returns nil.
func (a *Async) Publish(ctx context.Context, e Event) error {
	PublishAsync(a.inner, e)
	return nil
}

// Close closes the wrapped publisher.
func (a *Async) Close() error {
	return a.inner.Close()
}

// PublishAsync runs Publish in a goroutine so the caller is not blocked.
// Errors are logged and dropped; events are a notification side channel, not
// state.
//
// p may be nil; PublishAsync returns immediately without starting a
// goroutine. The goroutine uses context.Background() with publishTimeout so
// request cancellation does not abort an in-flight publish.
func PublishAsync(p Publisher, e Event) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, e); err != nil {
			log.Printf("events: async publish failed: %v", err)
		}
	}()
}
