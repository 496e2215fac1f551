/*
Package events provides an in-memory event broker used to observe block
execution from outside the scheduler: a CLI watcher, a metrics exporter,
or an audit log can subscribe without the scheduler knowing they exist.

The broker is a simple fan-out: Publish sends to a buffered internal
channel, a single goroutine broadcasts each event to every subscriber's
own buffered channel, and a full subscriber buffer is skipped rather than
blocking the scheduler. Delivery is best-effort; nothing here is part of
block execution's deterministic outcome (spec.md §1 Non-goals).

Usage:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for event := range sub {
			fmt.Println(event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventChunkReplayed,
		Message: "chunk 3 replayed after a read-after-write conflict",
	})
*/
package events
