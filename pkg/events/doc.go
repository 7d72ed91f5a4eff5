/*
Package events fans scheduler lifecycle transitions out to subscribers.

The scheduler publishes one Event per transition:

	task.scheduled     admitted and queued
	task.rejected      not admitted; Message carries the reason
	task.started       pulled by a worker
	task.completed     outcome reported
	task.removed       withdrawn before it started
	task.expired       reservation reaped after its TTL
	models.retrained   batch retraining finished; Metadata["epochs"]

# Delivery

	Publish ──▶ [ queue 256 ] ──▶ run loop ──▶ subscriber channels (64 each)

Publish never blocks. The scheduler publishes while holding its lock, so a
full queue or a slow subscriber loses events rather than stalling
admission. Dropped counts every event discarded this way.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.TaskID, ev.Message)
		}
	}()

Stop closes every subscriber channel, which ends range loops like the one
above.
*/
package events
