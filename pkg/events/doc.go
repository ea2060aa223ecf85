/*
Package events delivers statistics snapshots from the gateway to its
subscribers.

Subscribers are keyed by id, so a client that subscribes twice is only
called once per update. Delivery is synchronous and in id order; every
callback gets its own copy of the snapshot and a bounded timeout.

	Gateway ── Publish(stats) ──► Broker
	                                │
	              ┌─────────────────┼─────────────────┐
	              ▼                 ▼                 ▼
	         sub "a" ok        sub "b" error     sub "c" ok
	                                │
	                          removed from set

A subscriber whose callback returns an error is removed; the broker never
retries it. Clients re-subscribe to resume updates.
*/
package events
