/*
Package gateway implements the Googol front end: the single entry point
clients use to index URLs, search and look up backlinks.

# Routing

Reads go to exactly one barrel. Every barrel holds a full replica, so the
gateway only has to pick a fast, live one:

	Search(terms) ──► selectNode ──► retry.Do(call, reconnect by name)
	                      ▲                    │
	                      │          ┌─────────┴──────────┐
	                      │          ▼                    ▼
	                      │    connection refused     other error
	                      │          │                    │
	                      └── evict, try next        returned to caller

Selection, over the barrels known to be active (or all barrels if none is):

 1. every candidate has a latency sample: lowest average wins
 2. otherwise: a random barrel that was never used
 3. otherwise: any barrel

Routed calls are serialized, retries included, so a slow barrel delays
other readers. Registration, size reports and heartbeats are not blocked by
routing.

# Failure detection

A heartbeat probes every barrel with IsActive on a fixed interval (3s by
default). A barrel whose probe fails is dropped from every tracking map,
unbound from the directory, and a fresh snapshot is pushed at once.

# Statistics

A snapshot holds raw search-term and consulted-URL counters plus one entry
per barrel (status label, average latency, sample count, reported sizes).
It is rebuilt on registration, eviction, size reports and after each routed
call, then pushed through an events.Broker. Subscribers that fail a
delivery are dropped; a new subscriber receives the current snapshot
immediately.

Pagination directives ("term[PAGE:2]") are stripped before terms are
counted and forwarded to the barrel unchanged.
*/
package gateway
