// Package multicast implements reliable fan-out of crawled pages to every
// known barrel.
//
// Delivery runs in rounds. A round tries every pending target through a
// worker pool bounded by MaxWorkers and waits at most AckTimeout per attempt.
// Targets that fail form the pending set of the next round, after a global
// backoff of BackoffFactor^round * AckTimeout. After MaxRetries rounds the
// remaining targets are returned; the caller decides whether to evict them.
package multicast
