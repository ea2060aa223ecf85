/*
Package health provides the liveness checks Googol nodes run against each
other.

# Architecture

	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│ Probe  │  │ TCP  │  │ Ready  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	 IsActive   Connect    GET /ready
	  (gRPC)    :port     on metrics port

## Probe checks

A ProbeChecker wraps any remote call. The gateway heartbeat builds one per
registered barrel around BarrelService.IsActive; a barrel whose Status turns
unhealthy is evicted.

## TCP checks

Used at startup to wait until the registry accepts connections before a
node tries to bind its name.

## Readiness checks

Used by `googol status` to read the /ready endpoint each node serves next
to /metrics. The JSON answer names the role and, when the node is not
ready, what it is waiting for (a barrel reports its join state).

# Status tracking

Status counts consecutive failures. With Config.Retries set to 1 (the
default) a single failed check marks the peer unhealthy; higher values
tolerate transient blips:

	result ok      → Failures = 0, Healthy = true
	result failed  → Failures++
	failures >= Retries → Healthy = false

Run applies Config.Timeout to a single check. WaitHealthy repeats a check
every Config.Interval until it passes or the context ends.
*/
package health
