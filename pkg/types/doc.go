/*
Package types defines the data model and service contracts shared by every
Googol role.

# Data model

  - CrawledPage: what a downloader extracts from one URL (title, words, links)
  - URLMetadata: title and citation a barrel keeps per indexed URL
  - SearchResult: one ordered entry of a search answer
  - NodeState: SYNCHING or ACTIVE activation state of a barrel
  - BarrelStats, Statistics: the snapshot the gateway pushes to subscribers
  - Handle: {name, addr} pair stored in the service directory

# Service contracts

Each role exposes one interface (QueueService, BarrelService,
DownloaderService, GatewayService, StopWordsService, DirectoryService).
Implementations live in the role packages; pkg/client provides gRPC-backed
implementations of the same interfaces, so components are wired identically
in-process (tests) and across the network (cmd/googol).

A Dialer turns a Handle into a client for a given role:

	dir.Resolve(ctx, types.QueueName)  ──►  Handle{Name, Addr}
	                                             │
	dialer.DialQueue(handle)           ──►  QueueService

# Directory names

Singletons are bound under fixed names (QueueName, GatewayName,
StopWordsName). Barrels and downloaders are bound under BarrelPrefix and
DownloaderPrefix followed by their id, so peers can be enumerated with
DirectoryService.List.
*/
package types
