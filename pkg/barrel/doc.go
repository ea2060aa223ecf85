/*
Package barrel implements the Googol storage node.

Every barrel holds a complete replica of three maps, guarded by one mutex:

  - inverted index: lowercase term → set of URLs containing it
  - incoming links: target URL → set of URLs linking to it
  - page metadata:  URL → title and citation

# Join protocol

A barrel starts SYNCHING and becomes ACTIVE exactly once:

	┌──────────┐  register with gateway, report 0/0
	│ SYNCHING │  for each Barrel-* peer (sorted, self skipped):
	│          │      peer ACTIVE? pull index, links, metadata; merge; stop
	└────┬─────┘  none reachable or active: start as first barrel
	     │
	┌────▼─────┐  report real sizes to the gateway
	│  ACTIVE  │  AddBarrel(self) on every Downloader-*
	└──────────┘

StorePage calls that arrive while SYNCHING are dropped and never replayed.
Pages written to other barrels during that window reach the new barrel only if
they were already in the peer snapshot it copied.

Merges are set unions per key, so applying the same snapshot twice leaves the
maps unchanged. Metadata is last-writer-wins.

# Reporting

After every stored page the barrel schedules a size report to the gateway. A
single background loop coalesces these reports so StorePage never waits on the
gateway.
*/
package barrel
