/*
Package downloader implements the Googol crawl worker.

The queue pushes a URL through TakeURL; the worker runs the pipeline on its
own goroutine so the push returns at once:

	TakeURL(url)
	  └─► blacklisted extension?            drop
	      first barrel has url as a source?  drop (already crawled)
	      dedup check failed?                re-queue
	      fetch (timeout, 4xx, non-HTML)     timeout: re-queue, others: drop
	      tokenize body; no words?           done
	      stop-word learner                  fire and forget
	      no barrels known?                  re-queue
	      multicast page to barrels          evict barrels that failed every round
	      queue outgoing links
	  finally: re-queue if marked, NotifyDownloaderAvailable (exactly once)

Fetching uses net/http with a per-host token bucket (golang.org/x/time/rate),
parsing uses golang.org/x/net/html and goquery. Tokens are lowercase runs of
letters; every other rune separates words.
*/
package downloader
