/*
Package queue implements the Googol work queue: a FIFO of pending URLs and a
FIFO of idle downloaders, matched under a single mutex.

	AddURL / AddURLs ───────────┐
	RegisterDownloader ─────────┼──► assignWork ──► downloader.TakeURL(url)
	NotifyDownloaderAvailable ──┘

Work is pushed: downloaders never poll. A downloader leaves the idle FIFO when
it receives a URL and only returns after NotifyDownloaderAvailable. When a push
fails, the URL goes back to the front of the FIFO and that downloader sits out
until it reports in again.
*/
package queue
