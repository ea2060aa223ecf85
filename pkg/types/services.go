package types

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a directory name is not bound
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a peer that could not be reached
	ErrUnavailable = errors.New("unavailable")

	// ErrNoBarrels is returned when no storage node is known
	ErrNoBarrels = errors.New("no barrels available")
)

// DirectoryService binds names to handles
type DirectoryService interface {
	Register(ctx context.Context, name string, handle Handle) error
	Unregister(ctx context.Context, name string) error
	Resolve(ctx context.Context, name string) (Handle, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// QueueService is the work queue surface
type QueueService interface {
	AddURL(ctx context.Context, url string) error
	AddURLs(ctx context.Context, urls []string) error
	GetQueueSize(ctx context.Context) (int, error)
	RegisterDownloader(ctx context.Context, handle Handle, id string) error
	NotifyDownloaderAvailable(ctx context.Context, handle Handle) error
}

// BarrelService is the storage node surface
type BarrelService interface {
	StorePage(ctx context.Context, page *CrawledPage) error
	Search(ctx context.Context, terms []string) ([]SearchResult, error)
	IsURLInBarrel(ctx context.Context, url string) (bool, error)
	GetIncomingLinks(ctx context.Context, url string) ([]string, error)
	GetInvertedIndex(ctx context.Context) (map[string][]string, error)
	GetIncomingLinksMap(ctx context.Context) (map[string][]string, error)
	GetPageMetadata(ctx context.Context) (map[string]URLMetadata, error)
	GetName(ctx context.Context) (string, error)
	IsActive(ctx context.Context) (bool, error)
	GetIndexSize(ctx context.Context) (int, error)
}

// DownloaderService is the callback surface of a crawl worker
type DownloaderService interface {
	TakeURL(ctx context.Context, url string) error
	NotifyFinished(ctx context.Context) error
	AddBarrel(ctx context.Context, handle Handle) error
}

// StatisticsSubscriber receives statistics snapshots pushed by the gateway
type StatisticsSubscriber interface {
	SubscriberID() string
	OnStatisticsUpdated(ctx context.Context, stats *Statistics) error
}

// GatewayService is the front-end surface
type GatewayService interface {
	IndexURL(ctx context.Context, url string) (string, error)
	Search(ctx context.Context, terms []string) ([]SearchResult, error)
	GetIncomingLinks(ctx context.Context, url string) ([]string, error)
	RegisterBarrel(ctx context.Context, handle Handle) error
	UpdateBarrelIndexSize(ctx context.Context, handle Handle, invertedSize, incomingSize int) error
	Subscribe(ctx context.Context, sub StatisticsSubscriber) error
	Unsubscribe(ctx context.Context, id string) error
}

// StopWordsService learns stop words from document frequencies
type StopWordsService interface {
	ProcessDoc(ctx context.Context, url string, uniqueWords []string) error
	GetStopWords(ctx context.Context) ([]string, error)
}

// Dialer turns handles into service clients
type Dialer interface {
	DialQueue(handle Handle) (QueueService, error)
	DialBarrel(handle Handle) (BarrelService, error)
	DialDownloader(handle Handle) (DownloaderService, error)
	DialGateway(handle Handle) (GatewayService, error)
	DialStopWords(handle Handle) (StopWordsService, error)
}
