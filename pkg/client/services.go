package client

import (
	"context"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/types"
	"google.golang.org/protobuf/types/known/emptypb"
)

var empty = &emptypb.Empty{}

// Directory is a directory client
type Directory struct {
	caller
}

func (d *Directory) Register(ctx context.Context, name string, handle types.Handle) error {
	_, err := invoke[emptypb.Empty](ctx, d.caller, api.MethodRegister, &api.RegisterRequest{Name: name, Handle: handle})
	return err
}

func (d *Directory) Unregister(ctx context.Context, name string) error {
	_, err := invoke[emptypb.Empty](ctx, d.caller, api.MethodUnregister, &api.NameRequest{Name: name})
	return err
}

func (d *Directory) Resolve(ctx context.Context, name string) (types.Handle, error) {
	resp, err := invoke[api.HandleResponse](ctx, d.caller, api.MethodResolve, &api.NameRequest{Name: name})
	if err != nil {
		return types.Handle{}, err
	}
	return resp.Handle, nil
}

func (d *Directory) List(ctx context.Context, prefix string) ([]string, error) {
	resp, err := invoke[api.ListResponse](ctx, d.caller, api.MethodList, &api.ListRequest{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Queue is a work queue client
type Queue struct {
	caller
}

func (q *Queue) AddURL(ctx context.Context, url string) error {
	_, err := invoke[emptypb.Empty](ctx, q.caller, api.MethodAddURL, &api.URLRequest{URL: url})
	return err
}

func (q *Queue) AddURLs(ctx context.Context, urls []string) error {
	_, err := invoke[emptypb.Empty](ctx, q.caller, api.MethodAddURLs, &api.URLsRequest{URLs: urls})
	return err
}

func (q *Queue) GetQueueSize(ctx context.Context) (int, error) {
	resp, err := invoke[api.SizeResponse](ctx, q.caller, api.MethodGetQueueSize, empty)
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (q *Queue) RegisterDownloader(ctx context.Context, handle types.Handle, id string) error {
	_, err := invoke[emptypb.Empty](ctx, q.caller, api.MethodRegisterDownloader, &api.RegisterDownloaderRequest{Handle: handle, ID: id})
	return err
}

func (q *Queue) NotifyDownloaderAvailable(ctx context.Context, handle types.Handle) error {
	_, err := invoke[emptypb.Empty](ctx, q.caller, api.MethodNotifyDownloaderAvailable, &api.HandleRequest{Handle: handle})
	return err
}

// Barrel is a storage node client
type Barrel struct {
	caller
}

func (b *Barrel) StorePage(ctx context.Context, page *types.CrawledPage) error {
	_, err := invoke[emptypb.Empty](ctx, b.caller, api.MethodStorePage, &api.StorePageRequest{Page: page})
	return err
}

func (b *Barrel) Search(ctx context.Context, terms []string) ([]types.SearchResult, error) {
	resp, err := invoke[api.SearchResponse](ctx, b.caller, api.MethodBarrelSearch, &api.SearchRequest{Terms: terms})
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Results), nil
}

func (b *Barrel) IsURLInBarrel(ctx context.Context, url string) (bool, error) {
	resp, err := invoke[api.BoolResponse](ctx, b.caller, api.MethodIsURLInBarrel, &api.URLRequest{URL: url})
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (b *Barrel) GetIncomingLinks(ctx context.Context, url string) ([]string, error) {
	resp, err := invoke[api.LinksResponse](ctx, b.caller, api.MethodBarrelIncomingLinks, &api.URLRequest{URL: url})
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Links), nil
}

func (b *Barrel) GetInvertedIndex(ctx context.Context) (map[string][]string, error) {
	resp, err := invoke[api.IndexSnapshot](ctx, b.caller, api.MethodGetInvertedIndex, empty)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (b *Barrel) GetIncomingLinksMap(ctx context.Context) (map[string][]string, error) {
	resp, err := invoke[api.IndexSnapshot](ctx, b.caller, api.MethodGetIncomingLinksMap, empty)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (b *Barrel) GetPageMetadata(ctx context.Context) (map[string]types.URLMetadata, error) {
	resp, err := invoke[api.MetadataSnapshot](ctx, b.caller, api.MethodGetPageMetadata, empty)
	if err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

func (b *Barrel) GetName(ctx context.Context) (string, error) {
	resp, err := invoke[api.NameResponse](ctx, b.caller, api.MethodGetName, empty)
	if err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (b *Barrel) IsActive(ctx context.Context) (bool, error) {
	resp, err := invoke[api.BoolResponse](ctx, b.caller, api.MethodIsActive, empty)
	if err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (b *Barrel) GetIndexSize(ctx context.Context) (int, error) {
	resp, err := invoke[api.SizeResponse](ctx, b.caller, api.MethodGetIndexSize, empty)
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// Downloader is a client for a downloader's callback surface
type Downloader struct {
	caller
}

func (d *Downloader) TakeURL(ctx context.Context, url string) error {
	_, err := invoke[emptypb.Empty](ctx, d.caller, api.MethodTakeURL, &api.URLRequest{URL: url})
	return err
}

func (d *Downloader) NotifyFinished(ctx context.Context) error {
	_, err := invoke[emptypb.Empty](ctx, d.caller, api.MethodNotifyFinished, empty)
	return err
}

func (d *Downloader) AddBarrel(ctx context.Context, handle types.Handle) error {
	_, err := invoke[emptypb.Empty](ctx, d.caller, api.MethodAddBarrel, &api.HandleRequest{Handle: handle})
	return err
}

// StopWords is a stop-word learner client
type StopWords struct {
	caller
}

func (s *StopWords) ProcessDoc(ctx context.Context, url string, uniqueWords []string) error {
	_, err := invoke[emptypb.Empty](ctx, s.caller, api.MethodProcessDoc, &api.ProcessDocRequest{URL: url, Words: uniqueWords})
	return err
}

func (s *StopWords) GetStopWords(ctx context.Context) ([]string, error) {
	resp, err := invoke[api.WordsResponse](ctx, s.caller, api.MethodGetStopWords, empty)
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Words), nil
}

// nonNil keeps empty answers distinguishable from failures after JSON decoding
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var (
	_ types.DirectoryService  = (*Directory)(nil)
	_ types.QueueService      = (*Queue)(nil)
	_ types.BarrelService     = (*Barrel)(nil)
	_ types.DownloaderService = (*Downloader)(nil)
	_ types.StopWordsService  = (*StopWords)(nil)
	_ types.Dialer            = (*Pool)(nil)
)
