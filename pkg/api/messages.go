package api

import "github.com/cuemby/googol/pkg/types"

// Directory messages

type RegisterRequest struct {
	Name   string       `json:"name"`
	Handle types.Handle `json:"handle"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type HandleResponse struct {
	Handle types.Handle `json:"handle"`
}

type ListRequest struct {
	Prefix string `json:"prefix"`
}

type ListResponse struct {
	Names []string `json:"names"`
}

// Queue messages

type URLRequest struct {
	URL string `json:"url"`
}

type URLsRequest struct {
	URLs []string `json:"urls"`
}

type SizeResponse struct {
	Size int `json:"size"`
}

type RegisterDownloaderRequest struct {
	Handle types.Handle `json:"handle"`
	ID     string       `json:"id"`
}

type HandleRequest struct {
	Handle types.Handle `json:"handle"`
}

// Barrel messages

type StorePageRequest struct {
	Page *types.CrawledPage `json:"page"`
}

type SearchRequest struct {
	Terms []string `json:"terms"`
}

type SearchResponse struct {
	Results []types.SearchResult `json:"results"`
}

type BoolResponse struct {
	Value bool `json:"value"`
}

type LinksResponse struct {
	Links []string `json:"links"`
}

// IndexSnapshot carries a copy of the inverted index or of the link graph
type IndexSnapshot struct {
	Entries map[string][]string `json:"entries"`
}

type MetadataSnapshot struct {
	Pages map[string]types.URLMetadata `json:"pages"`
}

type NameResponse struct {
	Name string `json:"name"`
}

// Gateway messages

type MessageResponse struct {
	Message string `json:"message"`
}

type IndexSizeRequest struct {
	Handle   types.Handle `json:"handle"`
	Inverted int          `json:"inverted"`
	Incoming int          `json:"incoming"`
}

// SubscribeRequest opens a statistics stream. An empty ID lets the gateway
// pick one; it is returned in the SubscriptionIDHeader response header.
type SubscribeRequest struct {
	ID string `json:"id"`
}

type UnsubscribeRequest struct {
	ID string `json:"id"`
}

// Stop-word messages

type ProcessDocRequest struct {
	URL   string   `json:"url"`
	Words []string `json:"words"`
}

type WordsResponse struct {
	Words []string `json:"words"`
}
