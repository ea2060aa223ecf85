package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

var (
	// ErrNotHTML is returned for responses whose content type is not text/html
	ErrNotHTML = errors.New("content is not html")

	// ErrEmptyBody is returned for pages without body text
	ErrEmptyBody = errors.New("empty body")
)

// StatusError is returned for client error responses other than 429
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// FetchConfig controls HTTP fetching
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	// RatePerHost limits requests per second to one host. Zero disables it.
	RatePerHost float64 `yaml:"rate_per_host"`
	Burst       int     `yaml:"burst"`
}

// DefaultFetchConfig returns a 5s timeout and a 5 MiB body limit
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "GoogolBot/1.0",
		MaxBodyBytes: 5 << 20,
		Burst:        1,
	}
}

// Document is the extracted content of a fetched page
type Document struct {
	URL   string
	Title string
	Text  string
	Links []string
}

// Fetcher downloads and extracts HTML pages
type Fetcher struct {
	client *http.Client
	config FetchConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher
func NewFetcher(cfg FetchConfig) *Fetcher {
	def := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch downloads rawURL and extracts title, body text and links.
// Client errors other than 429, non-HTML content and empty bodies are
// reported as permanent errors; timeouts surface as net.Error timeouts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if err := f.wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	if ct := strings.ToLower(resp.Header.Get("Content-Type")); !strings.Contains(ct, "text/html") {
		return nil, ErrNotHTML
	}

	root, err := html.Parse(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc := Extract(resp.Request.URL, goquery.NewDocumentFromNode(root))
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyBody
	}
	return doc, nil
}

func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.config.RatePerHost <= 0 {
		return nil
	}

	f.mu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.config.RatePerHost), f.config.Burst)
		f.limiters[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// Extract pulls the title, visible body text and absolute http(s) links out of doc
func Extract(base *url.URL, doc *goquery.Document) *Document {
	doc.Find("script, style, noscript, template").Remove()

	out := &Document{
		URL:   base.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	out.Text = visibleText(body.Nodes)

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if link != "" && !seen[link] {
			seen[link] = true
			out.Links = append(out.Links, link)
		}
	})

	return out
}

// visibleText joins text nodes with spaces so words in adjacent elements
// do not run together.
func visibleText(nodes []*html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}
