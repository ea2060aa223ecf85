package framework

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

// Page is one HTML page served by a Site
type Page struct {
	Title string
	Body  string
	Links []string
}

// Site serves a fixed set of HTML pages for crawling
type Site struct {
	*httptest.Server
	pages map[string]Page
}

// NewSite starts a server for pages keyed by path. Links are paths on the same site.
func NewSite(pages map[string]Page) *Site {
	s := &Site{pages: pages}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URLFor returns the absolute URL of path
func (s *Site) URLFor(path string) string {
	return s.Server.URL + path
}

func (s *Site) handle(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><p>%s</p>", page.Title, page.Body)
	for _, l := range page.Links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	b.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
