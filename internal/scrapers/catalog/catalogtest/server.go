// Package catalogtest serves a fake product catalog over HTTP using the same markup
// the real catalog uses.
package catalogtest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Item is a product detail page. Price is written verbatim into the price attribute,
// an empty Name or Price leaves the respective element out of the page.
type Item struct {
	Name  string
	Price string
}

// Catalog is a mutable fake catalog, it is safe for concurrent use.
type Catalog struct {
	mu       sync.Mutex
	pages    [][]int64
	items    map[int64]Item
	statuses map[string]int
	requests []string
}

func New() *Catalog {
	return &Catalog{
		items:    make(map[int64]Item),
		statuses: make(map[string]int),
	}
}

// SetPages replaces the listing, pages[0] is listing page 1.
func (c *Catalog) SetPages(pages ...[]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = pages
}

func (c *Catalog) SetItem(id int64, item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = item
}

// FailPath makes every request to path (including the query) answer with status.
func (c *Catalog) FailPath(path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[path] = status
}

// Requests returns every request uri the catalog served so far.
func (c *Catalog) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

// Start serves the catalog, the listing lives at server.URL + "/catalog/".
func (c *Catalog) Start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/", c.serve)
	return httptest.NewServer(mux)
}

func (c *Catalog) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, r.URL.RequestURI())
	if status, ok := c.statuses[r.URL.RequestURI()]; ok {
		w.WriteHeader(status)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/catalog/")
	w.Header().Set("content-type", "text/html; charset=utf-8")
	if rest == "" {
		c.writeListing(w, r)
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	item, ok := c.items[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeItem(w, item)
}

func (c *Catalog) writeListing(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("PAGEN_2"))
	if err != nil || page < 1 {
		page = 1
	}

	var ids []int64
	if page <= len(c.pages) {
		ids = c.pages[page-1]
	}

	var sb strings.Builder
	sb.WriteString("<html><body><section class=\"lvl1\">")
	for _, id := range ids {
		fmt.Fprintf(
			&sb,
			`<article><div class="lvl1__product-body-info-code">Код: <span> %d </span></div></article>`,
			id,
		)
	}
	sb.WriteString(`<nav class="lvl2__content-nav">`)
	if page < len(c.pages) {
		sb.WriteString(`<a href="#"><i class="lvl2__content-nav-numbers-next"></i></a>`)
	}
	sb.WriteString("</nav></section></body></html>")
	_, _ = w.Write([]byte(sb.String()))
}

func writeItem(w http.ResponseWriter, item Item) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	if item.Name != "" {
		fmt.Fprintf(
			&sb,
			`<div class="flypage__header-mobile"><p>  %s  </p></div>`,
			html.EscapeString(item.Name),
		)
	}
	if item.Price != "" {
		fmt.Fprintf(
			&sb,
			`<div class="lvl1__product-body-buy-price-base" data-repid_price="%s"><span>%s ₽</span></div>`,
			html.EscapeString(item.Price),
			html.EscapeString(item.Price),
		)
	}
	sb.WriteString("</body></html>")
	_, _ = w.Write([]byte(sb.String()))
}
