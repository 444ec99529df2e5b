package catalog

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// newFlakyServer answers the first listing request with a 502 and every later one
// with a single item page.
func newFlakyServer(t testing.TB, attempts *int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		*attempts++
		if *attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<div class="lvl1__product-body-info-code"><span>7</span></div>`))
	}))
}
