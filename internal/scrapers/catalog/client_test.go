package catalog

import (
	"context"
	"net/http"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/scrapers/catalog/catalogtest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t testing.TB, baseUrl string, retries int) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:        baseUrl,
		PageSize:       30,
		RequestTimeout: 5 * time.Second,
		RetryCount:     retries,
		RetryWait:      time.Millisecond,
	}, telemetry.NewRecorder())
	require.NoError(t, err)
	return client
}

func TestFetchPage(t *testing.T) {
	fake := catalogtest.New()
	fake.SetPages([]int64{501, 502, 501}, []int64{601})
	server := fake.Start()
	defer server.Close()

	client := newTestClient(t, server.URL+"/catalog/", 0)
	ctx := context.Background()

	page, err := client.FetchPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, Page{IDs: []int64{501, 502, 501}, HasNext: true}, page)

	page, err = client.FetchPage(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, Page{IDs: []int64{601}, HasNext: false}, page)

	page, err = client.FetchPage(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, page.IDs)
	require.False(t, page.HasNext)

	require.Equal(t, "/catalog/?PAGEN_2=1&amount=30", fake.Requests()[0])
}

func TestFetchPageErrors(t *testing.T) {
	fake := catalogtest.New()
	fake.SetPages([]int64{501})
	fake.FailPath("/catalog/?PAGEN_2=1&amount=30", http.StatusForbidden)
	server := fake.Start()
	defer server.Close()

	client := newTestClient(t, server.URL+"/catalog/", 0)
	_, err := client.FetchPage(context.Background(), 1)
	require.ErrorIs(t, err, ErrBadStatus)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, OpFetchPage, fetchErr.Op)
	require.Equal(t, 1, fetchErr.Page)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := newFlakyServer(t, &attempts)
	defer server.Close()

	client := newTestClient(t, server.URL+"/catalog/", 2)
	page, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []int64{7}, page.IDs)
	require.Equal(t, 2, attempts)
}

func TestFetchItem(t *testing.T) {
	fake := catalogtest.New()
	fake.SetItem(501, catalogtest.Item{Name: "Mixer   X\n", Price: "4500.99"})
	fake.SetItem(502, catalogtest.Item{Name: "Mixer Y"})
	fake.SetItem(503, catalogtest.Item{Price: "100"})
	fake.SetItem(504, catalogtest.Item{Name: "Mixer Z", Price: "call us"})
	server := fake.Start()
	defer server.Close()

	client := newTestClient(t, server.URL+"/catalog/", 0)
	ctx := context.Background()

	item, err := client.FetchItem(ctx, 501)
	require.NoError(t, err)
	require.Equal(t, ScrapedItem{ID: 501, Name: "Mixer X", Price: 4500}, item)

	for _, id := range []int64{502, 503, 504} {
		_, err := client.FetchItem(ctx, id)
		require.ErrorIs(t, err, ErrMalformedMarkup, "item %d", id)

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, OpFetchItem, fetchErr.Op)
		require.Equal(t, id, fetchErr.ItemID)
	}

	_, err = client.FetchItem(ctx, 999)
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestParsePrice(t *testing.T) {
	table := []struct {
		input    string
		expected int64
		fails    bool
	}{
		{input: "4500", expected: 4500},
		{input: "4500.99", expected: 4500},
		{input: " 12 345,50 ", expected: 12345},
		{input: "0.4", expected: 0},
		{input: ".5", expected: 0},
		{input: "5.", expected: 5},
		{input: "-3.7", expected: -3},
		{input: "9007199254740993", expected: 9007199254740993},
		{input: "9223372036854775807,99", expected: 9223372036854775807},
		{input: "", fails: true},
		{input: ".", fails: true},
		{input: "NaN", fails: true},
		{input: "free", fails: true},
		{input: "1e30", fails: true},
		{input: "9223372036854775808", fails: true},
		{input: "12.34.5", fails: true},
		{input: "12.3x", fails: true},
	}

	for _, row := range table {
		result, err := ParsePrice(row.input)
		if row.fails {
			require.ErrorIs(t, err, ErrMalformedMarkup, row.input)
			continue
		}
		require.NoError(t, err, row.input)
		require.Equal(t, row.expected, result, row.input)
	}
}

func TestSelectorsFillDefaults(t *testing.T) {
	selectors, err := Selectors{PriceAttr: "data-price"}.withDefaults()
	require.NoError(t, err)

	expected := DefaultSelectors()
	expected.PriceAttr = "data-price"
	require.Equal(t, expected, selectors)
}

func TestNewClientRejectsRelativeUrl(t *testing.T) {
	_, err := NewClient(ClientOptions{BaseUrl: "/catalog/"}, telemetry.NewRecorder())
	require.Error(t, err)
}
