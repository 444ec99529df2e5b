package catalog

import (
	"context"
	"errors"
	"fmt"
	"pricewatch-backend/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	pages     []Page
	items     map[int64]ScrapedItem
	itemErrs  map[int64]error
	delays    map[int64]time.Duration
	pageCalls []int
}

func (f *fakeSource) FetchPage(ctx context.Context, page int) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if page > len(f.pages) {
		return Page{}, &FetchError{Op: OpFetchPage, Page: page, Err: ErrBadStatus}
	}
	return f.pages[page-1], nil
}

func (f *fakeSource) FetchItem(ctx context.Context, id int64) (ScrapedItem, error) {
	f.mu.Lock()
	delay := f.delays[id]
	item, ok := f.items[id]
	err := f.itemErrs[id]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return ScrapedItem{}, err
	}
	if !ok {
		return ScrapedItem{}, &FetchError{Op: OpFetchItem, ItemID: id, Err: ErrBadStatus}
	}
	return item, nil
}

type fakeTime struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeTime) Now() time.Time {
	return time.Unix(0, 0)
}

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	return ctx.Err()
}

func items(ids ...int64) map[int64]ScrapedItem {
	out := make(map[int64]ScrapedItem)
	for _, id := range ids {
		out[id] = ScrapedItem{ID: id, Name: fmt.Sprintf("item %d", id), Price: id * 10}
	}
	return out
}

func TestWalkTwoPages(t *testing.T) {
	source := &fakeSource{
		pages: []Page{
			{IDs: []int64{501, 502}, HasNext: true},
			{IDs: []int64{601}, HasNext: false},
		},
		items: items(501, 502, 601),
	}
	clock := &fakeTime{}
	walker := NewWalker(source, clock, telemetry.NewRecorder(), WalkerOptions{
		PageDelay: time.Second,
		Workers:   4,
	})

	result, err := walker.Walk(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, source.pageCalls)
	require.Equal(t, []time.Duration{time.Second}, clock.sleeps)
	require.Equal(t, []ScrapedItem{
		{ID: 501, Name: "item 501", Price: 5010},
		{ID: 502, Name: "item 502", Price: 5020},
		{ID: 601, Name: "item 601", Price: 6010},
	}, result)
}

func TestWalkPreservesListingOrder(t *testing.T) {
	ids := []int64{9, 8, 7, 6, 5, 4, 3, 2, 1}
	delays := make(map[int64]time.Duration)
	for _, id := range ids {
		delays[id] = time.Duration(id) * time.Millisecond
	}
	source := &fakeSource{
		pages:  []Page{{IDs: append(ids, 9)}},
		items:  items(ids...),
		delays: delays,
	}
	walker := NewWalker(source, &fakeTime{}, telemetry.NewRecorder(), WalkerOptions{Workers: 3})

	result, err := walker.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, result, len(ids)+1)
	for i, id := range append(ids, 9) {
		require.Equal(t, id, result[i].ID)
	}
}

func TestWalkEmptyCatalog(t *testing.T) {
	source := &fakeSource{pages: []Page{{}}}
	clock := &fakeTime{}
	walker := NewWalker(source, clock, telemetry.NewRecorder(), WalkerOptions{PageDelay: time.Second})

	result, err := walker.Walk(context.Background())
	require.NoError(t, err)
	require.Empty(t, result)
	require.Equal(t, []int{1}, source.pageCalls)
	require.Empty(t, clock.sleeps)
}

func TestWalkItemFailure(t *testing.T) {
	malformed := &FetchError{Op: OpFetchItem, ItemID: 502, Err: ErrMalformedMarkup}
	newSource := func() *fakeSource {
		return &fakeSource{
			pages: []Page{
				{IDs: []int64{501, 502}, HasNext: true},
				{IDs: []int64{601}},
			},
			items:    items(501, 601),
			itemErrs: map[int64]error{502: malformed},
		}
	}

	source := newSource()
	walker := NewWalker(source, &fakeTime{}, telemetry.NewRecorder(), WalkerOptions{Workers: 2})
	_, err := walker.Walk(context.Background())
	require.ErrorIs(t, err, ErrMalformedMarkup)
	require.Equal(t, []int{1}, source.pageCalls)

	source = newSource()
	tel := telemetry.NewRecorder()
	walker = NewWalker(source, &fakeTime{}, tel, WalkerOptions{Workers: 2, SkipMalformedItems: true})
	result, err := walker.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, int64(501), result[0].ID)
	require.Equal(t, int64(601), result[1].ID)
	require.Len(t, tel.Reports("warning"), 1)
}

func TestWalkTransportFailureIsFatalWhenSkipping(t *testing.T) {
	source := &fakeSource{
		pages:    []Page{{IDs: []int64{501}}},
		itemErrs: map[int64]error{501: &FetchError{Op: OpFetchItem, ItemID: 501, Err: ErrBadStatus}},
	}
	walker := NewWalker(source, &fakeTime{}, telemetry.NewRecorder(), WalkerOptions{SkipMalformedItems: true})
	_, err := walker.Walk(context.Background())
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestWalkPageFailure(t *testing.T) {
	source := &fakeSource{
		pages: []Page{{IDs: []int64{501}, HasNext: true}},
		items: items(501),
	}
	walker := NewWalker(source, &fakeTime{}, telemetry.NewRecorder(), WalkerOptions{})
	_, err := walker.Walk(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, 2, fetchErr.Page)
}

func TestWalkCancelledDuringDelay(t *testing.T) {
	source := &fakeSource{
		pages: []Page{{IDs: []int64{501}, HasNext: true}, {}},
		items: items(501),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	walker := NewWalker(source, &fakeTime{}, telemetry.NewRecorder(), WalkerOptions{PageDelay: time.Second})
	_, err := walker.Walk(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
