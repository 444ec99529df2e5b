package catalog

import (
	"context"
	"errors"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/chrono"
	"pricewatch-backend/internal/components/telemetry"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	report_walker_walk      = "walker.walk"
	report_walker_skip_item = "walker.skip-item"
)

// Source is anything that can serve listing pages and item details, *Client is the
// production implementation.
type Source interface {
	FetchPage(ctx context.Context, page int) (Page, error)
	FetchItem(ctx context.Context, id int64) (ScrapedItem, error)
}

type WalkerOptions struct {
	// PageDelay is waited between consecutive listing page fetches.
	PageDelay time.Duration
	// Workers bounds the number of concurrent item fetches within a page.
	Workers int
	// SkipMalformedItems drops items whose detail page cannot be parsed instead
	// of failing the whole walk. Transport errors are always fatal.
	SkipMalformedItems bool
}

// Walker visits every listing page starting at page 1 and collects all items.
type Walker struct {
	source Source
	time   chrono.TimeAPI
	tel    telemetry.API
	opts   WalkerOptions
}

func NewWalker(source Source, timeApi chrono.TimeAPI, tel telemetry.API, opts WalkerOptions) Walker {
	assert.NotNil(source)
	assert.NotNil(timeApi)
	assert.NotNil(tel)
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return Walker{
		source: source,
		time:   timeApi,
		tel:    telemetry.NewScopedAPI("catalog_walker", tel),
		opts:   opts,
	}
}

// Walk returns every item of the catalog in page order, then listing order within
// a page. Duplicate ids are fetched and returned as many times as they are listed.
func (w Walker) Walk(ctx context.Context) ([]ScrapedItem, error) {
	var items []ScrapedItem
	for page := 1; ; page++ {
		if page > 1 {
			err := w.time.Sleep(ctx, w.opts.PageDelay)
			if err != nil {
				return nil, err
			}
		}

		listing, err := w.source.FetchPage(ctx, page)
		if err != nil {
			w.tel.ReportBroken(report_walker_walk, err, page)
			return nil, err
		}

		pageItems, err := w.fetchItems(ctx, listing.IDs)
		if err != nil {
			w.tel.ReportBroken(report_walker_walk, err, page)
			return nil, err
		}
		items = append(items, pageItems...)

		w.tel.ReportDebug("walked page", page, len(pageItems), listing.HasNext)
		if !listing.HasNext {
			break
		}
	}
	w.tel.ReportCount(report_walker_walk, int64(len(items)))
	return items, nil
}

func (w Walker) fetchItems(ctx context.Context, ids []int64) ([]ScrapedItem, error) {
	results := make([]ScrapedItem, len(ids))
	fetched := make([]bool, len(ids))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.opts.Workers)
	for i, id := range ids {
		group.Go(func() error {
			item, err := w.source.FetchItem(groupCtx, id)
			if err != nil {
				if w.opts.SkipMalformedItems && errors.Is(err, ErrMalformedMarkup) {
					w.tel.ReportWarning(report_walker_skip_item, err, id)
					return nil
				}
				return err
			}
			results[i] = item
			fetched[i] = true
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	items := make([]ScrapedItem, 0, len(ids))
	for i, item := range results {
		if fetched[i] {
			items = append(items, item)
		}
	}
	return items, nil
}
