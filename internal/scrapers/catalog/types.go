package catalog

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
)

// ScrapedItem is one product as currently listed by the source catalog.
type ScrapedItem struct {
	ID    int64
	Name  string
	Price int64
}

// Page is the result of fetching one listing page.
type Page struct {
	IDs     []int64
	HasNext bool
}

var (
	// ErrBadStatus is returned when the source answers with a non-2xx status.
	ErrBadStatus = errors.New("unexpected response status")
	// ErrMalformedMarkup is returned when expected elements are missing or unparsable.
	ErrMalformedMarkup = errors.New("malformed markup")
)

const (
	OpFetchPage = "fetch page"
	OpFetchItem = "fetch item"
)

// FetchError is a failure to fetch or parse a listing page or an item detail page.
type FetchError struct {
	Op     string
	Page   int
	ItemID int64
	Err    error
}

func (e *FetchError) Error() string {
	if e.Op == OpFetchItem {
		return fmt.Sprintf("catalog: %s %d: %s", e.Op, e.ItemID, e.Err)
	}
	return fmt.Sprintf("catalog: %s %d: %s", e.Op, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Selectors locate the interesting parts of the catalog markup.
type Selectors struct {
	// ItemCode matches one element per listed item whose text is the item id.
	ItemCode string `json:"item_code"`
	// NextPage matches the "next page" navigation affordance.
	NextPage string `json:"next_page"`
	// Name matches the element holding the display name on a detail page.
	Name string `json:"name"`
	// Price matches the element carrying the price attribute on a detail page.
	Price     string `json:"price"`
	PriceAttr string `json:"price_attr"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		ItemCode:  "div.lvl1__product-body-info-code span",
		NextPage:  "i.lvl2__content-nav-numbers-next",
		Name:      "div.flypage__header-mobile p",
		Price:     "div.lvl1__product-body-buy-price-base",
		PriceAttr: "data-repid_price",
	}
}

func (s Selectors) withDefaults() (Selectors, error) {
	err := mergo.Merge(&s, DefaultSelectors())
	if err != nil {
		return Selectors{}, fmt.Errorf("apply default selectors: %w", err)
	}
	return s, nil
}
