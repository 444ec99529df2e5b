package catalog

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/pkg/htmlutil"
	"pricewatch-backend/pkg/restyutil"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch_page = "client.fetch-page"
	report_client_fetch_item = "client.fetch-item"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	// BaseUrl is the listing url, item detail pages live at BaseUrl + id.
	BaseUrl  string
	PageSize int
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	// RetryCount is the number of extra attempts made on transport errors and 5xx/429 responses.
	RetryCount       int
	RetryWait        time.Duration
	UserAgent        string
	CloudflareBypass bool
	Selectors        Selectors
	// Dump receives every response when set, it is meant for debugging selectors.
	Dump restyutil.Output
}

// Client fetches listing pages and item detail pages from the source catalog.
type Client struct {
	baseUrl   string
	pageSize  int
	selectors Selectors
	http      *resty.Client
	tel       telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("catalog_scraper", tel)

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("catalog base url must be absolute: %q", opts.BaseUrl)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	httpClient := resty.New()
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.RequestTimeout)

	httpClient.SetRetryCount(opts.RetryCount)
	httpClient.SetRetryWaitTime(opts.RetryWait)
	httpClient.SetRetryMaxWaitTime(opts.RetryWait * 8)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= http.StatusInternalServerError ||
			res.StatusCode() == http.StatusTooManyRequests
	})

	if opts.RequestsPerSecond > 0 {
		burst := int(math.Ceil(opts.RequestsPerSecond))
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	if opts.Dump != nil {
		restyutil.DumpResponses(httpClient, opts.Dump)
	}

	selectors, err := opts.Selectors.withDefaults()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseUrl:   opts.BaseUrl,
		pageSize:  opts.PageSize,
		selectors: selectors,
		http:      httpClient,
		tel:       tel,
	}, nil
}

func (c *Client) getDocument(ctx context.Context, req *resty.Request, link string) (*goquery.Document, error) {
	res, err := req.SetContext(ctx).Get(link)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, res.Status())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMarkup, err)
	}
	return doc, nil
}

// FetchPage retrieves listing page number page (1-based) and returns the item ids in
// document order along with whether a next page exists.
func (c *Client) FetchPage(ctx context.Context, page int) (Page, error) {
	c.tel.ReportDebug("fetch page", page)

	pageError := func(err error) (Page, error) {
		c.tel.ReportBroken(report_client_fetch_page, err, page)
		return Page{}, &FetchError{Op: OpFetchPage, Page: page, Err: err}
	}

	req := c.http.R().SetQueryParams(map[string]string{
		"amount":  strconv.Itoa(c.pageSize),
		"PAGEN_2": strconv.Itoa(page),
	})
	doc, err := c.getDocument(ctx, req, c.baseUrl)
	if err != nil {
		return pageError(err)
	}

	var ids []int64
	var parseErr error
	doc.Find(c.selectors.ItemCode).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		code := htmlutil.CleanText(s.Text())
		id, err := strconv.ParseInt(code, 10, 64)
		if err != nil {
			parseErr = fmt.Errorf("%w: item code %q: %s", ErrMalformedMarkup, code, err)
			return false
		}
		ids = append(ids, id)
		return true
	})
	if parseErr != nil {
		return pageError(parseErr)
	}

	return Page{
		IDs:     ids,
		HasNext: doc.Find(c.selectors.NextPage).Length() > 0,
	}, nil
}

// FetchItem retrieves the detail page of a single item.
func (c *Client) FetchItem(ctx context.Context, id int64) (ScrapedItem, error) {
	c.tel.ReportDebug("fetch item", id)

	itemError := func(err error) (ScrapedItem, error) {
		c.tel.ReportBroken(report_client_fetch_item, err, id)
		return ScrapedItem{}, &FetchError{Op: OpFetchItem, ItemID: id, Err: err}
	}

	doc, err := c.getDocument(ctx, c.http.R(), c.baseUrl+strconv.FormatInt(id, 10))
	if err != nil {
		return itemError(err)
	}

	nameNode := doc.Find(c.selectors.Name).First()
	if nameNode.Length() == 0 {
		return itemError(fmt.Errorf("%w: could not find %s", ErrMalformedMarkup, c.selectors.Name))
	}
	name := htmlutil.NodeText(nameNode.Nodes[0])
	if name == "" {
		return itemError(fmt.Errorf("%w: empty name", ErrMalformedMarkup))
	}

	rawPrice, ok := doc.Find(c.selectors.Price).First().Attr(c.selectors.PriceAttr)
	if !ok {
		return itemError(fmt.Errorf(
			"%w: could not find %s[%s]",
			ErrMalformedMarkup, c.selectors.Price, c.selectors.PriceAttr,
		))
	}
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return itemError(err)
	}

	return ScrapedItem{
		ID:    id,
		Name:  name,
		Price: price,
	}, nil
}

// ParsePrice parses a decimal price string and truncates it toward zero. Spaces are
// ignored and either '.' or ',' separates the fraction. Prices outside the int64 range
// are malformed.
func ParsePrice(raw string) (int64, error) {
	cleaned := strings.Join(strings.Fields(raw), "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	whole, frac, hasFrac := strings.Cut(cleaned, ".")
	if strings.Trim(frac, "0123456789") != "" || (hasFrac && frac == "" && whole == "") {
		return 0, fmt.Errorf("%w: price %q", ErrMalformedMarkup, raw)
	}
	switch whole {
	case "":
		if !hasFrac {
			return 0, fmt.Errorf("%w: price %q", ErrMalformedMarkup, raw)
		}
		return 0, nil
	case "+", "-":
		if frac == "" {
			return 0, fmt.Errorf("%w: price %q", ErrMalformedMarkup, raw)
		}
		return 0, nil
	}

	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %s", ErrMalformedMarkup, raw, err)
	}
	return value, nil
}
