// Package detail loads a single company with all of its relations, caches the
// composed record and keeps open detail views refreshed.
package detail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"ShareDesk/internal/format"
	"ShareDesk/internal/metrics"
	"ShareDesk/internal/model"
	"ShareDesk/internal/remote"
)

// Messages shown when a detail view cannot be loaded.
const (
	ErrorTitle     = "Error Loading Data"
	MsgNotFound    = "Share not found"
	MsgUnavailable = "Unable to load share details. Please try again later."
	MsgEmptyName   = "Share name is required"
)

// ErrEmptyName is returned for a blank company name.
var ErrEmptyName = errors.New("empty share name")

// Origin tells where a Result came from.
type Origin string

const (
	OriginCache   Origin = "cache"
	OriginNetwork Origin = "network"
	OriginStale   Origin = "stale"
)

// Result is a detail record and its origin. Record may be set together with
// an error, in which case it is the last good copy.
type Result struct {
	Record *model.DetailRecord
	Origin Origin
}

type Fetcher struct {
	source  remote.Source
	cache   *Cache
	metrics *metrics.Metrics
}

func NewFetcher(source remote.Source, cache *Cache, m *metrics.Metrics) *Fetcher {
	return &Fetcher{source: source, cache: cache, metrics: m}
}

// Cache returns the cache the fetcher reads through.
func (f *Fetcher) Cache() *Cache { return f.cache }

// Get returns the detail record for a company. rawName may still be
// URL-encoded. A fresh cached record is returned without a network call;
// otherwise the company is read once and the composed record cached. On
// failure any previously cached record is returned alongside the error.
func (f *Fetcher) Get(ctx context.Context, rawName string) (Result, error) {
	name := DecodeName(rawName)
	if name == "" {
		return Result{}, ErrEmptyName
	}

	cached, fresh, ok := f.cache.Get(name)
	if ok && fresh {
		f.metrics.CacheLookup("hit")
		return Result{Record: &cached, Origin: OriginCache}, nil
	}
	if ok {
		f.metrics.CacheLookup("stale")
	} else {
		f.metrics.CacheLookup("miss")
	}

	company, err := f.source.GetCompany(ctx, name)
	if err != nil {
		f.metrics.RemoteError("get_company")
		err = fmt.Errorf("load %q: %w", name, err)
		if ok {
			return Result{Record: &cached, Origin: OriginStale}, err
		}
		return Result{}, err
	}

	rec := Compose(*company)
	f.cache.Put(name, rec)
	return Result{Record: &rec, Origin: OriginNetwork}, nil
}

// DecodeName URL-decodes a company name taken from a route, falling back to
// the raw value when it is not valid escaping.
func DecodeName(raw string) string {
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	return strings.TrimSpace(name)
}

// Compose sorts the price and shareholding histories newest first and
// fills in the latest rows and the market cap display value. Rows without
// a date sort after dated rows. The input slices are not modified.
func Compose(c model.Company) model.DetailRecord {
	prices := append([]model.PricePoint(nil), c.StockPrices...)
	sort.SliceStable(prices, func(i, j int) bool {
		return prices[i].TradeDate.After(prices[j].TradeDate)
	})
	holdings := append([]model.ShareholdingEntry(nil), c.Shareholding...)
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].AsOfDate.After(holdings[j].AsOfDate)
	})
	c.StockPrices = prices
	c.Shareholding = holdings

	rec := model.DetailRecord{Company: c, MarketCapDisplay: format.NA}
	if len(prices) > 0 {
		rec.LatestPrice = &prices[0]
		rec.MarketCapDisplay = format.Raw(prices[0].MarketCap, format.NA)
	}
	if len(holdings) > 0 {
		rec.LatestShareholding = &holdings[0]
	}
	return rec
}

// ErrorMessage maps a fetch error to the text shown under ErrorTitle.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, remote.ErrNotFound):
		return MsgNotFound
	case errors.Is(err, ErrEmptyName):
		return MsgEmptyName
	default:
		return MsgUnavailable
	}
}
