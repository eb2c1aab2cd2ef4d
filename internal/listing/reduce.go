package listing

import (
	"ShareDesk/internal/format"
	"ShareDesk/internal/model"
)

// Latest returns the price point with the greatest trade date.
//
// Dated rows always beat undated ones. Rows that tie on date (or are both
// undated) are broken by row id and then by price, so the result does not
// depend on the order the service returned the rows in.
func Latest(prices []model.PricePoint) (model.PricePoint, bool) {
	if len(prices) == 0 {
		return model.PricePoint{}, false
	}
	latest := prices[0]
	for _, p := range prices[1:] {
		if newer(p, latest) {
			latest = p
		}
	}
	return latest, true
}

func newer(p, acc model.PricePoint) bool {
	if p.TradeDate.Valid != acc.TradeDate.Valid {
		return p.TradeDate.Valid
	}
	if p.TradeDate.Valid && !p.TradeDate.Time.Equal(acc.TradeDate.Time) {
		return p.TradeDate.Time.After(acc.TradeDate.Time)
	}
	if p.ID != acc.ID {
		return p.ID > acc.ID
	}
	return p.Price.Valid && (!acc.Price.Valid || p.Price.Value.GreaterThan(acc.Price.Value))
}

// Reduce maps a company to its listing entry. Companies without price
// history are not displayable and report false.
func Reduce(c model.Company) (model.ListingEntry, bool) {
	latest, ok := Latest(c.StockPrices)
	if !ok {
		return model.ListingEntry{}, false
	}
	return model.ListingEntry{
		ID:        c.ID,
		Name:      c.Name,
		Symbol:    c.Symbol,
		Logo:      c.Logo,
		Price:     format.Fixed2(latest.Price, format.NA),
		Change:    format.Fixed2(latest.ChangePercentage, "0.00"),
		MarketCap: format.Raw(latest.MarketCap, format.NA),
	}, true
}

// Build reduces every displayable company, preserving service order.
func Build(companies []model.Company) []model.ListingEntry {
	entries := make([]model.ListingEntry, 0, len(companies))
	for _, c := range companies {
		if e, ok := Reduce(c); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// applyInsert overwrites the price fields of e from a live insert.
func applyInsert(e *model.ListingEntry, evt model.PriceInsert) {
	e.Price = format.Fixed2(evt.Price, format.NA)
	e.Change = format.Fixed2(evt.ChangePercentage, "0.00")
	e.MarketCap = format.Raw(evt.MarketCap, format.NA)
}
