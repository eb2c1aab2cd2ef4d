package model

// ListingEntry is the display-ready form of a company on the listing grid.
// Price and Change are always populated; see listing.Reduce.
type ListingEntry struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol,omitempty"`
	Logo      string `json:"logo,omitempty"`
	Price     string `json:"price"`
	Change    string `json:"change"`
	MarketCap string `json:"marketCap"`
}

// DetailRecord is a company merged with its sorted histories and the
// convenience fields the detail page reads.
type DetailRecord struct {
	Company
	LatestPrice        *PricePoint        `json:"latestPrice,omitempty"`
	LatestShareholding *ShareholdingEntry `json:"latestShareholding,omitempty"`
	MarketCapDisplay   string             `json:"market_cap"`
}
