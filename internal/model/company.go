package model

// Company is a row of the companies table with its embedded relations.
// Relations are only populated when the query selects them.
type Company struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol,omitempty"`
	Sector            string `json:"sector,omitempty"`
	Logo              string `json:"logo,omitempty"`
	FaceValue         Number `json:"face_value"`
	CIN               string `json:"cin,omitempty"`
	RegisteredOffice  string `json:"registered_office,omitempty"`
	IncorporationDate Date   `json:"incorporation_date"`

	StockPrices  []PricePoint        `json:"stock_prices,omitempty"`
	BoardMembers []BoardMember       `json:"board_members,omitempty"`
	Subsidiaries []Subsidiary        `json:"company_subsidiaries,omitempty"`
	Shareholding []ShareholdingEntry `json:"shareholding_pattern,omitempty"`
}

// PricePoint is one row of the stock_prices time series.
type PricePoint struct {
	ID               ID     `json:"id,omitempty"`
	CompanyID        ID     `json:"company_id,omitempty"`
	Price            Number `json:"price"`
	ChangePercentage Number `json:"change_percentage"`
	TradeDate        Date   `json:"trade_date"`
	MarketCap        Number `json:"marketcap"`
	PERatio          Number `json:"pe_ratio"`
	BookValue        Number `json:"book_valur"` // column name as deployed
	Volume           Number `json:"volume"`
}

// BoardMember is a director or officer of a company.
type BoardMember struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Category string `json:"category,omitempty"`
}

// Subsidiary is a company_subsidiaries row.
type Subsidiary struct {
	Name                string `json:"name"`
	RelationshipType    string `json:"relationship_type,omitempty"`
	OwnershipPercentage Number `json:"ownership_percentage"`
}

// ShareholdingEntry is one row of the shareholding_pattern time series.
type ShareholdingEntry struct {
	ID         ID     `json:"id,omitempty"`
	Category   string `json:"category,omitempty"`
	Shares     Number `json:"shares"`
	Percentage Number `json:"percentage"`
	AsOfDate   Date   `json:"as_of_date"`
}

// PriceInsert is the record carried by a stock_prices insert event.
type PriceInsert struct {
	CompanyID        ID     `json:"company_id"`
	Price            Number `json:"price"`
	ChangePercentage Number `json:"change_percentage"`
	MarketCap        Number `json:"marketcap"`
	TradeDate        Date   `json:"trade_date"`
}
