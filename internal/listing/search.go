package listing

import (
	"strings"

	"ShareDesk/internal/model"
)

const (
	// DefaultPageSize is how many cards the grid shows before "view more".
	DefaultPageSize = 6
	// DefaultPageStep is how many cards each "view more" reveals.
	DefaultPageStep = 3
)

// Matches reports whether e matches query: a case-insensitive substring of
// the display name, the symbol or the logo identifier.
func Matches(e model.ListingEntry, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), q) ||
		strings.Contains(strings.ToLower(e.Symbol), q) ||
		strings.Contains(strings.ToLower(e.Logo), q)
}

// Filter returns the entries matching query in their original order.
func Filter(entries []model.ListingEntry, query string) []model.ListingEntry {
	out := make([]model.ListingEntry, 0, len(entries))
	for _, e := range entries {
		if Matches(e, query) {
			out = append(out, e)
		}
	}
	return out
}

// View holds the grid's search and pagination state for one viewer.
type View struct {
	pageSize int
	step     int
	query    string
	visible  int
}

// Page is what the grid renders.
type Page struct {
	Entries     []model.ListingEntry `json:"entries"`
	Total       int                  `json:"total"`
	Query       string               `json:"query,omitempty"`
	ShowControl bool                 `json:"showControl"`
	Label       string               `json:"label,omitempty"`
}

// NewView creates a view; non-positive sizes fall back to the defaults.
func NewView(pageSize, step int) *View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if step <= 0 {
		step = DefaultPageStep
	}
	return &View{pageSize: pageSize, step: step, visible: pageSize}
}

// Query returns the active search query.
func (v *View) Query() string { return v.query }

// Visible returns how many entries are shown when no query is active.
func (v *View) Visible() int { return v.visible }

// SetQuery changes the search query. Clearing it resets the page size.
func (v *View) SetQuery(q string) {
	v.query = strings.TrimSpace(q)
	if v.query == "" {
		v.visible = v.pageSize
	}
}

// Toggle is the "view more" / "view less" control. Once everything is
// shown it collapses back to the default page size.
func (v *View) Toggle(total int) {
	if v.query != "" {
		return
	}
	if v.visible >= total {
		v.visible = v.pageSize
		return
	}
	v.visible += v.step
	if v.visible > total {
		v.visible = total
	}
}

// Render applies the query and pagination to entries.
func (v *View) Render(entries []model.ListingEntry) Page {
	filtered := Filter(entries, v.query)
	p := Page{Total: len(filtered), Query: v.query}
	if v.query != "" {
		p.Entries = filtered
		return p
	}
	n := v.visible
	if n > len(filtered) {
		n = len(filtered)
	}
	p.Entries = filtered[:n]
	if len(filtered) > v.pageSize {
		p.ShowControl = true
		if v.visible >= len(filtered) {
			p.Label = "View Less"
		} else {
			p.Label = "View More"
		}
	}
	return p
}
