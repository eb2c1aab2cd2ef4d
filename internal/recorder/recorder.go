package recorder

import (
	"time"

	"ShareDesk/internal/model"
)

// ListingLoad records one listing reload.
type ListingLoad struct {
	At        time.Time
	Companies int
	Entries   int
	Err       string // empty on success
}

// Recorder persists site leads and listing reloads.
type Recorder interface {
	RecordLead(lead *model.Lead) error
	RecentLeads(limit int) ([]model.Lead, error)
	RecordListingLoad(evt *ListingLoad) error
	Close() error
}
