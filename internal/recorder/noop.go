package recorder

import "ShareDesk/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordLead(_ *model.Lead) error          { return nil }
func (n *NoopRecorder) RecentLeads(_ int) ([]model.Lead, error) { return nil, nil }
func (n *NoopRecorder) RecordListingLoad(_ *ListingLoad) error  { return nil }
func (n *NoopRecorder) Close() error                            { return nil }
