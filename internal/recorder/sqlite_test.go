package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"ShareDesk/internal/model"
)

func TestSQLiteRecorder_Leads(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	leads := []*model.Lead{
		{Kind: model.LeadContact, Name: "Asha", Phone: "9876543210", CreatedAt: base},
		{Kind: model.LeadPartner, Name: "Ravi", Organization: "Ravi Capital", CreatedAt: base.Add(time.Minute)},
		{Kind: model.LeadContactForm, Name: "Meera", Email: "m@example.com", Subject: "Unlisted shares", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, l := range leads {
		if err := r.RecordLead(l); err != nil {
			t.Fatalf("record: %v", err)
		}
		if l.ID == "" {
			t.Error("expected id to be assigned")
		}
	}

	got, err := r.RecentLeads(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(got))
	}
	if got[0].Name != "Meera" || got[1].Name != "Ravi" {
		t.Errorf("unexpected order: %s, %s", got[0].Name, got[1].Name)
	}
	if got[1].Kind != model.LeadPartner || got[1].Organization != "Ravi Capital" {
		t.Errorf("fields not round-tripped: %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("created at = %s", got[0].CreatedAt)
	}
}

func TestSQLiteRecorder_ListingLoad(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if err := r.RecordListingLoad(&ListingLoad{Companies: 10, Entries: 8}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.RecordListingLoad(&ListingLoad{Err: "timeout"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM listing_loads WHERE error != ''`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 failed load, got %d", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordLead(&model.Lead{}); err != nil {
		t.Error(err)
	}
	leads, err := r.RecentLeads(5)
	if err != nil || leads != nil {
		t.Errorf("got %v, %v", leads, err)
	}
}
