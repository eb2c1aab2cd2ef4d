package listing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ShareDesk/internal/metrics"
	"ShareDesk/internal/model"
	"ShareDesk/internal/remote"
)

// Update is delivered to subscribers after the listing changes. Entry is set
// for a single live price change and nil after a full reload.
type Update struct {
	Entry *model.ListingEntry
}

// Snapshot is a copy of the listing state. Companies counts the rows the
// last successful load returned, displayable or not.
type Snapshot struct {
	Entries   []model.ListingEntry
	Companies int
	Err       error
	LoadedAt  time.Time
}

// Store owns the current listing. It is loaded from the data service and
// patched in place by live price inserts.
type Store struct {
	source  remote.Source
	metrics *metrics.Metrics

	mu        sync.RWMutex
	entries   []model.ListingEntry
	index     map[model.ID]int
	companies int
	err       error
	loadedAt  time.Time

	subMu  sync.Mutex
	subs   map[int]chan Update
	nextID int
}

// NewStore creates an empty store backed by source.
func NewStore(source remote.Source, m *metrics.Metrics) *Store {
	return &Store{
		source:  source,
		metrics: m,
		index:   make(map[model.ID]int),
		subs:    make(map[int]chan Update),
	}
}

// Load issues one read for all companies and rebuilds the listing. A failed
// first load leaves the listing empty; a failed reload keeps the last good
// listing. Either way the error is kept for Snapshot and nothing is retried.
func (s *Store) Load(ctx context.Context) error {
	companies, err := s.source.ListCompanies(ctx)
	if err != nil {
		s.metrics.RemoteError("list_companies")
		s.mu.Lock()
		s.err = fmt.Errorf("load listing: %w", err)
		s.mu.Unlock()
		return err
	}

	entries := Build(companies)
	index := make(map[model.ID]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}

	s.mu.Lock()
	s.entries = entries
	s.index = index
	s.companies = len(companies)
	s.err = nil
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.metrics.SetListingSize(len(entries))
	log.Printf("[INFO] listing loaded: %d of %d companies displayable", len(entries), len(companies))
	s.publish(Update{})
	return nil
}

// Snapshot returns a copy of the entries and the last load error.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ListingEntry, len(s.entries))
	copy(out, s.entries)
	return Snapshot{Entries: out, Companies: s.companies, Err: s.err, LoadedAt: s.loadedAt}
}

// Len returns the number of listed companies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Apply overwrites price, change and market cap of the entry whose id matches
// the insert. Inserts for unknown companies are ignored; no entry is added.
func (s *Store) Apply(evt model.PriceInsert) bool {
	s.mu.Lock()
	i, ok := s.index[evt.CompanyID]
	if !ok {
		s.mu.Unlock()
		s.metrics.LiveEvent("ignored")
		return false
	}
	applyInsert(&s.entries[i], evt)
	updated := s.entries[i]
	s.mu.Unlock()

	s.metrics.LiveEvent("applied")
	s.publish(Update{Entry: &updated})
	return true
}

// Subscribe registers for change notifications. Updates are dropped for a
// subscriber that is not keeping up. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 32)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			log.Printf("[WARN] listing subscriber %d is behind, dropping update", id)
		}
	}
}
