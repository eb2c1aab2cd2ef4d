package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"ShareDesk/internal/detail"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/live"
	"ShareDesk/internal/notifier"
	"ShareDesk/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Scheduler manages all cron tasks: the periodic listing reload, detail
// cache housekeeping and the refresh ticks of open detail views.
type Scheduler struct {
	Cron     *cron.Cron
	Listing  *listing.Store
	Detail   *detail.Fetcher
	Live     live.Subscriber
	Notifier *notifier.TelegramNotifier
	Recorder recorder.Recorder
	Ctx      context.Context

	started time.Time
	maxAge  time.Duration

	reloadMu   sync.Mutex
	lastFailed bool
}

// NewScheduler creates a new Scheduler. live may be nil when live updates are off.
func NewScheduler(ctx context.Context, store *listing.Store, fetcher *detail.Fetcher, sub live.Subscriber, tn *notifier.TelegramNotifier, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Listing:  store,
		Detail:   fetcher,
		Live:     sub,
		Notifier: tn,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// RegisterAll registers the listing reload and cache housekeeping tasks.
// Cached details older than maxAge are dropped by housekeeping.
func (s *Scheduler) RegisterAll(reloadCron, housekeepCron string, maxAge time.Duration) error {
	if _, err := s.Cron.AddFunc(reloadCron, s.reloadTask); err != nil {
		return fmt.Errorf("register listing reload: %w", err)
	}
	s.maxAge = maxAge
	if s.maxAge <= 0 {
		s.maxAge = time.Hour
	}
	if _, err := s.Cron.AddFunc(housekeepCron, s.housekeepTask); err != nil {
		return fmt.Errorf("register cache housekeeping: %w", err)
	}
	return nil
}

// Every schedules fn at a fixed interval. The returned func removes it.
func (s *Scheduler) Every(interval time.Duration, fn func()) (func(), error) {
	id, err := s.Cron.AddFunc("@every "+interval.String(), fn)
	if err != nil {
		return nil, fmt.Errorf("schedule every %s: %w", interval, err)
	}
	return func() { s.Cron.Remove(id) }, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.started = time.Now()
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunReloadNow reloads the listing immediately (startup and /reload).
func (s *Scheduler) RunReloadNow() error {
	return s.reload()
}

func (s *Scheduler) reloadTask() {
	if err := s.reload(); err != nil {
		log.Printf("[ERROR] listing reload: %v", err)
	}
}

func (s *Scheduler) reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	log.Println("[INFO] reloading listing")
	err := s.Listing.Load(s.Ctx)

	snap := s.Listing.Snapshot()
	evt := &recorder.ListingLoad{At: time.Now(), Companies: snap.Companies, Entries: len(snap.Entries)}
	if err != nil {
		evt.Err = err.Error()
	}
	if rerr := s.Recorder.RecordListingLoad(evt); rerr != nil {
		log.Printf("[ERROR] record listing load: %v", rerr)
	}

	// Alert once per outage, not on every failed tick.
	if err != nil && !s.lastFailed {
		s.trySend(fmt.Sprintf("❌ Listing reload failed: %v", err))
	} else if err == nil && s.lastFailed {
		s.trySend(fmt.Sprintf("✅ Listing reload recovered: %d shares", evt.Entries))
	}
	s.lastFailed = err != nil
	return err
}

func (s *Scheduler) trySend(text string) {
	if !s.Notifier.Enabled() {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

func (s *Scheduler) housekeepTask() {
	if s.Detail == nil {
		return
	}
	if n := s.Detail.Cache().PruneOlderThan(s.maxAge); n > 0 {
		log.Printf("[INFO] pruned %d cached share details", n)
	}
}

// Status summarizes the service for the operator.
func (s *Scheduler) Status() notifier.Status {
	snap := s.Listing.Snapshot()
	st := notifier.Status{
		ListingEntries:  len(snap.Entries),
		ListingLoadedAt: snap.LoadedAt,
	}
	if snap.Err != nil {
		st.ListingErr = snap.Err.Error()
	}
	if s.Detail != nil {
		st.CacheEntries = s.Detail.Cache().Len()
	}
	if s.Live != nil {
		st.LiveTransport = s.Live.Name()
		st.LiveConnected = s.Live.Connected()
	}
	if !s.started.IsZero() {
		st.Uptime = time.Since(s.started)
	}
	return st
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/status":
		return notifier.FormatStatus(s.Status())
	case "/leads":
		limit := 10
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &limit); err != nil || limit <= 0 {
				limit = 10
			}
		}
		leads, err := s.Recorder.RecentLeads(limit)
		if err != nil {
			log.Printf("[ERROR] recent leads: %v", err)
			return "❌ Could not read leads: " + err.Error()
		}
		return notifier.FormatRecentLeads(leads)
	case "/reload":
		if err := s.reload(); err != nil {
			return "❌ Reload failed: " + err.Error()
		}
		return fmt.Sprintf("✅ Listing reloaded: %d shares", s.Listing.Len())
	default:
		return "Available commands:\n• /status\n• /leads [n]\n• /reload"
	}
}
