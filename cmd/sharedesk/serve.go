package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ShareDesk/internal/config"
	"ShareDesk/internal/detail"
	"ShareDesk/internal/format"
	"ShareDesk/internal/gateway"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/live"
	"ShareDesk/internal/metrics"
	"ShareDesk/internal/model"
	"ShareDesk/internal/notifier"
	"ShareDesk/internal/recorder"
	"ShareDesk/internal/remote"
	"ShareDesk/internal/scheduler"
)

// Cached details are dropped by housekeeping once this old.
const detailMaxAge = time.Hour

func runServe(cfg *config.Config) error {
	log.Printf("[INFO] ShareDesk %s starting (%s)", Version, cfg.Server.Env)

	if err := format.SetLocale(cfg.Locale); err != nil {
		log.Printf("[WARN] locale %q: %v, using %s", cfg.Locale, err, format.DefaultLocale)
	}

	m := metrics.New()

	// Data service
	client := remote.NewClient(remote.Config{
		BaseURL: cfg.DataService.BaseURL,
		APIKey:  cfg.DataService.APIKey,
		Bucket:  cfg.DataService.Bucket,
		Timeout: cfg.DataService.Timeout,
		Proxy:   cfg.Proxy,
	})

	store := listing.NewStore(client, m)
	cache, err := detail.NewCache(cfg.Detail.CacheSize, cfg.Detail.CacheTTL)
	if err != nil {
		return fmt.Errorf("init detail cache: %w", err)
	}
	fetcher := detail.NewFetcher(client, cache, m)

	rec := openRecorder(cfg.Database.SQLitePath)
	defer rec.Close()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	sub, err := live.New(live.Options{
		Transport:   cfg.Live.Transport,
		RealtimeURL: cfg.Live.RealtimeURL,
		APIKey:      cfg.DataService.APIKey,
		NATSURL:     cfg.Live.NATSURL,
		Subject:     cfg.Live.Subject,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("init live updates: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, store, fetcher, sub, tn, rec)
	if err := sched.RegisterAll(cfg.Listing.ReloadCron, cfg.Detail.HousekeepCron, detailMaxAge); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	if err := sched.RunReloadNow(); err != nil {
		// The gateway still starts; /api/shares reports the failure until a reload succeeds.
		log.Printf("[WARN] initial listing load failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	var liveStatus gateway.LiveStatus
	if sub != nil {
		if err := sub.Start(ctx, func(evt model.PriceInsert) { store.Apply(evt) }); err != nil {
			return fmt.Errorf("start live updates: %w", err)
		}
		defer sub.Stop()
		liveStatus = sub
		log.Printf("[INFO] live updates via %s", sub.Name())
	} else {
		log.Println("[INFO] live updates disabled")
	}

	if cfg.TelegramEnabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	srv := gateway.New(gateway.Options{
		Production:      cfg.IsProduction(),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit.Requests,
		RateWindow:      cfg.Server.RateLimit.Window,
		TrustProxy:      cfg.Server.TrustProxy,
		PageSize:        cfg.Listing.PageSize,
		PageStep:        cfg.Listing.PageStep,
		RefreshInterval: cfg.Detail.RefreshInterval,
		WhatsAppNumber:  cfg.WhatsApp.Number,
		Version:         Version,
	}, gateway.Deps{
		Listing:  store,
		Detail:   fetcher,
		Data:     client,
		Ticker:   sched,
		Recorder: rec,
		Notifier: tn,
		Live:     liveStatus,
		Metrics:  m,
	})

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	log.Println("[INFO] ShareDesk stopped")
	return nil
}

func openRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[WARN] create %s, using noop recorder: %v", dir, err)
			return recorder.NewNoopRecorder()
		}
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}
