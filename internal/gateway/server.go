// Package gateway serves the share listing, share details, blog, financial
// documents and lead forms over HTTP, plus websocket feeds for live listing
// prices and self-refreshing detail views.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ShareDesk/internal/detail"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/metrics"
	"ShareDesk/internal/model"
	"ShareDesk/internal/notifier"
	"ShareDesk/internal/recorder"
)

// DataService is the part of the data service read directly by handlers.
type DataService interface {
	ListBlogPosts(ctx context.Context) ([]model.BlogPost, error)
	GetBlogPost(ctx context.Context, slug string) (*model.BlogPost, error)
	ListDocuments(ctx context.Context, companyID string) (model.DocumentIndex, error)
	ListStatementFiles(ctx context.Context, companyID, statementType string) ([]model.DocumentFile, error)
	SignDocument(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// LiveStatus reports the state of the live price feed for /api/health.
type LiveStatus interface {
	Name() string
	Connected() bool
}

type Options struct {
	Production      bool
	AllowedOrigins  []string
	RateLimit       int
	RateWindow      time.Duration
	TrustProxy      bool
	PageSize        int
	PageStep        int
	RefreshInterval time.Duration
	WhatsAppNumber  string
	Version         string
}

type Deps struct {
	Listing  *listing.Store
	Detail   *detail.Fetcher
	Data     DataService
	Ticker   detail.Ticker
	Recorder recorder.Recorder
	Notifier notifier.Notifier
	Live     LiveStatus
	Metrics  *metrics.Metrics
}

type Server struct {
	opts     Options
	listing  *listing.Store
	detail   *detail.Fetcher
	data     DataService
	ticker   detail.Ticker
	recorder recorder.Recorder
	notifier notifier.Notifier
	live     LiveStatus
	metrics  *metrics.Metrics

	limiter  *ipLimiter
	upgrader websocket.Upgrader
	handler  http.Handler
	started  time.Time
	bg       context.Context
}

func New(opts Options, deps Deps) *Server {
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	s := &Server{
		opts:     opts,
		listing:  deps.Listing,
		detail:   deps.Detail,
		data:     deps.Data,
		ticker:   deps.Ticker,
		recorder: deps.Recorder,
		notifier: deps.Notifier,
		live:     deps.Live,
		metrics:  deps.Metrics,
		started:  time.Now(),
		bg:       context.Background(),
	}
	if opts.RateLimit > 0 && opts.RateWindow > 0 {
		s.limiter = newIPLimiter(opts.RateLimit, opts.RateWindow)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		// Origins are checked by the cors middleware before the upgrade.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	// Route variables stay encoded so a share name may contain "/".
	r := mux.NewRouter().UseEncodedPath()
	r.Use(tagRoute)
	notFoundH := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("Route not found"))
	})
	methodH := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &APIError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"})
	})
	r.NotFoundHandler = notFoundH
	r.MethodNotAllowedHandler = methodH

	// Subrouters do not inherit the root router's error handlers.
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFoundH
	api.MethodNotAllowedHandler = methodH
	api.HandleFunc("/shares", s.handle(s.handleShares)).Methods(http.MethodGet)
	api.HandleFunc("/shares/live", s.handleSharesLive).Methods(http.MethodGet)
	api.HandleFunc("/shares-detail/{shareName}", s.handle(s.handleShareDetail)).Methods(http.MethodGet)
	api.HandleFunc("/shares-detail/{shareName}/live", s.handleShareDetailLive).Methods(http.MethodGet)
	api.HandleFunc("/blog-posts", s.handle(s.handleBlogPosts)).Methods(http.MethodGet)
	api.HandleFunc("/blog-posts/{slug}", s.handle(s.handleBlogPost)).Methods(http.MethodGet)
	api.HandleFunc("/financial-documents/{companyId}", s.handle(s.handleDocuments)).Methods(http.MethodGet)
	api.HandleFunc("/financial-documents/{companyId}/{statementType}/download", s.handle(s.handleDownload)).Methods(http.MethodGet)
	api.HandleFunc("/contact/submit", s.handle(s.handleContact)).Methods(http.MethodPost)
	api.HandleFunc("/contact-form/submit", s.handle(s.handleContactForm)).Methods(http.MethodPost)
	api.HandleFunc("/partner", s.handle(s.handlePartner)).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handle(s.handleHealth)).Methods(http.MethodGet)
	api.HandleFunc("/docs", s.handle(s.handleDocs)).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// Outside the router so preflights and unmatched routes get the same treatment.
	s.handler = s.recoverer(s.observe(s.cors(s.rateLimit(r))))
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// waiting up to shutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.bg = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] gateway listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Println("[INFO] gateway shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
