package live

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"ShareDesk/internal/metrics"
)

// DefaultSubject carries stock_prices inserts relayed from the database.
const DefaultSubject = "sharedesk.stock_prices.insert"

// NATSSubscriber consumes inserts published on a NATS subject. Core NATS
// has no replay, so messages published while disconnected are lost.
type NATSSubscriber struct {
	url     string
	subject string
	metrics *metrics.Metrics

	mu   sync.Mutex
	nc   *nats.Conn
	sub  *nats.Subscription
	stop context.CancelFunc

	// Callbacks hold a read lock while delivering; Stop takes the write lock
	// so it returns only once no callback is running.
	deliverMu sync.RWMutex
	stopped   bool
}

func NewNATSSubscriber(url, subject string, m *metrics.Metrics) *NATSSubscriber {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSubscriber{url: url, subject: subject, metrics: m}
}

func (s *NATSSubscriber) Name() string { return "nats" }

func (s *NATSSubscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nc != nil && s.nc.IsConnected()
}

// Start connects and subscribes. The connection reconnects on its own; the
// subscription ends when ctx is cancelled or Stop is called.
func (s *NATSSubscriber) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil {
		return ErrRunning
	}

	nc, err := nats.Connect(s.url,
		nats.Name("sharedesk-live"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[WARN] nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[INFO] nats: reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	s.deliverMu.Lock()
	s.stopped = false
	s.deliverMu.Unlock()

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		s.deliverMu.RLock()
		defer s.deliverMu.RUnlock()
		if s.stopped {
			return
		}
		deliver(msg.Data, h, s.metrics)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.nc, s.sub, s.stop = nc, sub, cancel
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	log.Printf("[INFO] nats: subscribed to %s", s.subject)
	return nil
}

// Stop unsubscribes, closes the connection and waits for a callback that is
// still delivering. Messages already queued are discarded.
func (s *NATSSubscriber) Stop() {
	s.mu.Lock()
	nc, sub, stop := s.nc, s.sub, s.stop
	s.nc, s.sub, s.stop = nil, nil, nil
	s.mu.Unlock()
	if nc != nil {
		stop()
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("[WARN] nats: unsubscribe: %v", err)
		}
		// Drain would deliver queued messages after Stop returns.
		nc.Close()
	}

	s.deliverMu.Lock()
	s.stopped = true
	s.deliverMu.Unlock()
}
