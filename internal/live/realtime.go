package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ShareDesk/internal/metrics"
)

const (
	phoenixTopic      = "phoenix"
	defaultHeartbeat  = 30 * time.Second
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// RealtimeConfig configures a RealtimeSubscriber.
type RealtimeConfig struct {
	// URL is the realtime websocket endpoint, or the data service base URL
	// from which it is derived.
	URL        string
	APIKey     string
	Schema     string
	Table      string
	Heartbeat  time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// RealtimeSubscriber listens for INSERTs on the stock_prices table over the
// data service's Phoenix channel websocket. It is scoped to the whole table;
// filtering to listed companies happens in the handler.
type RealtimeSubscriber struct {
	cfg     RealtimeConfig
	metrics *metrics.Metrics
	dialer  *websocket.Dialer

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected atomic.Bool
	ref       atomic.Uint64
}

// NewRealtimeSubscriber creates a subscriber; it does not connect until Start.
func NewRealtimeSubscriber(cfg RealtimeConfig, m *metrics.Metrics) *RealtimeSubscriber {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Table == "" {
		cfg.Table = "stock_prices"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &RealtimeSubscriber{
		cfg:     cfg,
		metrics: m,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *RealtimeSubscriber) Name() string { return "realtime" }

func (s *RealtimeSubscriber) Connected() bool { return s.connected.Load() }

// Topic is the channel joined for the configured table.
func (s *RealtimeSubscriber) Topic() string {
	return "realtime:" + s.cfg.Schema + ":" + s.cfg.Table
}

// Endpoint returns the websocket URL with the api key and protocol version.
func (s *RealtimeSubscriber) Endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime url: unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/websocket") {
		u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	}
	q := u.Query()
	if s.cfg.APIKey != "" {
		q.Set("apikey", s.cfg.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start validates the endpoint and runs the connection loop in the
// background. Connection failures are retried with exponential backoff.
func (s *RealtimeSubscriber) Start(ctx context.Context, h Handler) error {
	endpoint, err := s.Endpoint()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, endpoint, h, s.done)
	return nil
}

// Stop disconnects. Inserts published afterwards are not delivered.
func (s *RealtimeSubscriber) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *RealtimeSubscriber) run(ctx context.Context, endpoint string, h Handler, done chan struct{}) {
	defer close(done)
	backoff := s.cfg.MinBackoff
	for {
		joined, err := s.session(ctx, endpoint, h)
		s.connected.Store(false)
		if ctx.Err() != nil {
			log.Printf("[INFO] realtime: unsubscribed from %s", s.Topic())
			return
		}
		if joined {
			backoff = s.cfg.MinBackoff
		}
		log.Printf("[WARN] realtime: %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type phxReply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changePayload struct {
	Data struct {
		Type   string          `json:"type"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

// session runs one connection until it fails or ctx ends. joined reports
// whether the channel join was acknowledged.
func (s *RealtimeSubscriber) session(ctx context.Context, endpoint string, h Handler) (joined bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(topic, event string, payload any) (string, error) {
		ref := strconv.FormatUint(s.ref.Add(1), 10)
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return ref, conn.WriteJSON(map[string]any{
			"topic":   topic,
			"event":   event,
			"payload": payload,
			"ref":     ref,
		})
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMu.Unlock()
			conn.Close()
		case <-stop:
		}
	}()

	joinRef, err := send(s.Topic(), "phx_join", s.joinPayload())
	if err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	go func() {
		ticker := time.NewTicker(s.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := send(phoenixTopic, "heartbeat", struct{}{}); err != nil {
					conn.Close()
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return joined, fmt.Errorf("read: %w", err)
		}
		var msg phxMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "phx_reply":
			if msg.Topic != s.Topic() || msg.Ref == nil || *msg.Ref != joinRef {
				continue
			}
			var reply phxReply
			_ = json.Unmarshal(msg.Payload, &reply)
			if reply.Status != "ok" {
				return false, fmt.Errorf("join %s rejected: %s", s.Topic(), string(reply.Response))
			}
			joined = true
			s.connected.Store(true)
			log.Printf("[INFO] realtime: subscribed to %s", s.Topic())
		case "postgres_changes":
			var change changePayload
			if err := json.Unmarshal(msg.Payload, &change); err != nil {
				s.metrics.LiveEvent("invalid")
				continue
			}
			if !strings.EqualFold(change.Data.Type, "INSERT") {
				continue
			}
			deliver(change.Data.Record, h, s.metrics)
		case "INSERT":
			deliver(msg.Payload, h, s.metrics)
		case "phx_error", "phx_close":
			if msg.Topic == s.Topic() {
				return joined, errors.New("channel " + msg.Event)
			}
		}
	}
}

func (s *RealtimeSubscriber) joinPayload() map[string]any {
	payload := map[string]any{
		"config": map[string]any{
			"broadcast": map[string]any{"self": false},
			"presence":  map[string]any{"key": ""},
			"postgres_changes": []map[string]string{{
				"event":  "INSERT",
				"schema": s.cfg.Schema,
				"table":  s.cfg.Table,
			}},
		},
	}
	if s.cfg.APIKey != "" {
		payload["access_token"] = s.cfg.APIKey
	}
	return payload
}
