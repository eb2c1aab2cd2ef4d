// Package live delivers stock_prices inserts to the listing as they happen.
//
// Two transports are available: the data service's realtime websocket and a
// NATS subject fed by an upstream relay. Both hand every insert to the
// handler immediately and in arrival order. Nothing is buffered across
// disconnects; inserts published while a subscriber is down are lost and
// picked up by the next full listing reload.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ShareDesk/internal/metrics"
	"ShareDesk/internal/model"
)

// Handler receives one decoded insert.
type Handler func(model.PriceInsert)

// Subscriber is a live price feed.
type Subscriber interface {
	// Start connects and begins delivering inserts to h until ctx is
	// cancelled or Stop is called.
	Start(ctx context.Context, h Handler) error
	// Stop disconnects and waits for the delivery goroutine to exit.
	Stop()
	// Connected reports whether the feed is currently established.
	Connected() bool
	Name() string
}

// ErrInvalidRecord is returned for payloads that do not identify a company.
var ErrInvalidRecord = errors.New("invalid price record")

// ErrRunning is returned by Start on a subscriber that is already started.
var ErrRunning = errors.New("subscriber already running")

// DecodePriceInsert decodes an insert record. It accepts the bare row or the
// row wrapped as {"record": {...}}.
func DecodePriceInsert(data []byte) (model.PriceInsert, error) {
	var wrapped struct {
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return model.PriceInsert{}, fmt.Errorf("decode insert: %w", err)
	}
	if len(wrapped.Record) > 0 && string(wrapped.Record) != "null" {
		data = wrapped.Record
	}

	var evt model.PriceInsert
	if err := json.Unmarshal(data, &evt); err != nil {
		return model.PriceInsert{}, fmt.Errorf("decode insert: %w", err)
	}
	if evt.CompanyID == "" {
		return model.PriceInsert{}, ErrInvalidRecord
	}
	return evt, nil
}

// Options selects and configures a transport.
type Options struct {
	Transport   string // websocket, nats or none
	RealtimeURL string
	APIKey      string
	NATSURL     string
	Subject     string
	Metrics     *metrics.Metrics
}

// New builds the subscriber named by opts.Transport. It returns nil for "none".
func New(opts Options) (Subscriber, error) {
	switch strings.ToLower(opts.Transport) {
	case "", "websocket", "realtime":
		return NewRealtimeSubscriber(RealtimeConfig{
			URL:    opts.RealtimeURL,
			APIKey: opts.APIKey,
		}, opts.Metrics), nil
	case "nats":
		return NewNATSSubscriber(opts.NATSURL, opts.Subject, opts.Metrics), nil
	case "none", "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown live transport %q", opts.Transport)
	}
}

func deliver(data []byte, h Handler, m *metrics.Metrics) {
	evt, err := DecodePriceInsert(data)
	if err != nil {
		m.LiveEvent("invalid")
		return
	}
	h(evt)
}
