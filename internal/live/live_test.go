package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShareDesk/internal/model"
)

func TestDecodePriceInsert(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantID    model.ID
		wantPrice string
		wantErr   bool
	}{
		{"bare row", `{"company_id": 7, "price": 130, "change_percentage": 3.1}`, "7", "130", false},
		{"wrapped", `{"record": {"company_id": "X", "price": "99.5"}}`, "X", "99.5", false},
		{"bad price tolerated", `{"company_id": "X", "price": "n/a"}`, "X", "", false},
		{"no company", `{"price": 1}`, "", "", true},
		{"not json", `nope`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := DecodePriceInsert([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, evt.CompanyID)
			assert.Equal(t, tt.wantPrice, evt.Price.String())
		})
	}

	_, err := DecodePriceInsert([]byte(`{}`))
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestRealtimeEndpoint(t *testing.T) {
	s := NewRealtimeSubscriber(RealtimeConfig{URL: "https://abc.example.co", APIKey: "k"}, nil)
	u, err := s.Endpoint()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "wss://abc.example.co/realtime/v1/websocket?"))
	assert.Contains(t, u, "apikey=k")
	assert.Contains(t, u, "vsn=1.0.0")
	assert.Equal(t, "realtime:public:stock_prices", s.Topic())

	_, err = NewRealtimeSubscriber(RealtimeConfig{URL: "ftp://x"}, nil).Endpoint()
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	sub, err := New(Options{Transport: "nats"})
	require.NoError(t, err)
	assert.Equal(t, "nats", sub.Name())

	sub, err = New(Options{Transport: "none"})
	require.NoError(t, err)
	assert.Nil(t, sub)

	_, err = New(Options{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}

func collect(ch chan model.PriceInsert) Handler {
	return func(evt model.PriceInsert) {
		select {
		case ch <- evt:
		default:
		}
	}
}

// realtimeServer acknowledges the join and sends one insert per connection,
// closing the connection afterwards when dropAfter is set.
func realtimeServer(t *testing.T, dropAfter bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1.0.0", r.URL.Query().Get("vsn"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)

		var join phxMessage
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := json.Unmarshal(data, &join); err != nil || join.Ref == nil {
			return
		}
		assert.Equal(t, "phx_join", join.Event)
		assert.Equal(t, "realtime:public:stock_prices", join.Topic)

		_ = conn.WriteJSON(map[string]any{
			"topic": join.Topic, "event": "phx_reply", "ref": *join.Ref,
			"payload": map[string]any{"status": "ok", "response": map[string]any{}},
		})
		_ = conn.WriteJSON(map[string]any{
			"topic": join.Topic, "event": "postgres_changes",
			"payload": map[string]any{"data": map[string]any{
				"type":   "INSERT",
				"record": map[string]any{"company_id": "X", "price": 100 + n, "change_percentage": 1.5},
			}},
		})
		if dropAfter && n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func TestRealtimeSubscriber_DeliversInserts(t *testing.T) {
	srv, _ := realtimeServer(t, false)
	s := NewRealtimeSubscriber(RealtimeConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/v1/websocket"}, nil)

	got := make(chan model.PriceInsert, 4)
	require.NoError(t, s.Start(context.Background(), collect(got)))
	defer s.Stop()

	select {
	case evt := <-got:
		assert.Equal(t, model.ID("X"), evt.CompanyID)
		assert.Equal(t, "101", evt.Price.String())
	case <-time.After(5 * time.Second):
		t.Fatal("no insert delivered")
	}
	assert.Eventually(t, s.Connected, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Start(context.Background(), func(model.PriceInsert) {}), ErrRunning)
}

func TestRealtimeSubscriber_Reconnects(t *testing.T) {
	srv, conns := realtimeServer(t, true)
	s := NewRealtimeSubscriber(RealtimeConfig{
		URL:        srv.URL,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	}, nil)
	// srv.URL has no /websocket suffix, so the default path is appended.
	got := make(chan model.PriceInsert, 4)
	require.NoError(t, s.Start(context.Background(), collect(got)))

	prices := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(prices) < 2 {
		select {
		case evt := <-got:
			prices[evt.Price.String()] = true
		case <-deadline:
			t.Fatalf("expected inserts from two connections, got %v", prices)
		}
	}
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	s.Stop()
	assert.False(t, s.Connected())
	s.Stop()
}
