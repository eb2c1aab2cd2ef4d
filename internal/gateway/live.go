package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ShareDesk/internal/detail"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/model"
)

const (
	wsPingInterval = 45 * time.Second
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Frames sent to websocket clients.
type listingFrame struct {
	Type  string              `json:"type"` // "listing"
	Page  listing.Page        `json:"page"`
	Error string              `json:"error,omitempty"`
	Price *model.ListingEntry `json:"price,omitempty"`
}

type detailFrame struct {
	Type  string       `json:"type"` // "detail"
	State detail.State `json:"state"`
	Error *frameError  `json:"error,omitempty"`
	Stale bool         `json:"stale,omitempty"`
}

type frameError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// clientMsg is a command from the browser.
type clientMsg struct {
	Type  string `json:"type"` // search, toggle, open
	Query string `json:"query,omitempty"`
	Name  string `json:"name,omitempty"`
}

// session is one websocket connection with a single writer goroutine.
type session struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) (*session, context.Context, context.CancelFunc, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("[WARN] websocket upgrade %s: %v", r.URL.Path, err)
		return nil, nil, nil, false
	}
	s.metrics.SessionOpened()
	sess := &session{conn: conn, out: make(chan any, 32), done: make(chan struct{})}
	ctx, cancel := context.WithCancel(s.bg)
	go sess.writeLoop(ctx)
	return sess, ctx, cancel, true
}

func (sess *session) writeLoop(ctx context.Context) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case v := <-sess.out:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sess.conn.WriteJSON(v); err != nil {
				sess.conn.Close()
				return
			}
		case <-ping.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.conn.Close()
				return
			}
		case <-ctx.Done():
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			sess.conn.Close()
			return
		case <-sess.done:
			return
		}
	}
}

// send queues v for the writer, giving up when the session ends.
func (sess *session) send(v any) {
	select {
	case sess.out <- v:
	case <-sess.done:
	}
}

// readLoop delivers client commands until the connection closes.
func (sess *session) readLoop(onMsg func(clientMsg)) {
	sess.conn.SetReadLimit(4096)
	_ = sess.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg clientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		msg.Type = strings.ToLower(msg.Type)
		onMsg(msg)
	}
}

func (s *Server) closeSession(sess *session, cancel context.CancelFunc) {
	close(sess.done)
	cancel()
	sess.conn.Close()
	s.metrics.SessionClosed()
}

// handleSharesLive streams the listing grid. The first frame is the current
// page; every live price change and reload pushes a fresh page. Clients send
// {"type":"search","query":...} and {"type":"toggle"} to drive the view.
func (s *Server) handleSharesLive(w http.ResponseWriter, r *http.Request) {
	sess, ctx, cancel, ok := s.openSession(w, r)
	if !ok {
		return
	}
	defer s.closeSession(sess, cancel)

	updates, unsubscribe := s.listing.Subscribe()
	defer unsubscribe()

	view := listing.NewView(s.opts.PageSize, s.opts.PageStep)
	cmds := make(chan clientMsg, 8)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		sess.readLoop(func(m clientMsg) {
			select {
			case cmds <- m:
			case <-ctx.Done():
			}
		})
	}()

	render := func(price *model.ListingEntry) listingFrame {
		snap := s.listing.Snapshot()
		f := listingFrame{Type: "listing", Page: view.Render(snap.Entries), Price: price}
		if snap.Err != nil {
			f.Error = "Failed to load shares"
		}
		return f
	}
	sess.send(render(nil))

	for {
		select {
		case u := <-updates:
			sess.send(render(u.Entry))
		case m := <-cmds:
			switch m.Type {
			case "search":
				view.SetQuery(m.Query)
			case "toggle":
				view.Toggle(len(listing.Filter(s.listing.Snapshot().Entries, view.Query())))
			default:
				continue
			}
			sess.send(render(nil))
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleShareDetailLive keeps a detail view open for the connection's
// lifetime, pushing a frame on every load and refresh. {"type":"open",
// "name":...} switches company.
func (s *Server) handleShareDetailLive(w http.ResponseWriter, r *http.Request) {
	sess, ctx, cancel, ok := s.openSession(w, r)
	if !ok {
		return
	}
	defer s.closeSession(sess, cancel)

	view, err := s.detail.Open(ctx, mux.Vars(r)["shareName"], s.ticker, s.opts.RefreshInterval, func(st detail.State) {
		sess.send(newDetailFrame(st))
	})
	if err != nil {
		sess.send(detailFrame{Type: "detail", Error: &frameError{Title: detail.ErrorTitle, Message: detail.MsgUnavailable}})
		log.Printf("[ERROR] open detail view: %v", err)
		return
	}
	defer view.Close()

	sess.readLoop(func(m clientMsg) {
		if m.Type == "open" && strings.TrimSpace(m.Name) != "" {
			if err := view.Retarget(m.Name); err != nil {
				log.Printf("[WARN] retarget detail view: %v", err)
			}
		}
	})
}

func newDetailFrame(st detail.State) detailFrame {
	f := detailFrame{Type: "detail", State: st}
	if st.Err != nil {
		f.Error = &frameError{Title: detail.ErrorTitle, Message: detail.ErrorMessage(st.Err)}
		f.Stale = st.Record != nil
	}
	return f
}
