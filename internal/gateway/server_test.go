package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShareDesk/internal/detail"
	"ShareDesk/internal/listing"
	"ShareDesk/internal/model"
	"ShareDesk/internal/recorder"
	"ShareDesk/internal/remote"
)

type fakeSource struct {
	mu        sync.Mutex
	companies []model.Company
	listErr   error
	getErr    error
}

func (f *fakeSource) ListCompanies(ctx context.Context) ([]model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.companies, nil
}

func (f *fakeSource) GetCompany(ctx context.Context, name string) (*model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.companies {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("company %q: %w", name, remote.ErrNotFound)
}

func (f *fakeSource) setGetErr(err error) {
	f.mu.Lock()
	f.getErr = err
	f.mu.Unlock()
}

type fakeData struct {
	posts   []model.BlogPost
	files   map[string][]model.DocumentFile
	signErr error
	signed  []string
}

func (f *fakeData) ListBlogPosts(ctx context.Context) ([]model.BlogPost, error) {
	return f.posts, nil
}

func (f *fakeData) GetBlogPost(ctx context.Context, slug string) (*model.BlogPost, error) {
	for _, p := range f.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, remote.ErrNotFound
}

func (f *fakeData) ListDocuments(ctx context.Context, companyID string) (model.DocumentIndex, error) {
	index := model.DocumentIndex{}
	for _, st := range model.StatementTypes {
		index[st] = f.files[st]
	}
	return index, nil
}

func (f *fakeData) ListStatementFiles(ctx context.Context, companyID, statementType string) ([]model.DocumentFile, error) {
	return f.files[statementType], nil
}

func (f *fakeData) SignDocument(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signed = append(f.signed, objectPath)
	return "https://files.example.com/" + objectPath + "?token=abc", nil
}

type fakeRecorder struct {
	recorder.NoopRecorder
	mu    sync.Mutex
	leads []model.Lead
}

func (f *fakeRecorder) RecordLead(l *model.Lead) error {
	f.mu.Lock()
	f.leads = append(f.leads, *l)
	f.mu.Unlock()
	return nil
}

type fakeNotifier struct {
	sent chan string
}

func (f *fakeNotifier) Enabled() bool { return true }

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.sent <- text
	return nil
}

// idleTicker never fires; views only load on open and retarget.
type idleTicker struct{}

func (idleTicker) Every(time.Duration, func()) (func(), error) { return func() {}, nil }

type fakeLive struct{ connected bool }

func (f fakeLive) Name() string    { return "websocket" }
func (f fakeLive) Connected() bool { return f.connected }

func company(id, name, symbol string, price float64) model.Company {
	return model.Company{
		ID:     model.ID(id),
		Name:   name,
		Symbol: symbol,
		StockPrices: []model.PricePoint{
			{ID: model.ID(id + "-1"), Price: model.NewNumber(price), ChangePercentage: model.NewNumber(1.5), TradeDate: model.NewDate(2024, time.March, 1)},
		},
	}
}

func sevenCompanies() []model.Company {
	out := []model.Company{company("1", "Acme", "ACME", 120)}
	for i := 2; i <= 7; i++ {
		out = append(out, company(fmt.Sprint(i), fmt.Sprintf("Company %d", i), fmt.Sprintf("C%d", i), float64(10*i)))
	}
	return out
}

type testEnv struct {
	srv      *Server
	source   *fakeSource
	data     *fakeData
	store    *listing.Store
	recorder *fakeRecorder
	notifier *fakeNotifier
	now      time.Time
	clockMu  sync.Mutex
}

func (e *testEnv) clock() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.clockMu.Lock()
	e.now = e.now.Add(d)
	e.clockMu.Unlock()
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		source:   &fakeSource{companies: sevenCompanies()},
		data:     &fakeData{files: map[string][]model.DocumentFile{}},
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{sent: make(chan string, 4)},
		now:      time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
	env.store = listing.NewStore(env.source, nil)
	require.NoError(t, env.store.Load(context.Background()))

	cache, err := detail.NewCache(16, detail.DefaultTTL, detail.WithClock(env.clock))
	require.NoError(t, err)

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	env.srv = New(opts, Deps{
		Listing:  env.store,
		Detail:   detail.NewFetcher(env.source, cache, nil),
		Data:     env.data,
		Ticker:   idleTicker{},
		Recorder: env.recorder,
		Notifier: env.notifier,
		Live:     fakeLive{connected: true},
	})
	return env
}

func (e *testEnv) do(method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestShares_ListAndFilter(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodGet, "/api/shares", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.ListingEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 7)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(http.MethodGet, "/api/shares?q=acm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered []model.ListingEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Acme", filtered[0].Name)
	assert.Equal(t, "120.00", filtered[0].Price)
	assert.Equal(t, "1.50", filtered[0].Change)
}

func TestShares_LoadFailure(t *testing.T) {
	for _, prod := range []bool{false, true} {
		t.Run(fmt.Sprintf("production=%v", prod), func(t *testing.T) {
			env := newTestEnv(t, Options{Production: prod})
			env.source.listErr = errors.New("connection refused")
			env.store = listing.NewStore(env.source, nil)
			require.Error(t, env.store.Load(context.Background()))
			env.srv.listing = env.store

			rec := env.do(http.MethodGet, "/api/shares", nil, nil)
			require.Equal(t, http.StatusBadGateway, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, http.StatusBadGateway, e.Status)
			assert.Equal(t, "/api/shares", e.Path)
			_, err := time.Parse(time.RFC3339, e.Timestamp)
			assert.NoError(t, err)
			if prod {
				assert.Equal(t, "Internal Server Error", e.Message)
			} else {
				assert.True(t, strings.HasPrefix(e.Message, "Failed to load shares: "), e.Message)
			}
		})
	}
}

func TestShareDetail(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodGet, "/api/shares-detail/Acme", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network", rec.Header().Get("X-Cache"))
	var got model.DetailRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Acme", got.Name)
	require.NotNil(t, got.LatestPrice)

	rec = env.do(http.MethodGet, "/api/shares-detail/Acme", nil, nil)
	assert.Equal(t, "cache", rec.Header().Get("X-Cache"))

	rec = env.do(http.MethodGet, "/api/shares-detail/Company%207", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Company 7", got.Name)
}

func TestShareDetail_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(http.MethodGet, "/api/shares-detail/Nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, detail.MsgNotFound, decodeError(t, rec).Message)
}

func TestShareDetail_StaleOnFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/shares-detail/Acme", nil, nil).Code)

	env.advance(61 * time.Second)
	env.source.setGetErr(errors.New("timeout"))

	rec := env.do(http.MethodGet, "/api/shares-detail/Acme", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stale", rec.Header().Get("X-Cache"))
	assert.NotEmpty(t, rec.Header().Get("Warning"))

	rec = env.do(http.MethodGet, "/api/shares-detail/Beta", nil, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouting_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/api/shares", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Message)

	rec = env.do(http.MethodGet, "/api/partner", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Message)

	rec = env.do(http.MethodDelete, "/api/shares-detail/Acme", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(http.MethodGet, "/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeError(t, rec).Message)
	assert.Equal(t, "/api/unknown", decodeError(t, rec).Path)

	rec = env.do(http.MethodGet, "/elsewhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeError(t, rec).Message)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodOptions, "/api/shares", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = env.do(http.MethodGet, "/api/shares", nil, map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not allowed by CORS", decodeError(t, rec).Message)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodGet, "/api/shares", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: 3, RateWindow: 15 * time.Minute})

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodGet, "/api/health", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("RateLimit-Limit"))
	}
	rec := env.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests from this IP, please try again later.", decodeError(t, rec).Message)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Limits are per client and only cover /api/.
	rec = env.do(http.MethodGet, "/metrics", nil, nil)
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
}

func TestIPLimiter_Refills(t *testing.T) {
	l := newIPLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, _ := l.allow("a", now)
	assert.True(t, ok)
	ok, remaining := l.allow("a", now)
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	ok, _ = l.allow("a", now)
	assert.False(t, ok)
	ok, _ = l.allow("b", now)
	assert.True(t, ok, "other clients have their own bucket")

	ok, _ = l.allow("a", now.Add(31*time.Second))
	assert.True(t, ok, "one token refills every 30s")
}

func TestBlogPosts(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.data.posts = []model.BlogPost{
		{ID: "1", Title: "Why unlisted", Slug: "why-unlisted", Content: "<h1>Intro</h1><p></p><p>Pre-IPO shares <b>explained</b>.</p>"},
		{ID: "2", Title: "Second", Slug: "second", Excerpt: "Given", Content: "<p>Body</p>"},
	}

	rec := env.do(http.MethodGet, "/api/blog-posts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []model.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 2)
	assert.Equal(t, "Pre-IPO shares explained.", posts[0].Excerpt)
	assert.Empty(t, posts[0].Content)
	assert.Equal(t, "Given", posts[1].Excerpt)
	assert.Equal(t, "<p>Body</p>", env.data.posts[1].Content, "listing must not modify the service's posts")

	rec = env.do(http.MethodGet, "/api/blog-posts/second", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var post model.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "<p>Body</p>", post.Content)

	rec = env.do(http.MethodGet, "/api/blog-posts/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Blog post not found", decodeError(t, rec).Message)
}

func TestExcerpt_Truncates(t *testing.T) {
	long := strings.Repeat("शेयर बाज़ार ", 60)
	got := excerpt("<p>" + long + "</p>")
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), excerptLength+1)
	assert.Equal(t, "", excerpt("  "))
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.data.files[model.StatementBalanceSheet] = []model.DocumentFile{
		{Name: "bs-2024.csv", Path: "financial_statements/c1/balance_sheet/bs-2024.csv"},
		{Name: "bs-2023.csv", Path: "financial_statements/c1/balance_sheet/bs-2023.csv"},
	}

	rec := env.do(http.MethodGet, "/api/financial-documents/c1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bs-2024.csv")

	rec = env.do(http.MethodGet, "/api/financial-documents/c1/balance_sheet/download", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var link downloadLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.Equal(t, "bs-2024.csv", link.FileName)
	assert.Equal(t, 3600, link.ExpiresIn)
	assert.Contains(t, link.SignedURL, "bs-2024.csv")

	rec = env.do(http.MethodGet, "/api/financial-documents/c1/cash_flow/download", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not available yet", decodeError(t, rec).Message)

	rec = env.do(http.MethodGet, "/api/financial-documents/c1/bogus/download", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid statement type", decodeError(t, rec).Message)

	for _, id := range []string{"..%2Fx", "%2E%2E", "a%5Cb", "c1%2F..%2Fc2"} {
		rec = env.do(http.MethodGet, "/api/financial-documents/"+id, nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "Invalid company id", decodeError(t, rec).Message)

		rec = env.do(http.MethodGet, "/api/financial-documents/"+id+"/balance_sheet/download", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "Invalid company id", decodeError(t, rec).Message)
	}

	env.data.signErr = errors.New("storage down")
	rec = env.do(http.MethodGet, "/api/financial-documents/c1/balance_sheet/download", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(decodeError(t, rec).Message, "Failed to generate download link"))
}

func TestContact_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})

	cases := []struct {
		path  string
		body  map[string]string
		field string
	}{
		{"/api/contact/submit", map[string]string{"name": "Asha"}, "phone"},
		{"/api/contact/submit", map[string]string{"name": "Asha", "phone": "call me"}, "phone"},
		{"/api/contact-form/submit", map[string]string{"name": "Asha", "email": "asha@example.com"}, "message"},
		{"/api/contact-form/submit", map[string]string{"name": "Asha", "email": "nope", "message": "hi"}, "email"},
		{"/api/partner", map[string]string{"email": "a@b.co", "phone": "+91 98765 43210"}, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.path+"/"+tc.field, func(t *testing.T) {
			rec := env.do(http.MethodPost, tc.path, tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, "Validation failed", e.Message)
			details, ok := e.Details.(map[string]any)
			require.True(t, ok)
			fields := details["fields"].(map[string]any)
			assert.Contains(t, fields, tc.field)
			assert.Contains(t, details, "submitted")
		})
	}

	rec := env.do(http.MethodPost, "/api/contact/submit", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.recorder.leads)
}

func TestContact_Success(t *testing.T) {
	env := newTestEnv(t, Options{WhatsAppNumber: "+91 98765-43210"})

	rec := env.do(http.MethodPost, "/api/partner", map[string]string{
		"name":         "Asha",
		"email":        "asha@example.com",
		"phone":        "+91 99999 00000",
		"organization": "Wealth & Co",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.True(t, strings.HasPrefix(resp["whatsappUrl"].(string), "https://wa.me/919876543210?text="))

	env.recorder.mu.Lock()
	require.Len(t, env.recorder.leads, 1)
	assert.Equal(t, model.LeadPartner, env.recorder.leads[0].Kind)
	env.recorder.mu.Unlock()

	select {
	case text := <-env.notifier.sent:
		assert.Contains(t, text, "Wealth &amp; Co")
	case <-time.After(2 * time.Second):
		t.Fatal("operator was not notified")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{Version: "test"})
	rec := env.do(http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var h health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "test", h.Version)
	assert.Equal(t, 7, h.Listing.Entries)
	require.NotNil(t, h.Live)
	assert.True(t, h.Live.Connected)

	env.srv.live = fakeLive{connected: false}
	rec = env.do(http.MethodGet, "/api/health", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)

	rec = env.do(http.MethodGet, "/api/docs", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/shares-detail/{shareName}")
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readListing(t *testing.T, conn *websocket.Conn) listingFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f listingFrame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, "listing", f.Type)
	return f
}

func TestSharesLive(t *testing.T) {
	env := newTestEnv(t, Options{})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "/api/shares/live")

	f := readListing(t, conn)
	assert.Len(t, f.Page.Entries, 6)
	assert.Equal(t, 7, f.Page.Total)
	assert.True(t, f.Page.ShowControl)
	assert.Equal(t, "View More", f.Page.Label)

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "toggle"}))
	f = readListing(t, conn)
	assert.Len(t, f.Page.Entries, 7)
	assert.Equal(t, "View Less", f.Page.Label)

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "search", Query: "acme"}))
	f = readListing(t, conn)
	require.Len(t, f.Page.Entries, 1)
	assert.Equal(t, "acme", f.Page.Query)

	require.True(t, env.store.Apply(model.PriceInsert{
		CompanyID:        "1",
		Price:            model.NewNumber(130),
		ChangePercentage: model.NewNumber(3.1),
	}))
	f = readListing(t, conn)
	require.NotNil(t, f.Price)
	assert.Equal(t, "130.00", f.Price.Price)
	require.Len(t, f.Page.Entries, 1)
	assert.Equal(t, "3.10", f.Page.Entries[0].Change)
}

func readDetail(t *testing.T, conn *websocket.Conn, done func(detailFrame) bool) detailFrame {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var f detailFrame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, "detail", f.Type)
		if done(f) {
			return f
		}
	}
}

func TestShareDetailLive(t *testing.T) {
	env := newTestEnv(t, Options{})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "/api/shares-detail/Acme/live")
	f := readDetail(t, conn, func(f detailFrame) bool { return !f.State.Loading })
	require.NotNil(t, f.State.Record)
	assert.Equal(t, "Acme", f.State.Record.Name)
	assert.Nil(t, f.Error)

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "open", Name: "Company%203"}))
	f = readDetail(t, conn, func(f detailFrame) bool { return !f.State.Loading && f.State.Name == "Company 3" })
	require.NotNil(t, f.State.Record)
	assert.Equal(t, model.ID("3"), f.State.Record.ID)

	require.NoError(t, conn.WriteJSON(clientMsg{Type: "open", Name: "Missing"}))
	f = readDetail(t, conn, func(f detailFrame) bool { return !f.State.Loading && f.State.Name == "Missing" })
	require.NotNil(t, f.Error)
	assert.Equal(t, detail.ErrorTitle, f.Error.Title)
	assert.Equal(t, detail.MsgNotFound, f.Error.Message)
}
