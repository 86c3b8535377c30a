package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketwatch/internal/config"
	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/store"
	"marketwatch/internal/util"
	"marketwatch/pkg/marketwatch"
)

const validToken = "tok-1"

// fakeService is an in-memory stand-in for the remote service.
type fakeService struct {
	mu            sync.Mutex
	alerts        []map[string]any
	holdings      []map[string]any
	names         map[string]string
	expired       bool
	failDelete    bool
	searches      []string
	portfolioGate chan struct{}
	searchGate    chan struct{} // when non-nil, lookups wait until it is closed
}

func newFakeService() *fakeService {
	return &fakeService{names: map[string]string{}}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			expired := f.expired
			f.mu.Unlock()
			if expired || r.Header.Get("Authorization") != "Bearer "+validToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"access_token": validToken, "token_type": "bearer"})
	})
	mux.HandleFunc("GET /alerts", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := f.alerts
		if out == nil {
			out = []map[string]any{}
		}
		writeJSON(w, out)
	}))
	mux.HandleFunc("POST /add-alert", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		q := r.URL.Query()
		target, _ := decimal.NewFromString(q.Get("target"))
		f.alerts = append([]map[string]any{{
			"_id":          "a" + q.Get("symbol"),
			"stock_symbol": strings.ToUpper(q.Get("symbol")),
			"target_price": target.InexactFloat64(),
			"status":       "active",
			"email":        "user@example.com",
		}}, f.alerts...)
		writeJSON(w, map[string]string{"msg": "Alert Added Successfully"})
	}))
	mux.HandleFunc("DELETE /alert/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := r.PathValue("id")
		kept := f.alerts[:0:0]
		for _, a := range f.alerts {
			if a["_id"] != id {
				kept = append(kept, a)
			}
		}
		f.alerts = kept
		writeJSON(w, map[string]string{"msg": "Alert Deleted"})
	}))
	mux.HandleFunc("GET /indices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]float64{"nifty": 22000.5, "sensex": 73000})
	})
	mux.HandleFunc("GET /portfolio", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		gate := f.portfolioGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		out := f.holdings
		if out == nil {
			out = []map[string]any{}
		}
		writeJSON(w, out)
	}))
	mux.HandleFunc("POST /portfolio/transaction", authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Symbol   string  `json:"symbol"`
			Quantity int64   `json:"quantity"`
			Price    float64 `json:"price"`
			Type     string  `json:"type"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.holdings = append(f.holdings, map[string]any{
			"symbol": body.Symbol, "quantity": body.Quantity, "avg_price": body.Price,
		})
		f.mu.Unlock()
		writeJSON(w, map[string]string{"msg": "ok"})
	}))
	mux.HandleFunc("DELETE /clear-all", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.alerts = nil
		f.mu.Unlock()
		writeJSON(w, map[string]string{"msg": "cleared"})
	}))
	mux.HandleFunc("GET /analyze-stock/{symbol}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"analysis": r.PathValue("symbol") + " looks steady"})
	}))
	mux.HandleFunc("GET /market-news", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]string{{"title": "Markets close higher", "publisher": "Wire"}})
	}))
	mux.HandleFunc("GET /stock-history/{symbol}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"date": "2024-05-01", "price": 101.5}})
	}))
	mux.HandleFunc("GET /search-stock", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		f.mu.Lock()
		gate := f.searchGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		f.searches = append(f.searches, q)
		name, ok := f.names[strings.ToUpper(q)]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, []any{})
			return
		}
		writeJSON(w, []map[string]string{{"symbol": strings.ToUpper(q), "name": name}})
	})
	return mux
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Poll.AlertsInterval = time.Hour
	cfg.Poll.IndicesInterval = time.Hour
	cfg.Poll.PortfolioInterval = time.Hour
	cfg.Enrichment.Delay = time.Millisecond
	return cfg
}

type harness struct {
	svc *fakeService
	kv  *store.MemoryKV
	app *App

	mu      sync.Mutex
	notices []Notice
}

func newHarness(t *testing.T, cfg *config.Config, manual bool) *harness {
	t.Helper()
	h := &harness{svc: newFakeService(), kv: store.NewMemoryKV()}
	srv := httptest.NewServer(h.svc.handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.app = New(ctx, Options{
		API:           marketwatch.NewClient(srv.URL, marketwatch.Options{Timeout: 2 * time.Second}),
		KV:            h.kv,
		Config:        cfg,
		Log:           util.Discard(),
		ManualPolling: manual,
	})
	h.app.OnNotice(func(n Notice) {
		h.mu.Lock()
		h.notices = append(h.notices, n)
		h.mu.Unlock()
	})
	if err := h.app.Boot(ctx); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	t.Cleanup(func() { h.app.Logout(context.Background()) })
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if err := h.app.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoginRunsInitialLoad(t *testing.T) {
	h := newHarness(t, testConfig(), false)
	h.svc.alerts = []map[string]any{{"_id": "a1", "stock_symbol": "INFY", "target_price": 1500, "status": "triggered", "email": "user@example.com"}}
	h.login(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.app.Poller().Wait(ctx); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	s := h.app.Snapshot()
	if !s.LoggedIn {
		t.Fatal("not logged in")
	}
	if len(s.Alerts) != 1 || s.AlertStats.Triggered != 1 {
		t.Errorf("alerts = %+v stats = %+v", s.Alerts, s.AlertStats)
	}
	if s.UserEmail != "user@example.com" {
		t.Errorf("UserEmail = %q", s.UserEmail)
	}
	if s.Indices == nil || !s.Indices.Sensex.Equal(decimal.NewFromInt(73000)) {
		t.Errorf("Indices = %+v", s.Indices)
	}
	for target, loading := range s.Loading {
		if loading {
			t.Errorf("%s still loading after initial load", target)
		}
	}
	if tok, err := h.kv.Get(context.Background(), store.KeyToken); err != nil || string(tok) != validToken {
		t.Errorf("persisted token = %q, %v", tok, err)
	}
}

func TestLoginBadPassword(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	err := h.app.Login(context.Background(), "user@example.com", "nope")
	if !errors.Is(err, marketwatch.ErrUnauthorized) {
		t.Errorf("Login = %v, want ErrUnauthorized", err)
	}
	if h.app.LoggedIn() {
		t.Error("logged in with a bad password")
	}
}

func TestSubmitAlertAppearsAfterRefetch(t *testing.T) {
	h := newHarness(t, testConfig(), false)
	h.login(t)
	ctx := context.Background()
	h.app.Poller().Wait(ctx)

	if err := h.app.SubmitAlert(ctx, "tata", decimal.NewFromInt(950)); err != nil {
		t.Fatalf("SubmitAlert: %v", err)
	}
	if form := h.app.Snapshot().AlertForm; form != (AlertForm{}) {
		t.Errorf("form not cleared: %+v", form)
	}

	waitFor(t, "new alert", func() bool { return len(h.app.Snapshot().Alerts) == 1 })
	a := h.app.Snapshot().Alerts[0]
	if a.Symbol != "TATA" || a.Status != domain.AlertActive || !a.TargetPrice.Equal(decimal.NewFromInt(950)) {
		t.Errorf("alert = %+v", a)
	}
}

func TestSubmitAlertFailureKeepsForm(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.login(t)

	err := h.app.SubmitAlert(context.Background(), "", decimal.NewFromInt(950))
	if !errors.Is(err, domain.ErrEmptySymbol) {
		t.Fatalf("SubmitAlert = %v, want ErrEmptySymbol", err)
	}
	if form := h.app.Snapshot().AlertForm; form.Target != "950" {
		t.Errorf("form = %+v, want target kept", form)
	}
}

func TestDeleteAlert(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.alerts = []map[string]any{
		{"_id": "a1", "stock_symbol": "INFY", "target_price": 1, "status": "active"},
		{"_id": "a2", "stock_symbol": "TCS", "target_price": 2, "status": "active"},
	}
	h.login(t)
	ctx := context.Background()
	if err := h.app.Load(ctx, poll.TargetAlerts); err != nil {
		t.Fatalf("Load: %v", err)
	}

	h.svc.mu.Lock()
	h.svc.failDelete = true
	h.svc.mu.Unlock()
	if err := h.app.DeleteAlert(ctx, "a1"); err == nil {
		t.Fatal("DeleteAlert should fail")
	}
	if n := len(h.app.Snapshot().Alerts); n != 2 {
		t.Errorf("alerts after failed delete = %d, want 2", n)
	}

	h.svc.mu.Lock()
	h.svc.failDelete = false
	h.svc.mu.Unlock()
	if err := h.app.DeleteAlert(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAlert: %v", err)
	}
	s := h.app.Snapshot()
	if len(s.Alerts) != 1 || s.Alerts[0].ID != "a2" {
		t.Errorf("alerts = %+v, want only a2", s.Alerts)
	}
}

func TestPlaceholderNameResolved(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.holdings = []map[string]any{{"symbol": "RELI", "quantity": 10, "avg_price": 2400, "name": "N/A"}}
	h.svc.names["RELI"] = "Reliance Industries"
	gate := make(chan struct{})
	h.svc.searchGate = gate
	h.login(t)
	ctx := context.Background()

	if err := h.app.Load(ctx, poll.TargetPortfolio); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := h.app.Snapshot().Holdings[0].Name; got != "" {
		t.Fatalf("name before resolve = %q, want empty", got)
	}
	close(gate)

	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.app.Resolver().Wait(wctx); err != nil {
		t.Fatal(err)
	}
	if got := h.app.Snapshot().Holdings[0].Name; got != "Reliance Industries" {
		t.Errorf("name = %q, want %q", got, "Reliance Industries")
	}

	raw, err := h.kv.Get(ctx, store.KeyNameCache)
	if err != nil {
		t.Fatalf("name cache not persisted: %v", err)
	}
	var persisted map[string]string
	json.Unmarshal(raw, &persisted)
	if persisted["RELI"] != "Reliance Industries" {
		t.Errorf("persisted cache = %v", persisted)
	}

	// A second load uses the cache and makes no lookup.
	h.svc.mu.Lock()
	before := len(h.svc.searches)
	h.svc.mu.Unlock()
	h.app.Load(ctx, poll.TargetPortfolio)
	h.app.Resolver().Wait(wctx)
	h.svc.mu.Lock()
	after := len(h.svc.searches)
	h.svc.mu.Unlock()
	if after != before {
		t.Errorf("cached symbol looked up again (%d -> %d)", before, after)
	}
	if got := h.app.Snapshot().Holdings[0].Name; got != "Reliance Industries" {
		t.Errorf("name from cache = %q", got)
	}
}

func TestRefreshNamesStartsCold(t *testing.T) {
	cfg := testConfig()
	cfg.Enrichment.Delay = 200 * time.Millisecond
	h := newHarness(t, cfg, true)
	h.svc.holdings = []map[string]any{
		{"symbol": "RELI", "quantity": 1, "avg_price": 1},
		{"symbol": "TCS", "quantity": 2, "avg_price": 1},
	}
	h.svc.names["RELI"] = "Reliance Industries"
	h.svc.names["TCS"] = "Tata Consultancy"
	h.login(t)
	ctx := context.Background()
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	h.app.Load(ctx, poll.TargetPortfolio)
	h.app.Resolver().Wait(wctx)
	if got := h.app.Snapshot().Holdings[1].Name; got != "Tata Consultancy" {
		t.Fatalf("name before refresh = %q", got)
	}

	gate := make(chan struct{})
	h.svc.mu.Lock()
	h.svc.names["RELI"] = "Reliance Industries Ltd"
	h.svc.searchGate = gate
	h.svc.mu.Unlock()

	if err := h.app.RefreshNames(ctx); err != nil {
		t.Fatalf("RefreshNames: %v", err)
	}
	for _, hd := range h.app.Snapshot().Holdings {
		if hd.Name != "" {
			t.Errorf("%s name = %q right after refresh, want empty", hd.Symbol, hd.Name)
		}
	}
	if n := h.app.Names().Len(); n != 0 {
		t.Errorf("cache holds %d names right after refresh, want 0", n)
	}

	close(gate)
	if err := h.app.Resolver().Wait(wctx); err != nil {
		t.Fatal(err)
	}
	s := h.app.Snapshot()
	if got := s.Holdings[0].Name; got != "Reliance Industries Ltd" {
		t.Errorf("RELI name after refresh = %q", got)
	}
	if got := s.Holdings[1].Name; got != "Tata Consultancy" {
		t.Errorf("TCS name after refresh = %q", got)
	}
}

func TestUnauthorizedPollLogsOut(t *testing.T) {
	cfg := testConfig()
	cfg.Poll.AlertsInterval = 20 * time.Millisecond
	h := newHarness(t, cfg, false)
	h.svc.alerts = []map[string]any{{"_id": "a1", "stock_symbol": "INFY", "target_price": 1, "status": "active"}}
	h.login(t)
	ctx := context.Background()
	h.app.Poller().Wait(ctx)
	if len(h.app.Snapshot().Alerts) != 1 {
		t.Fatal("initial alerts not loaded")
	}

	h.svc.mu.Lock()
	h.svc.expired = true
	h.svc.mu.Unlock()

	waitFor(t, "logout", func() bool { return !h.app.LoggedIn() })
	s := h.app.Snapshot()
	if len(s.Alerts) != 0 || len(s.Holdings) != 0 || s.Indices != nil {
		t.Errorf("state not cleared: %+v", s)
	}
	if h.app.Poller().Running() {
		t.Error("poller still running after logout")
	}
	if _, err := h.kv.Get(ctx, store.KeyToken); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("persisted token survived logout: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	found := false
	for _, n := range h.notices {
		if strings.Contains(n.Message, "expired") {
			found = true
		}
	}
	if !found {
		t.Errorf("no expiry notice in %+v", h.notices)
	}
}

func TestStaleResponseAfterLogoutDropped(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.holdings = []map[string]any{{"symbol": "INFY", "quantity": 1, "avg_price": 1, "name": "Infosys"}}
	gate := make(chan struct{})
	h.svc.portfolioGate = gate
	h.login(t)

	done := make(chan error, 1)
	go func() { done <- h.app.Load(context.Background(), poll.TargetPortfolio) }()
	time.Sleep(20 * time.Millisecond)

	h.app.Logout(context.Background())
	close(gate)
	<-done

	if n := len(h.app.Snapshot().Holdings); n != 0 {
		t.Errorf("holdings applied after logout: %d", n)
	}
}

func TestResumeAndTheme(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	ctx := context.Background()

	if ok, err := h.app.Resume(ctx); ok || err != nil {
		t.Fatalf("Resume with nothing stored = %v, %v", ok, err)
	}
	h.kv.Put(ctx, store.KeyToken, []byte(validToken))
	if ok, err := h.app.Resume(ctx); !ok || err != nil {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	if !h.app.LoggedIn() {
		t.Error("not logged in after Resume")
	}

	if err := h.app.SetTheme(ctx, ThemeLight); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.kv.Get(ctx, store.KeyTheme); string(got) != ThemeLight {
		t.Errorf("persisted theme = %q", got)
	}
}

func TestRecordTransactionRefetchesPortfolio(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.names["INFY"] = "Infosys"
	h.login(t)
	ctx := context.Background()
	h.app.OpenTradeForm()

	txn := domain.Transaction{Symbol: " infy ", Quantity: 5, Price: decimal.NewFromInt(1500), Side: domain.Buy}
	if err := h.app.RecordTransaction(ctx, txn); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	s := h.app.Snapshot()
	if s.TradeFormOpen {
		t.Error("trade form still open")
	}
	if len(s.Holdings) != 1 || s.Holdings[0].Symbol != "INFY" {
		t.Fatalf("holdings = %+v", s.Holdings)
	}
	if !s.TotalInvested.Equal(decimal.NewFromInt(7500)) {
		t.Errorf("TotalInvested = %s, want 7500", s.TotalInvested)
	}
}

func TestSearchNeedsSession(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.names["TATA"] = "Tata Motors"

	h.app.SearchAlerts("tata")
	h.app.AlertSearch().Flush()
	if st := h.app.Snapshot().AlertSearch; st.Visible {
		t.Error("search ran without a session")
	}

	h.login(t)
	h.app.SearchAlerts("tata")
	h.app.AlertSearch().Flush()
	st := h.app.Snapshot().AlertSearch
	if !st.Visible || len(st.Suggestions) != 1 {
		t.Errorf("AlertSearch = %+v", st)
	}
	h.app.SelectAlertSuggestion(st.Suggestions[0])
	if got := h.app.Snapshot().AlertForm.Symbol; got != "TATA" {
		t.Errorf("form symbol = %q", got)
	}
}

// expire makes every authenticated endpoint answer 401.
func (h *harness) expire() {
	h.svc.mu.Lock()
	h.svc.expired = true
	h.svc.mu.Unlock()
}

func (h *harness) sawNotice(substr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.notices {
		if strings.Contains(n.Message, substr) {
			return true
		}
	}
	return false
}

func TestSupplementalCallsEndSessionOnUnauthorized(t *testing.T) {
	calls := map[string]func(context.Context, *App) error{
		"analyze": func(ctx context.Context, a *App) error {
			_, err := a.AnalyzeStock(ctx, "infy")
			return err
		},
		"news": func(ctx context.Context, a *App) error {
			_, err := a.MarketNews(ctx)
			return err
		},
		"history": func(ctx context.Context, a *App) error {
			_, err := a.StockHistory(ctx, "infy")
			return err
		},
		"clear": func(ctx context.Context, a *App) error {
			return a.ClearAlerts(ctx)
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, testConfig(), true)
			h.login(t)
			ctx := context.Background()
			h.expire()

			if err := call(ctx, h.app); !errors.Is(err, marketwatch.ErrUnauthorized) {
				t.Fatalf("error = %v, want ErrUnauthorized", err)
			}
			if h.app.LoggedIn() {
				t.Error("still logged in after 401")
			}
			if _, err := h.kv.Get(ctx, store.KeyToken); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("persisted token survived 401: %v", err)
			}
			if !h.sawNotice("expired") {
				t.Error("no expiry notice")
			}
		})
	}
}

func TestSupplementalCalls(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	h.svc.alerts = []map[string]any{{"_id": "a1", "stock_symbol": "INFY", "target_price": 1, "status": "active"}}
	h.login(t)
	ctx := context.Background()
	h.app.Load(ctx, poll.TargetAlerts)

	text, err := h.app.AnalyzeStock(ctx, "infy")
	if err != nil {
		t.Fatalf("AnalyzeStock: %v", err)
	}
	if text != "INFY looks steady" {
		t.Errorf("analysis = %q", text)
	}
	points, err := h.app.StockHistory(ctx, "infy")
	if err != nil || len(points) != 1 || !points[0].Price.Equal(decimal.RequireFromString("101.5")) {
		t.Errorf("StockHistory = %+v, %v", points, err)
	}

	if err := h.app.ClearAlerts(ctx); err != nil {
		t.Fatalf("ClearAlerts: %v", err)
	}
	if n := len(h.app.Snapshot().Alerts); n != 0 {
		t.Errorf("alerts after clear = %d, want 0", n)
	}
	if !h.app.LoggedIn() {
		t.Error("session lost on success")
	}
}

func TestEveryListenerNotified(t *testing.T) {
	h := newHarness(t, testConfig(), true)
	var mu sync.Mutex
	var second []Notice
	changes := 0
	h.app.OnNotice(func(n Notice) {
		mu.Lock()
		second = append(second, n)
		mu.Unlock()
	})
	h.app.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	h.app.SubmitAlert(context.Background(), "", decimal.NewFromInt(1))
	h.login(t)

	mu.Lock()
	defer mu.Unlock()
	if len(second) != 1 || !h.sawNotice("Could not add alert") {
		t.Errorf("notices = %+v, want the failure delivered to both listeners", second)
	}
	if changes == 0 {
		t.Error("change listener never ran")
	}
}
