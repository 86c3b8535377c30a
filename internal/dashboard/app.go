// Package dashboard is the process-wide context object of the client. It
// owns the displayed collections (alerts, holdings, indices, search panels)
// and wires the session store, poll scheduler, name resolver and mutation
// gateway together.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"marketwatch/internal/config"
	"marketwatch/internal/domain"
	"marketwatch/internal/mutation"
	"marketwatch/internal/names"
	"marketwatch/internal/poll"
	"marketwatch/internal/search"
	"marketwatch/internal/session"
	"marketwatch/internal/store"
	"marketwatch/pkg/marketwatch"
)

// API is the remote service as the dashboard uses it.
type API interface {
	mutation.API
	Login(ctx context.Context, username, password string) (string, error)
	GetAlerts(ctx context.Context, token string) ([]domain.Alert, error)
	GetIndices(ctx context.Context, token string) (domain.Indices, error)
	GetPortfolio(ctx context.Context, token string) ([]domain.Holding, error)
	SearchStock(ctx context.Context, token, query string) ([]domain.Suggestion, error)
	ClearAlerts(ctx context.Context, token string) error
	StockHistory(ctx context.Context, token, symbol string) ([]domain.PricePoint, error)
	MarketNews(ctx context.Context, token string) ([]domain.NewsItem, error)
	AnalyzeStock(ctx context.Context, token, symbol string) (string, error)
}

var _ API = (*marketwatch.Client)(nil)

// Options wires an App.
type Options struct {
	API    API
	KV     store.KV
	Config *config.Config
	Log    *slog.Logger
	// Clock drives search debouncing and the resolver delay. Nil means the
	// real clock.
	Clock clockwork.Clock
	// NameSource overrides the remote search as the resolver's source.
	NameSource names.Source
	// ManualPolling keeps login from starting the poll scheduler. One-shot
	// commands load what they need with Load instead.
	ManualPolling bool
}

// AlertForm is the pending new-alert input.
type AlertForm struct {
	Symbol string
	Target string
}

// Notice is a user-facing message.
type Notice struct {
	Level   slog.Level
	Message string
}

// App is the dashboard context object. Create it with New, call Boot once,
// then Login or Resume.
type App struct {
	api      API
	kv       store.KV
	cfg      *config.Config
	log      *slog.Logger
	ctx      context.Context
	sessions *session.Store
	poller   *poll.Scheduler
	cache    *names.Cache
	resolver *names.Resolver
	gateway  *mutation.Gateway
	autoPoll bool

	alertSearch     *search.Channel
	portfolioSearch *search.Channel

	mu        sync.RWMutex
	alerts    []domain.Alert
	holdings  []domain.Holding
	indices   *domain.Indices
	userEmail string
	theme     string
	failed    map[string]bool
	seq       map[string]uint64
	alertForm AlertForm
	tradeOpen bool

	listenMu sync.RWMutex
	onNotice []func(Notice)
	onChange []func()
}

// New builds an App. ctx bounds every background request the App makes.
func New(ctx context.Context, opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	a := &App{
		api:      opts.API,
		kv:       opts.KV,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		autoPoll: !opts.ManualPolling,
		theme:    ThemeDark,
		failed:   make(map[string]bool),
		seq:      make(map[string]uint64),
	}

	a.sessions = session.NewStore(log.With("component", "session"))
	a.cache = names.NewCache(opts.KV, log.With("component", "names"))

	source := opts.NameSource
	if source == nil {
		source = names.RemoteSource{Search: a.searchAuthenticated}
	}
	a.resolver = names.NewResolver(source, a.cache, clock, cfg.Enrichment.Delay, log.With("component", "resolver"))

	a.poller = poll.New(log.With("component", "poll"), []poll.Target{
		{Name: poll.TargetAlerts, Interval: cfg.Poll.AlertsInterval, Fetch: a.fetchAlerts},
		{Name: poll.TargetIndices, Interval: cfg.Poll.IndicesInterval, Fetch: a.fetchIndices},
		{Name: poll.TargetPortfolio, Interval: cfg.Poll.PortfolioInterval, Fetch: a.fetchPortfolio},
	})

	a.gateway = mutation.New(opts.API, a.sessions, a, a, log.With("component", "mutation"))

	searchOpts := func(name string) search.Options {
		return search.Options{
			Name:      name,
			Delay:     cfg.Search.Debounce,
			MinLength: cfg.Search.MinLength,
			Clock:     clock,
			Log:       log.With("component", "search"),
		}
	}
	a.alertSearch = search.New(ctx, a.searchAnonymous, searchOpts("alerts"))
	a.portfolioSearch = search.New(ctx, a.searchAuthenticated, searchOpts("portfolio"))
	a.alertSearch.OnChange(func(search.State) { a.changed() })
	a.portfolioSearch.OnChange(func(search.State) { a.changed() })

	a.sessions.OnLogin(a.onLogin)
	a.sessions.OnLogout(a.onLogout)
	return a
}

// Boot loads persisted state: the name cache and the theme preference.
func (a *App) Boot(ctx context.Context) error {
	if err := a.cache.Load(ctx); err != nil {
		return fmt.Errorf("loading name cache: %w", err)
	}
	theme, err := a.kv.Get(ctx, store.KeyTheme)
	switch {
	case err == nil:
		a.mu.Lock()
		a.theme = normalizeTheme(string(theme))
		a.mu.Unlock()
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("loading theme: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// Login authenticates and starts a session.
func (a *App) Login(ctx context.Context, username, password string) error {
	token, err := a.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	_, err = a.sessions.Login(ctx, token)
	return err
}

// LoginWithToken starts a session from an existing credential.
func (a *App) LoginWithToken(ctx context.Context, token string) error {
	_, err := a.sessions.Login(ctx, token)
	return err
}

// Resume starts a session from the persisted credential. It reports whether
// one was found.
func (a *App) Resume(ctx context.Context) (bool, error) {
	tok, err := a.kv.Get(ctx, store.KeyToken)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := a.sessions.Login(ctx, string(tok)); err != nil {
		return false, err
	}
	return true, nil
}

// Logout ends the session and clears all derived state.
func (a *App) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
}

// LoggedIn reports whether a credential is present.
func (a *App) LoggedIn() bool { return a.sessions.Valid() }

// Sessions exposes the session store.
func (a *App) Sessions() *session.Store { return a.sessions }

// Poller exposes the poll scheduler.
func (a *App) Poller() *poll.Scheduler { return a.poller }

// Resolver exposes the name resolver.
func (a *App) Resolver() *names.Resolver { return a.resolver }

// Names exposes the name cache.
func (a *App) Names() *names.Cache { return a.cache }

// StartPolling begins background refresh for the live session.
func (a *App) StartPolling() error {
	if !a.sessions.Valid() {
		return session.ErrNoSession
	}
	return a.poller.Start(a.ctx)
}

func (a *App) onLogin(ctx context.Context, s session.Session) {
	if err := a.kv.Put(ctx, store.KeyToken, []byte(s.Token)); err != nil {
		a.log.Warn("persisting credential", "error", err)
	}
	if a.autoPoll {
		if err := a.poller.Start(a.ctx); err != nil {
			a.log.Error("starting poll scheduler", "error", err)
		}
	}
	a.changed()
}

func (a *App) onLogout(ctx context.Context, _ session.Session) {
	a.poller.Stop()
	a.alertSearch.Reset()
	a.portfolioSearch.Reset()
	a.resolver.Cancel()

	a.mu.Lock()
	a.alerts = nil
	a.holdings = nil
	a.indices = nil
	a.userEmail = ""
	a.failed = make(map[string]bool)
	a.alertForm = AlertForm{}
	a.tradeOpen = false
	a.mu.Unlock()

	if err := a.kv.Delete(ctx, store.KeyToken); err != nil {
		a.log.Warn("deleting persisted credential", "error", err)
	}
	a.changed()
}

// ---------------------------------------------------------------------------
// Listeners
// ---------------------------------------------------------------------------

// OnNotice registers fn for user-facing messages.
func (a *App) OnNotice(fn func(Notice)) {
	a.listenMu.Lock()
	a.onNotice = append(a.onNotice, fn)
	a.listenMu.Unlock()
}

// OnChange registers fn to run after any observable state changes.
func (a *App) OnChange(fn func()) {
	a.listenMu.Lock()
	a.onChange = append(a.onChange, fn)
	a.listenMu.Unlock()
}

func (a *App) notify(level slog.Level, format string, args ...any) {
	n := Notice{Level: level, Message: fmt.Sprintf(format, args...)}
	a.listenMu.RLock()
	fns := slices.Clone(a.onNotice)
	a.listenMu.RUnlock()
	for _, fn := range fns {
		fn(n)
	}
}

func (a *App) changed() {
	a.listenMu.RLock()
	fns := slices.Clone(a.onChange)
	a.listenMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

func normalizeTheme(s string) string {
	if s == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// SetTheme stores the theme preference.
func (a *App) SetTheme(ctx context.Context, theme string) error {
	theme = normalizeTheme(theme)
	if err := a.kv.Put(ctx, store.KeyTheme, []byte(theme)); err != nil {
		return err
	}
	a.mu.Lock()
	a.theme = theme
	a.mu.Unlock()
	a.changed()
	return nil
}

// ---------------------------------------------------------------------------
// Forms
// ---------------------------------------------------------------------------

// SearchAlerts feeds the alert form's symbol input.
func (a *App) SearchAlerts(text string) {
	a.mu.Lock()
	a.alertForm.Symbol = text
	a.mu.Unlock()
	a.alertSearch.OnInput(text)
}

// SelectAlertSuggestion adopts s into the alert form.
func (a *App) SelectAlertSuggestion(s domain.Suggestion) {
	a.mu.Lock()
	a.alertForm.Symbol = s.Symbol
	a.mu.Unlock()
	a.alertSearch.Select(s)
}

// SearchPortfolio feeds the trade form's symbol input.
func (a *App) SearchPortfolio(text string) {
	a.portfolioSearch.OnInput(text)
}

// SelectPortfolioSuggestion adopts s into the trade form.
func (a *App) SelectPortfolioSuggestion(s domain.Suggestion) {
	a.portfolioSearch.Select(s)
}

// AlertSearch and PortfolioSearch expose the query channels.
func (a *App) AlertSearch() *search.Channel     { return a.alertSearch }
func (a *App) PortfolioSearch() *search.Channel { return a.portfolioSearch }

// OpenTradeForm marks the trade form as open.
func (a *App) OpenTradeForm() {
	a.mu.Lock()
	a.tradeOpen = true
	a.mu.Unlock()
	a.changed()
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// SubmitAlert creates an alert. The form is cleared on success and kept on
// failure.
func (a *App) SubmitAlert(ctx context.Context, symbol string, target decimal.Decimal) error {
	a.mu.Lock()
	a.alertForm = AlertForm{Symbol: symbol, Target: target.String()}
	a.mu.Unlock()

	if err := a.gateway.AddAlert(ctx, symbol, target); err != nil {
		a.notify(slog.LevelError, "Could not add alert: %v", err)
		return err
	}
	a.mu.Lock()
	a.alertForm = AlertForm{}
	a.mu.Unlock()
	a.alertSearch.Reset()
	a.notify(slog.LevelInfo, "Alert set for %s", domain.CanonicalSymbol(symbol))
	return nil
}

// DeleteAlert removes an alert once the service confirms.
func (a *App) DeleteAlert(ctx context.Context, id string) error {
	if err := a.gateway.DeleteAlert(ctx, id); err != nil {
		a.notify(slog.LevelError, "Could not delete alert: %v", err)
		return err
	}
	a.notify(slog.LevelInfo, "Alert deleted")
	return nil
}

// RecordTransaction posts a trade and closes the trade form on success.
func (a *App) RecordTransaction(ctx context.Context, txn domain.Transaction) error {
	if err := a.gateway.RecordTransaction(ctx, txn); err != nil {
		a.notify(slog.LevelError, "Transaction failed: %v", err)
		return err
	}
	a.mu.Lock()
	a.tradeOpen = false
	a.mu.Unlock()
	a.portfolioSearch.Reset()
	a.notify(slog.LevelInfo, "Transaction recorded")
	return nil
}

// RemoveAlert drops id from the local collection if sess is still live.
func (a *App) RemoveAlert(sess session.Session, id string) bool {
	a.mu.Lock()
	if !a.sessions.IsCurrent(sess) {
		a.mu.Unlock()
		return false
	}
	kept := make([]domain.Alert, 0, len(a.alerts))
	for _, al := range a.alerts {
		if al.ID != id {
			kept = append(kept, al)
		}
	}
	removed := len(kept) != len(a.alerts)
	a.alerts = kept
	a.mu.Unlock()
	a.changed()
	return removed
}

// Trigger refreshes target in the background. With the poller running the
// fetch goes through its job; otherwise it runs on the caller's goroutine.
func (a *App) Trigger(target string) error {
	if a.poller.Running() {
		return a.poller.Trigger(target)
	}
	return a.Load(a.ctx, target)
}

// Load fetches target now as a foreground load.
func (a *App) Load(ctx context.Context, target string) error {
	switch target {
	case poll.TargetAlerts:
		return a.fetchAlerts(ctx, false)
	case poll.TargetIndices:
		return a.fetchIndices(ctx, false)
	case poll.TargetPortfolio:
		return a.fetchPortfolio(ctx, false)
	default:
		return poll.ErrUnknownTarget
	}
}

// LoadAll runs the foreground load of every target.
func (a *App) LoadAll(ctx context.Context) error {
	return errors.Join(
		a.Load(ctx, poll.TargetAlerts),
		a.Load(ctx, poll.TargetIndices),
		a.Load(ctx, poll.TargetPortfolio),
	)
}

// RefreshNames discards every cached name and resolves the portfolio again
// from scratch.
func (a *App) RefreshNames(ctx context.Context) error {
	if _, err := a.sessions.Require(); err != nil {
		return err
	}
	a.resolver.Cancel()
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing name cache: %w", err)
	}
	if err := a.fetchPortfolio(ctx, false); err != nil {
		return err
	}
	a.notify(slog.LevelInfo, "Refreshing names")
	return nil
}
