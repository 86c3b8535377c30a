// Package session holds the single live credential and is the only place
// that ends a session. Every login and logout bumps a generation number; a
// Session value captured before a request identifies which session the
// response belongs to.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrNoSession is returned when an operation needs a live credential.
	ErrNoSession = errors.New("session: not logged in")
	// ErrNoCredential rejects an empty login token.
	ErrNoCredential = errors.New("session: empty credential")
)

// Session is a snapshot of the live credential.
type Session struct {
	Token string
	Gen   uint64
}

// Valid reports whether the snapshot carries a credential.
func (s Session) Valid() bool { return s.Token != "" }

// Hook runs after a login or logout has been committed.
type Hook func(ctx context.Context, s Session)

// Store holds at most one credential.
type Store struct {
	mu    sync.Mutex
	cur   Session
	gen   uint64
	log   *slog.Logger
	hooks struct {
		login  []Hook
		logout []Hook
	}
	// serializes hook execution so a logout cascade never interleaves with
	// a login cascade
	hookMu sync.Mutex
}

// NewStore returns an empty Store.
func NewStore(log *slog.Logger) *Store {
	return &Store{log: log}
}

// OnLogin registers fn to run after every successful Login.
func (s *Store) OnLogin(fn Hook) {
	s.mu.Lock()
	s.hooks.login = append(s.hooks.login, fn)
	s.mu.Unlock()
}

// OnLogout registers fn to run after every logout, explicit or forced.
func (s *Store) OnLogout(fn Hook) {
	s.mu.Lock()
	s.hooks.logout = append(s.hooks.logout, fn)
	s.mu.Unlock()
}

// Login installs token as the live credential, ending any existing session
// first, and runs the login hooks once.
func (s *Store) Login(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoCredential
	}
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	if old, ended := s.end(); ended {
		s.runLogout(ctx, old)
	}

	s.mu.Lock()
	s.gen++
	s.cur = Session{Token: token, Gen: s.gen}
	sess := s.cur
	hooks := append([]Hook(nil), s.hooks.login...)
	s.mu.Unlock()

	s.log.Info("session started", "gen", sess.Gen)
	for _, h := range hooks {
		h(ctx, sess)
	}
	return sess, nil
}

// Logout ends the live session. It is a no-op when nobody is logged in.
func (s *Store) Logout(ctx context.Context) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if old, ended := s.end(); ended {
		s.log.Info("session ended", "gen", old.Gen)
		s.runLogout(ctx, old)
	}
}

// ObserveUnauthorized ends sess if it is still the live session. Callers
// holding a stale snapshot do nothing, so any number of concurrent
// authorization failures from one session produce one logout.
func (s *Store) ObserveUnauthorized(ctx context.Context, sess Session) bool {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.mu.Lock()
	live := s.cur.Valid() && s.cur.Gen == sess.Gen
	s.mu.Unlock()
	if !live {
		return false
	}
	old, ended := s.end()
	if !ended {
		return false
	}
	s.log.Warn("session revoked after authorization failure", "gen", old.Gen)
	s.runLogout(ctx, old)
	return true
}

// Current returns the live session, which may be invalid.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Require returns the live session or ErrNoSession.
func (s *Store) Require() (Session, error) {
	cur := s.Current()
	if !cur.Valid() {
		return Session{}, ErrNoSession
	}
	return cur, nil
}

// IsCurrent reports whether sess is still the live session.
func (s *Store) IsCurrent(sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.Valid() && s.cur.Gen == sess.Gen && s.cur.Valid()
}

// Valid reports whether a credential is present.
func (s *Store) Valid() bool {
	return s.Current().Valid()
}

// end clears the credential and bumps the generation.
func (s *Store) end() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cur.Valid() {
		return Session{}, false
	}
	old := s.cur
	s.gen++
	s.cur = Session{Gen: s.gen}
	return old, true
}

func (s *Store) runLogout(ctx context.Context, old Session) {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks.logout...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(ctx, old)
	}
}
