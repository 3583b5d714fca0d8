package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"library-client/metrics"
)

// Persisted keys. Clear removes all of them.
const (
	keyToken   = "token"
	keyProfile = "profile"
)

var sessionKeys = []string{keyToken, keyProfile}

// Session is the single owner of the signed-in state: the bearer token and
// the profile derived from it. It is the only mutable state shared by the
// clients and workflows, and is passed to them explicitly.
type Session struct {
	store Store
	log   zerolog.Logger

	mu       sync.RWMutex
	token    string
	profile  *Profile
	borrowed int
	// gen changes on every Establish and Clear so a late restore from Borrow
	// cannot resurrect a token that was replaced or cleared meanwhile.
	gen uint64
}

func NewSession(store Store, log zerolog.Logger) *Session {
	return &Session{store: store, log: log}
}

// Hydrate restores a persisted session. The session stays signed out unless
// both the token and the profile are present and the profile parses; a
// half-written or corrupt state is wiped.
func (s *Session) Hydrate(ctx context.Context) error {
	token, okToken, err := s.store.Get(ctx, keyToken)
	if err != nil {
		return s.discard(ctx, fmt.Errorf("read persisted token: %w", err))
	}
	raw, okProfile, err := s.store.Get(ctx, keyProfile)
	if err != nil {
		return s.discard(ctx, fmt.Errorf("read persisted profile: %w", err))
	}
	if !okToken && !okProfile {
		return nil
	}

	var p Profile
	if !okToken || !okProfile || token == "" || json.Unmarshal([]byte(raw), &p) != nil {
		s.log.Warn().Msg("discarding incomplete persisted session")
		return s.store.Clear(ctx)
	}

	s.mu.Lock()
	s.token = token
	s.profile = &p
	s.gen++
	s.mu.Unlock()
	return nil
}

// discard reports err and wipes what is stored when the store itself still
// answers. Values sealed under another key land here.
func (s *Session) discard(ctx context.Context, err error) error {
	if errUnsealed(err) {
		s.log.Warn().Msg("persisted session sealed with a different key, signing out")
		return s.store.Clear(ctx)
	}
	return err
}

// Establish persists token and profile, then makes them current.
func (s *Session) Establish(ctx context.Context, token string, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.store.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.store.Set(ctx, keyProfile, string(raw)); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.profile = &p
	s.gen++
	s.mu.Unlock()
	return nil
}

// Clear signs out: memory first, then every persisted key. No revocation
// call is made; the token stays valid server-side until it expires.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.gen++
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

// Token returns the bearer token for the next resource-service call.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Profile returns the signed-in profile.
func (s *Session) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.token != ""
}

// Role of the signed-in profile, RoleUser when signed out.
func (s *Session) Role() Role {
	if p, ok := s.Profile(); ok {
		return p.Role
	}
	return RoleUser
}

// Borrow makes token the current bearer token in memory only, until the
// returned restore func puts the previous token back. The persisted token is
// never touched, so a crash mid-borrow leaves the operator's session intact.
func (s *Session) Borrow(token string) (restore func()) {
	s.mu.Lock()
	prev, gen := s.token, s.gen
	s.token = token
	s.borrowed++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.borrowed--
			if s.gen == gen {
				s.token = prev
			}
		})
	}
}

// Rejected is called when the resource service answers 401. The session is
// torn down unless the rejected token was a borrowed one.
func (s *Session) Rejected(ctx context.Context) {
	s.mu.RLock()
	borrowed := s.borrowed > 0
	s.mu.RUnlock()
	if borrowed {
		s.log.Warn().Msg("borrowed token rejected, keeping current session")
		return
	}

	metrics.SessionTeardownsTotal.Inc()
	s.log.Info().Msg("token rejected, signing out")
	if err := s.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("clear session after rejection")
	}
}

// require fails with ErrNotAuthenticated when nobody is signed in.
func (s *Session) require() error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}
