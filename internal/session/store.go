// Package session caches appliance login credentials per instance URL.
//
// The store is in-memory only. Credential lifetime is bounded by the
// validity the appliance reports, minus a safety buffer so a credential is
// never used right as it expires mid-flight.
package session

import (
	"sync"
	"time"

	"pifleet.dev/pifleet/internal/clock"
)

const (
	// ExpiryBuffer is subtracted from the reported validity window. A
	// credential within the buffer of its expiry is treated as already
	// expired.
	ExpiryBuffer = 30 * time.Second

	// DefaultValiditySeconds is assumed when the appliance omits or zeroes
	// the validity field. Matches Pi-hole's default session lifetime.
	DefaultValiditySeconds = 300
)

// Credential is a session identifier and CSRF token pair issued by an
// instance's login endpoint. Both are opaque strings.
type Credential struct {
	SID  string
	CSRF string
}

type cachedSession struct {
	cred      Credential
	expiresAt time.Time
}

// Store maps instance URLs to cached credentials. Safe for concurrent use.
// Reads and writes never block on I/O; concurrent operations on different
// instances never contend beyond the map lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]cachedSession
	clk      clock.Clock
}

// NewStore creates an empty session store using the given clock.
// Pass nil to use the real system clock.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Store{
		sessions: make(map[string]cachedSession),
		clk:      clk,
	}
}

// GetValid returns the cached credential for key if one exists and is not
// within ExpiryBuffer of its expiry.
func (s *Store) GetValid(key string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[key]
	if !ok {
		return Credential{}, false
	}
	if !s.clk.Now().Before(entry.expiresAt.Add(-ExpiryBuffer)) {
		return Credential{}, false
	}
	return entry.cred, true
}

// Put stores a credential for key with the given validity in seconds.
// A validity of zero or less falls back to DefaultValiditySeconds.
// Overwrites any existing entry; when two refreshes race, both credentials
// are fresh, so last writer wins is fine.
func (s *Store) Put(key string, cred Credential, validitySeconds int) {
	if validitySeconds <= 0 {
		validitySeconds = DefaultValiditySeconds
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = cachedSession{
		cred:      cred,
		expiresAt: s.clk.Now().Add(time.Duration(validitySeconds) * time.Second),
	}
}

// Invalidate removes any cached credential for key.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Len returns the number of cached sessions. Used by health reporting.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
