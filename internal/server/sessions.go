package server

import (
	"context"
	"sync"
	"time"

	"vocalroom/internal/session"
)

// clientSession ties a controller to one browser session. The first calendar
// read triggers the initial month fetch; a failed fetch is retried on the
// next request instead of poisoning the session.
type clientSession struct {
	ctrl *session.Controller

	loadMu sync.Mutex
	loaded bool

	mu       sync.Mutex
	lastSeen time.Time
}

func (cs *clientSession) ensureLoaded(ctx context.Context) error {
	cs.loadMu.Lock()
	defer cs.loadMu.Unlock()
	if cs.loaded {
		return nil
	}
	if err := cs.ctrl.LoadMonth(ctx); err != nil {
		return err
	}
	cs.loaded = true
	return nil
}

func (cs *clientSession) touch() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastSeen = time.Now()
}

func (cs *clientSession) expired(timeout time.Duration) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return time.Since(cs.lastSeen) > timeout
}

// SessionStore manages per-client controllers keyed by the X-Session-ID
// header value.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
	factory  func() *session.Controller
	timeout  time.Duration
}

// NewSessionStore creates a session store. factory builds a fresh controller
// for every new session id.
func NewSessionStore(factory func() *session.Controller, timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*clientSession),
		factory:  factory,
		timeout:  timeout,
	}
}

// GetOrCreate returns the session for id, creating it if absent or expired.
func (ss *SessionStore) GetOrCreate(id string) *clientSession {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	cs, ok := ss.sessions[id]
	if ok && !cs.expired(ss.timeout) {
		cs.touch()
		return cs
	}

	cs = &clientSession{ctrl: ss.factory(), lastSeen: time.Now()}
	ss.sessions[id] = cs
	return cs
}

// Cleanup removes expired sessions and returns how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, cs := range ss.sessions {
		if cs.expired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}

// Run cleans up expired sessions periodically until ctx is done.
func (ss *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ss.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
