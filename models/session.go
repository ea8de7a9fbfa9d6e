package models

import (
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTimeout is how long a test session survives without
	// a heartbeat before another user can take over.
	DefaultSessionTimeout = time.Second * 300

	// ErrTypeSessionBusy is returned when another user holds the
	// session.
	ErrTypeSessionBusy = "session_busy"

	// ErrTypeSessionInvalid is returned when a heartbeat or release
	// carries a stale token or an unknown owner.
	ErrTypeSessionInvalid = "session_invalid"
)

// SessionInfo describes the current holder of the exclusive session.
type SessionInfo struct {
	Owner     string    `json:"owner"`
	Token     string    `json:"token,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Timeout   float64   `json:"timeout_seconds"`
}

// SessionStore hands out the single exclusive test session. Stability
// runs measure rendering under controlled load, so only one user may
// drive the stimulus endpoints at a time. A holder that stops
// heartbeating loses the session after the timeout, lazily, on the
// next acquire or validation.
type SessionStore struct {
	// Timeout overrides DefaultSessionTimeout when positive.
	Timeout time.Duration

	// Now is the clock, replaceable in tests.
	Now func() time.Time

	mutex         sync.Mutex
	owner         string
	token         string
	startedAt     time.Time
	lastHeartbeat time.Time
}

func (s *SessionStore) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultSessionTimeout
}

func (s *SessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// expireLocked clears the session when the holder missed its
// heartbeat window. Callers must hold the mutex.
func (s *SessionStore) expireLocked() {
	if s.owner == "" {
		return
	}
	if s.now().Sub(s.lastHeartbeat) <= s.timeout() {
		return
	}

	s.owner = ""
	s.token = ""
	instrumentSessionExpired()
	instrumentSessionGauge(0)
}

// Acquire hands the session to the user, or returns ErrTypeSessionBusy
// with the current holder's info attached when someone else has it.
// Re-acquiring by the current holder rotates the token.
func (s *SessionStore) Acquire(owner string) (SessionInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.expireLocked()

	if s.owner != "" && !strings.EqualFold(s.owner, owner) {
		return SessionInfo{}, errors.New("session is held by another user").
			WithType(ErrTypeSessionBusy).
			WithTag("owner", s.owner).
			WithTag("started_at", s.startedAt).
			WithTag("timeout_seconds", s.timeout().Seconds())
	}

	now := s.now()
	s.owner = owner
	s.token = uuid.New().String()
	s.startedAt = now
	s.lastHeartbeat = now

	instrumentSessionAcquired()
	instrumentSessionGauge(1)

	return SessionInfo{
		Owner:     s.owner,
		Token:     s.token,
		StartedAt: s.startedAt,
		Timeout:   s.timeout().Seconds(),
	}, nil
}

// Heartbeat extends the holder's lease.
func (s *SessionStore) Heartbeat(owner, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.expireLocked()

	if err := s.validateLocked(owner, token); err != nil {
		return err
	}

	s.lastHeartbeat = s.now()
	return nil
}

// Release gives the session up. Releasing an already expired or
// foreign session fails with ErrTypeSessionInvalid.
func (s *SessionStore) Release(owner, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.expireLocked()

	if err := s.validateLocked(owner, token); err != nil {
		return err
	}

	s.owner = ""
	s.token = ""
	instrumentSessionGauge(0)
	return nil
}

// ValidateOwner checks that the user holds the session with the given
// token. Stimulus and upload endpoints call this before doing any
// work.
func (s *SessionStore) ValidateOwner(owner, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.expireLocked()
	return s.validateLocked(owner, token)
}

func (s *SessionStore) validateLocked(owner, token string) error {
	if s.owner == "" {
		return errors.New("no session is active").
			WithType(ErrTypeSessionInvalid)
	}
	if !strings.EqualFold(s.owner, owner) || s.token != token {
		return errors.New("session does not belong to this user").
			WithType(ErrTypeSessionInvalid).
			WithTag("owner", owner)
	}
	return nil
}

// Holder reports the current session holder, if any.
func (s *SessionStore) Holder() (SessionInfo, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.expireLocked()

	if s.owner == "" {
		return SessionInfo{}, false
	}
	return SessionInfo{
		Owner:     s.owner,
		StartedAt: s.startedAt,
		Timeout:   s.timeout().Seconds(),
	}, true
}
