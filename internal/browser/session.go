package browser

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
)

// Level classifies a flash message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Message is a one-shot notice shown on the next page render.
type Message struct {
	Level Level
	Text  string
}

// Session is the transient state of one browser. Actions on a session run
// under its lock, one at a time.
type Session struct {
	ID string

	mu       sync.Mutex
	entries  []models.Entry
	flash    []Message
	lastSeen time.Time
}

// Lock serializes actions on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Entries returns the cached listing. The caller must hold the lock.
func (s *Session) Entries() []models.Entry {
	return s.entries
}

// setEntries replaces the cached listing wholesale.
func (s *Session) setEntries(entries []models.Entry) {
	s.entries = entries
}

// AddFlash queues a message for the next render. The caller must hold the lock.
func (s *Session) AddFlash(level Level, text string) {
	s.flash = append(s.flash, Message{Level: level, Text: text})
}

// TakeFlash returns and clears queued messages. The caller must hold the lock.
func (s *Session) TakeFlash() []Message {
	msgs := s.flash
	s.flash = nil
	return msgs
}

// SessionStore holds the live sessions of this process.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, creating a fresh one with a new ID when
// id is empty or unknown. The second result reports whether it was created.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok && id != "" {
		s.lastSeen = st.now()
		return s, false
	}

	s := &Session{ID: uuid.NewString(), lastSeen: st.now()}
	st.sessions[s.ID] = s
	metrics.SetSessionsActive(len(st.sessions))
	return s, true
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (st *SessionStore) Sweep(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-maxIdle)
	removed := 0
	for id, s := range st.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	metrics.SetSessionsActive(len(st.sessions))
	return removed
}
