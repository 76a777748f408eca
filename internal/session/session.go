// Package session holds per-conversation state: the active mode, the
// selected transcription language, the last classification scores and a
// reference to the last produced artifact for follow-up button actions.
package session

import (
	"sync"
	"time"

	"main/internal/provider"
)

// Mode tells which kind of content the conversation is waiting for.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingImage
	ModeAwaitingAudio
	ModeAwaitingText
)

func (m Mode) String() string {
	switch m {
	case ModeAwaitingImage:
		return "awaiting_image"
	case ModeAwaitingAudio:
		return "awaiting_audio"
	case ModeAwaitingText:
		return "awaiting_text"
	default:
		return "idle"
	}
}

// Session is the mutable state of one conversation. Callers mutate it only
// inside Store.Update, which holds the per-conversation lock.
type Session struct {
	ChatID           int64
	Mode             Mode
	SelectedLanguage string
	LastScores       []provider.LabelScore
	PendingArtifact  string
	LastSeen         time.Time
}

// Store keeps sessions keyed by conversation id. Different conversations are
// independent; mutation of one session is exclusive per key.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*entry

	defaultLanguage string
	now             func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

func NewStore(defaultLanguage string) *Store {
	return &Store{
		sessions:        make(map[int64]*entry),
		defaultLanguage: defaultLanguage,
		now:             time.Now,
	}
}

func (s *Store) get(chatID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[chatID]
	if !ok {
		e = &entry{session: &Session{
			ChatID:           chatID,
			Mode:             ModeIdle,
			SelectedLanguage: s.defaultLanguage,
			LastSeen:         s.now(),
		}}
		s.sessions[chatID] = e
	}
	return e
}

// Update runs fn with exclusive access to the conversation's session,
// creating it on first interaction.
func (s *Store) Update(chatID int64, fn func(*Session)) {
	e := s.get(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastSeen = s.now()
	fn(e.session)
}

// Snapshot returns a copy of the conversation's session for read-only use.
func (s *Store) Snapshot(chatID int64) Session {
	e := s.get(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.session
}

// EvictIdle removes sessions not seen for maxAge and returns how many were
// dropped. The source system never evicted; long deployments need this.
func (s *Store) EvictIdle(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		stale := e.session.LastSeen.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
