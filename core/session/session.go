// Package session holds the identity of the currently authenticated actor. Sessions live
// in process memory only; they are never written to durable storage.
package session

import (
	"sync"
	"time"
)

// Session is the normalized shape produced by both login paths.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"identifier"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	DisplayName string    `json:"displayName"`
	LoginTime   time.Time `json:"loginTime"`
	AccessToken string    `json:"-"` // remote mode only
}

// Identifier returns the identifier of the authenticated User Record.
func (s Session) Identifier() string { return s.UserID }

func (s Session) IsZero() bool { return s.ID == "" && s.UserID == "" }

// Store holds at most one Session.
type Store interface {
	// Current never blocks on I/O.
	Current() (Session, bool)
	Save(sess Session)
	Clear()
}

type memoryStore struct {
	sync.RWMutex
	sess *Session
}

var _ Store = (*memoryStore)(nil) // interface compliance check

func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Current() (Session, bool) {
	s.RLock()
	defer s.RUnlock()
	if s.sess == nil {
		return Session{}, false
	}
	return *s.sess, true
}

func (s *memoryStore) Save(sess Session) {
	s.Lock()
	defer s.Unlock()
	s.sess = &sess
}

func (s *memoryStore) Clear() {
	s.Lock()
	defer s.Unlock()
	s.sess = nil
}
