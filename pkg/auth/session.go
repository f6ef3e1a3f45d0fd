package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookie is the cookie carrying the server session id.
const SessionCookie = "ordermind_session"

const sessionTTL = 12 * time.Hour

type session struct {
	token     string
	expiresAt time.Time
}

// SessionStore maps server session ids to ERP bearer tokens. Sessions live in
// memory; an expired ERP token simply fails downstream and the user logs in
// again.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session)}
}

// Create registers a new session holding the given ERP token and returns its id.
func (s *SessionStore) Create(token string) string {
	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session{token: token, expiresAt: time.Now().Add(sessionTTL)}
	return id
}

// Token returns the ERP token for a session id, or "" if unknown or expired.
func (s *SessionStore) Token(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ""
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return ""
	}
	return sess.token
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
