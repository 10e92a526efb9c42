package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"persona_ad_studio/persona"
)

var (
	errSessionNotFound = errors.New("session not found")
	errPersonaNotFound = errors.New("persona not found")
)

// visitorSession is one visitor's working persona set.
type visitorSession struct {
	ID        string            `json:"sessionId"`
	Personas  []persona.Persona `json:"personas"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (v visitorSession) clone() visitorSession {
	out := v
	out.Personas = append([]persona.Persona(nil), v.Personas...)
	return out
}

// sessionStore keeps visitor sessions until they sit idle for the TTL.
// Callers only ever see copies.
type sessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func newStore(ttl time.Duration) *sessionStore {
	return &sessionStore{cache: cache.New(ttl, ttl/2)}
}

func (s *sessionStore) create(seed []persona.Persona) visitorSession {
	sess := visitorSession{
		ID:        uuid.NewString(),
		Personas:  append([]persona.Persona(nil), seed...),
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.SetDefault(sess.ID, sess)
	return sess.clone()
}

// get returns the session and refreshes its expiry.
func (s *sessionStore) get(id string) (visitorSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return visitorSession{}, false
	}
	sess := v.(visitorSession)
	s.cache.SetDefault(id, sess)
	return sess.clone(), true
}

// updateBio is the only mutation a session supports.
func (s *sessionStore) updateBio(id, personaID, bio string) (visitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return visitorSession{}, errSessionNotFound
	}
	sess := v.(visitorSession).clone()
	found := false
	for i := range sess.Personas {
		if sess.Personas[i].ID == personaID {
			sess.Personas[i].Bio = bio
			found = true
			break
		}
	}
	if !found {
		return visitorSession{}, errPersonaNotFound
	}
	s.cache.SetDefault(id, sess)
	return sess.clone(), nil
}
