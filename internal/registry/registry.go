package registry

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/example/fleet-tracking/internal/models"
)

// Envelope is the wire frame for every outbound real-time event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Sender delivers one event to one live connection.
type Sender interface {
	Send(event string, data any) error
	Close() error
}

// Session ties one live transport session to exactly one actor.
type Session struct {
	ID     string
	Actor  models.Actor
	sender Sender
	seq    uint64 // registration order, for most-recent-wins lookups
}

func (s *Session) Send(event string, data any) error { return s.sender.Send(event, data) }

func (s *Session) Close() error { return s.sender.Close() }

// Registry is the authoritative set of live connections. Duplicate
// logins for one actor id coexist as separate sessions; targeted
// lookups resolve to the most recently registered one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextSeq  uint64
}

func New() *Registry { return &Registry{sessions: make(map[string]*Session)} }

// Register adds a session for an authenticated actor and returns it.
func (r *Registry) Register(actor models.Actor, sender Sender) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	s := &Session{ID: newID(), Actor: actor, sender: sender, seq: r.nextSeq}
	r.sessions[s.ID] = s
	return s
}

// Unregister removes a session by connection id. Returns the removed
// session, or nil if it was already gone.
func (r *Registry) Unregister(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	return s
}

// Snapshot returns one presence entry per live connection.
func (r *Registry) Snapshot() []models.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Presence, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, models.Presence{ID: s.Actor.ID, Username: s.Actor.Username, Role: s.Actor.Role})
	}
	return out
}

// ForEach applies fn to every live session whose actor matches pred.
// The session set is captured once, so a session dropping mid-iteration
// still receives this round's event. fn must not call back into the
// registry's write operations.
func (r *Registry) ForEach(pred func(models.Actor) bool, fn func(*Session)) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if pred == nil || pred(s.Actor) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()
	for _, s := range targets {
		fn(s)
	}
}

// SessionFor finds the live session for an actor id. With duplicate
// logins the most recently registered session wins.
func (r *Registry) SessionFor(actorID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Session
	for _, s := range r.sessions {
		if s.Actor.ID != actorID {
			continue
		}
		if best == nil || s.seq > best.seq {
			best = s
		}
	}
	return best, best != nil
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
