package relay

import "github.com/samber/oops"

// Registry maps session ids to live sessions. It is the source of truth for
// who is connected and for the deny quorum denominator.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register inserts s under its id. An id already present is rejected.
func (r *Registry) Register(s *Session) error {
	if _, exists := r.sessions[s.id]; exists {
		return oops.In("relay").With("session", s.id).Wrapf(ErrDuplicateSession, "register")
	}
	r.sessions[s.id] = s
	return nil
}

// Unregister removes and returns the session with the given id. A missing id
// is reported with ok == false; another termination path may have won.
func (r *Registry) Unregister(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// ForEach calls fn for every session except the one with id exclude (pass ""
// to visit all). Order is unspecified. fn works on a snapshot, so it may
// change the registry.
func (r *Registry) ForEach(exclude string, fn func(*Session)) {
	for _, s := range r.snapshot() {
		if s.id == exclude {
			continue
		}
		fn(s)
	}
}

// IDs returns every registered id except exclude.
func (r *Registry) IDs(exclude string) []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

// Size is the number of registered sessions.
func (r *Registry) Size() int {
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
