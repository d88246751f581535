package session

import (
	"context"
	"sync"

	"github.com/castlemilk/pointsledger/internal/model"
)

// entry is one user's session slot. s and err are set once ready is
// closed; the opener is the only writer.
type entry struct {
	userID string
	refs   int
	ready  chan struct{}
	s      *Session
	err    error
}

// session returns the opened session, or nil while it is still opening.
func (e *entry) session() *Session {
	select {
	case <-e.ready:
		return e.s
	default:
		return nil
	}
}

// Registry keeps at most one session per user, so every operation for a
// user runs on the same serialized actor. Sessions held through Acquire are
// subscribed to the store; a session only used through With is not, and is
// closed when its last operation finishes.
type Registry struct {
	deps Deps
	ctx  context.Context

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry. Subscriptions of live sessions are bound
// to ctx.
func NewRegistry(ctx context.Context, deps Deps) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		ctx:      ctx,
		sessions: make(map[string]*entry),
	}
}

// Deps returns the collaborators sessions are opened with.
func (r *Registry) Deps() Deps {
	return r.deps
}

// retain returns the user's entry with one more reference, opening the
// session if no open one is registered. Concurrent callers for the same
// user wait for a single Open.
func (r *Registry) retain(ctx context.Context, userID, email string) (*entry, error) {
	for {
		r.mu.Lock()
		e, ok := r.sessions[userID]
		if !ok {
			e = &entry{userID: userID, refs: 1, ready: make(chan struct{})}
			r.sessions[userID] = e
			r.mu.Unlock()

			e.s, e.err = Open(ctx, r.deps, userID, email)
			if e.err != nil {
				r.mu.Lock()
				if r.sessions[userID] == e {
					delete(r.sessions, userID)
				}
				r.mu.Unlock()
			}
			close(e.ready)
			if e.err != nil {
				return nil, e.err
			}
			return e, nil
		}
		e.refs++
		r.mu.Unlock()

		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		if !e.s.Closed() {
			return e, nil
		}

		// Closed underneath us: unregister it and open a fresh one.
		r.mu.Lock()
		if r.sessions[userID] == e {
			delete(r.sessions, userID)
		}
		r.mu.Unlock()
		r.release(e)
	}
}

// release drops one reference to e. The session is closed with its last
// reference; an entry already replaced in the registry is never touched
// beyond its own session.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	if r.sessions[e.userID] == e {
		delete(r.sessions, e.userID)
	}
	r.mu.Unlock()

	if s := e.session(); s != nil {
		s.Close()
	}
}

// Acquire returns the user's session, started so it follows store
// snapshots. Every Acquire must be paired with a Release of the returned
// session.
func (r *Registry) Acquire(ctx context.Context, userID, email string) (*Session, error) {
	if userID == "" {
		return nil, model.NoActiveSession()
	}

	e, err := r.retain(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if err := e.s.Start(r.ctx); err != nil {
		r.release(e)
		return nil, err
	}
	return e.s, nil
}

// Release drops one reference to s. It is a no-op when s is no longer the
// user's registered session, for instance after End.
func (r *Registry) Release(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	e, ok := r.sessions[s.UserID()]
	if !ok || e.session() != s {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.release(e)
}

// End closes the user's session regardless of outstanding references.
// It reports whether a session was open.
func (r *Registry) End(userID string) bool {
	r.mu.Lock()
	e, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s := e.session()
	if s == nil {
		// Still opening; its holders close it on release.
		return true
	}
	s.Close()
	return true
}

// Get returns the open session for userID, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	s := e.session()
	if s == nil || s.Closed() {
		return nil, false
	}
	return s, true
}

// With runs fn on the user's session, opening one for the duration of the
// call when none is registered. Calls for the same user share the session,
// so their mutations are serialized.
func (r *Registry) With(ctx context.Context, userID, email string, fn func(*Session) error) error {
	if userID == "" {
		return model.NoActiveSession()
	}

	e, err := r.retain(ctx, userID, email)
	if err != nil {
		return err
	}
	defer r.release(e)
	return fn(e.s)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every registered session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		if s := e.session(); s != nil {
			s.Close()
		}
	}
}
