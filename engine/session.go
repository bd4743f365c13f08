package engine

import (
	"sync"
	"sync/atomic"
	"weak"
)

// SessionContext carries the caller-visible identity and statistics of
// a Session (spec.md §3).
type SessionContext struct {
	id string

	mu    sync.Mutex
	stats map[string]int64
}

// NewSessionContext builds a context identified by id.
func NewSessionContext(id string) *SessionContext {
	return &SessionContext{id: id, stats: map[string]int64{}}
}

// SessionID returns the session's unique id.
func (c *SessionContext) SessionID() string { return c.id }

// IncStat adds delta to the named statistic and returns its new value.
func (c *SessionContext) IncStat(name string, delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[name] += delta
	return c.stats[name]
}

// Stat reads the named statistic.
func (c *SessionContext) Stat(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[name]
}

// Session is a per-caller context (spec.md §3). It is created by
// SessionManager.CreateSession; Close() is graceful, Abort() is
// immediate. SessionManager holds only a weak reference, so its entry
// expires once nothing else references the Session.
type Session struct {
	ctx *SessionContext

	ioRef atomic.Pointer[weak.Pointer[SessionIOHandle]]

	closed  atomic.Bool
	abort   atomic.Bool
	endOnce atomic.Bool

	mu        sync.Mutex
	lastError error
	streams   []*Stream
}

// NewSession builds a Session with a fresh SessionContext identified
// by id.
func NewSession(id string) *Session {
	return &Session{ctx: NewSessionContext(id)}
}

// SessionCtx returns this session's SessionContext.
func (s *Session) SessionCtx() *SessionContext { return s.ctx }

// SetSessionIO installs a weak reference to handle. The caller retains
// handle itself; once it drops every strong reference to handle, the
// next GetSessionIO() observes nil.
func (s *Session) SetSessionIO(handle *SessionIOHandle) {
	w := weak.Make(handle)
	s.ioRef.Store(&w)
}

// GetSessionIO resolves the weak reference, returning nil if the
// caller has released its handle.
func (s *Session) GetSessionIO() SessionIO {
	p := s.ioRef.Load()
	if p == nil {
		return nil
	}
	handle := p.Value()
	if handle == nil {
		return nil
	}
	return handle.IO
}

func (s *Session) addStream(st *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, st)
}

// AllStreamsEnded reports whether every stream this session owns has
// observed its terminator.
func (s *Session) AllStreamsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return false
	}
	for _, st := range s.streams {
		if !st.Ended() {
			return false
		}
	}
	return true
}

// Close records a request for a graceful end (see IsClosed). It does
// not stop delivery or release the session itself: outstanding
// match-stream-data keeps flowing. Calling Close() twice is equivalent
// to calling it once (spec.md §8 idempotence).
func (s *Session) Close() {
	s.closed.Store(true)
}

// IsClosed reports whether Close() has been called.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// Abort stops delivering outputs immediately; buffers in flight
// continue to be consumed (to drain queues) but are not surfaced.
// Abort after Close only flips observable delivery off, it never
// un-closes the session (spec.md §8).
func (s *Session) Abort() {
	s.abort.Store(true)
}

// IsAbort reports whether Abort() has been called.
func (s *Session) IsAbort() bool { return s.abort.Load() }

// SetError records the session's last error.
func (s *Session) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// GetError returns the session's last recorded error.
func (s *Session) GetError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// End notifies the caller's SessionIO (if still live) that the
// session is over, guaranteeing at most one SessionEnd delivery
// (spec.md §8) via endOnce.
func (s *Session) End(err error) {
	if !s.endOnce.CompareAndSwap(false, true) {
		return
	}
	if io := s.GetSessionIO(); io != nil {
		io.sessionEnd(err)
	}
}
