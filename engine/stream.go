package engine

import "sync"

// Stream is the identity of a sub-stream (spec.md §3). A stream ends
// when a buffer with IsEndFlag=true bearing that stream id appears; no
// buffers of that stream may appear afterward. A depth-0 end-flag
// buffer signals the whole session ending.
type Stream struct {
	id      string
	session *Session

	mu    sync.Mutex
	ended bool
}

// NewStream creates a stream owned by session, identified by id.
// Callers typically obtain id from util.NewID.
func NewStream(session *Session, id string) *Stream {
	s := &Stream{id: id, session: session}
	session.addStream(s)
	return s
}

func (s *Stream) ID() string         { return s.id }
func (s *Stream) Session() *Session  { return s.session }

// MarkEnded records that this stream's terminator has been observed.
// Returns false if it was already ended (callers use this to detect
// "buffer arrived after the stream's end-flag", an INVALID_STATE
// condition per spec.md §7).
func (s *Stream) MarkEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	return true
}

// Ended reports whether this stream's terminator has been observed.
func (s *Stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
