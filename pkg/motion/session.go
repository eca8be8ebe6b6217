package motion

import "go.uber.org/atomic"

// Session carries the stop flag for one controlling session. The flag moves
// from false to true exactly once and is never cleared.
type Session struct {
	stopped atomic.Bool
}

// NewSession returns a session that has not been stopped.
func NewSession() *Session {
	return &Session{}
}

// RequestStop sets the stop flag. It reports whether this call was the one
// that set it.
func (s *Session) RequestStop() bool {
	return s.stopped.CompareAndSwap(false, true)
}

// Stopped reports whether a stop has been requested.
func (s *Session) Stopped() bool {
	return s.stopped.Load()
}
