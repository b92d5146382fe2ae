// ABOUTME: Playback session state for one admitted play request
// ABOUTME: Tracks identity, format, state and the terminal error
package sound

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
)

// State is the lifecycle state of a session
type State string

const (
	StateQueued   State = "queued" // admitted, waiting for a line
	StatePlaying  State = "playing"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Session is one in-flight playback
type Session struct {
	ID         string
	Resource   string
	Format     audio.Format
	BufferSize int
	Admitted   time.Time

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

// SessionInfo is a point-in-time copy of a session
type SessionInfo struct {
	ID         string
	Resource   string
	Format     audio.Format
	BufferSize int
	Admitted   time.Time
	State      State
}

func newSession(id, resource string, format audio.Format, bufferSize int) *Session {
	return &Session{
		ID:         id,
		Resource:   resource,
		Format:     format,
		BufferSize: bufferSize,
		Admitted:   time.Now(),
		state:      StateQueued,
		done:       make(chan struct{}),
	}
}

// Done is closed when playback has finished or failed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that ended the session, nil on success or while running
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session ends and returns Err
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID,
		Resource:   s.Resource,
		Format:     s.Format,
		BufferSize: s.BufferSize,
		Admitted:   s.Admitted,
		State:      s.state,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// finish records the outcome and releases waiters
func (s *Session) finish(err error) {
	s.mu.Lock()
	s.err = err
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateFinished
	}
	s.mu.Unlock()
	close(s.done)
}
