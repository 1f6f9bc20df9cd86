package generator

import (
	"fmt"
	"time"
)

// State is a step of a single generate request.
type State string

const (
	StateReceived         State = "received"
	StateAssetsLoaded     State = "assets_loaded"
	StateRequestAssembled State = "request_assembled"
	StateServiceCalled    State = "service_called"
	StateResolved         State = "resolved"
	StateFailed           State = "failed"
	StateResponded        State = "responded"
)

var nextStates = map[State][]State{
	StateReceived:         {StateAssetsLoaded, StateFailed},
	StateAssetsLoaded:     {StateRequestAssembled, StateFailed},
	StateRequestAssembled: {StateServiceCalled, StateFailed},
	StateServiceCalled:    {StateResolved, StateFailed},
	StateResolved:         {StateResponded, StateFailed},
	StateFailed:           {StateResponded},
}

// Transition records when a session entered a state.
type Transition struct {
	State State
	At    time.Time
}

// Session tracks one request through the generate pipeline. It is owned by a
// single request and is not safe for concurrent use.
type Session struct {
	ID      string
	Prompt  string
	State   State
	Err     error
	History []Transition
}

// NewSession starts a session in the received state.
func NewSession(id, prompt string) *Session {
	s := &Session{ID: id, Prompt: prompt, State: StateReceived}
	s.History = append(s.History, Transition{State: StateReceived, At: time.Now()})
	return s
}

// Advance moves the session to next. Moves that skip a step or leave a
// terminal state are rejected. A nil session accepts every move.
func (s *Session) Advance(next State) error {
	if s == nil {
		return nil
	}
	for _, allowed := range nextStates[s.State] {
		if allowed == next {
			s.State = next
			s.History = append(s.History, Transition{State: next, At: time.Now()})
			return nil
		}
	}
	return fmt.Errorf("session %s: invalid transition %s -> %s", s.ID, s.State, next)
}

// Fail records err and moves the session to the failed state.
func (s *Session) Fail(err error) error {
	if s == nil {
		return nil
	}
	if advErr := s.Advance(StateFailed); advErr != nil {
		return advErr
	}
	s.Err = err
	return nil
}

// Done reports whether a response has been sent for this session.
func (s *Session) Done() bool {
	return s != nil && s.State == StateResponded
}

// Elapsed is the time since the session was received.
func (s *Session) Elapsed() time.Duration {
	if s == nil || len(s.History) == 0 {
		return 0
	}
	return time.Since(s.History[0].At)
}
