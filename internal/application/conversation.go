package application

import "sync"

// session is the per-user conversational state. At most one exists per user;
// its mutex serialises that user's transitions while other users progress
// concurrently.
type session struct {
	mu    sync.Mutex
	state State
	draft Draft
}

func (s *session) reset() {
	s.state = StateIdle
	s.draft = Draft{}
}

// SessionManager owns the ephemeral conversation sessions. Sessions are
// in-memory only: a process restart starts every user from Idle, which is
// exactly the restart-from-idle semantics a fresh start event would give.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session
}

// NewSessionManager constructs an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[int64]*session)}
}

// acquire returns the user's session with its mutex held. The caller must
// release it.
func (m *SessionManager) acquire(userID int64) *session {
	m.mu.RLock()
	sess, ok := m.sessions[userID]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		sess, ok = m.sessions[userID]
		if !ok {
			sess = &session{state: StateIdle}
			m.sessions[userID] = sess
		}
		m.mu.Unlock()
	}

	sess.mu.Lock()
	return sess
}

// State reports the user's current conversation state. Users without a
// session are Idle.
func (m *SessionManager) State(userID int64) State {
	m.mu.RLock()
	sess, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return StateIdle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}
