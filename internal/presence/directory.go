package presence

import "sync"

// State is the lifecycle position of one transport session.
type State int

const (
	Disconnected State = iota
	Connected
	Subscribed
)

// String returns the lower case state name.
func (s State) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case Subscribed:
		return "SUBSCRIBED"
	default:
		return "DISCONNECTED"
	}
}

type session struct {
	userID int64
	state  State
}

// Directory maps transport session ids to user ids for one server instance.
// It is never persisted or shared: after a restart, presence is rebuilt by
// clients reconnecting.
type Directory struct {
	mu       sync.RWMutex
	sessions map[string]session
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{sessions: make(map[string]session)}
}

// Put maps sessionID to userID. It returns the previously mapped user, if any.
// Re-putting the same user keeps the session's state; a different user
// restarts it at Connected.
func (d *Directory) Put(sessionID string, userID int64) (prev int64, existed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old, ok := d.sessions[sessionID]
	if ok && old.userID == userID {
		return old.userID, true
	}
	d.sessions[sessionID] = session{userID: userID, state: Connected}
	return old.userID, ok
}

// Get returns the user mapped to sessionID.
func (d *Directory) Get(sessionID string) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[sessionID]
	return s.userID, ok
}

// Remove unmaps sessionID and returns the user it was mapped to.
// Of two concurrent removes for one session, exactly one sees ok == true.
func (d *Directory) Remove(sessionID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		return 0, false
	}
	delete(d.sessions, sessionID)
	return s.userID, true
}

// State returns Disconnected for unknown sessions.
func (d *Directory) State(sessionID string) State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessions[sessionID].state
}

// SetState updates a mapped session. It reports false when the session is gone.
func (d *Directory) SetState(sessionID string, state State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		return false
	}
	s.state = state
	d.sessions[sessionID] = s
	return true
}

// Len returns the number of mapped sessions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
