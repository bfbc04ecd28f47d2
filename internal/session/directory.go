package session

import (
	"sync"

	"github.com/rakhisingh42/Chat-Application/internal/logger"
)

// CloseReplaced is the close code sent to a session displaced by a newer
// connection for the same username.
const CloseReplaced = 4001

// Directory maps usernames to their live session. The policy is one session
// per username: a new registration replaces and closes the previous one.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{byUser: make(map[string]*Session)}
}

// Register binds the session to its username and starts its write loop. Any
// previously registered session for the same username is closed after the
// swap, so resolution never observes a gap.
func (d *Directory) Register(s *Session) {
	d.mu.Lock()
	previous := d.byUser[s.Username]
	d.byUser[s.Username] = s
	total := len(d.byUser)
	d.mu.Unlock()

	go s.writeLoop()

	if previous != nil {
		previous.Close(CloseReplaced, "session replaced")
		logger.L.Info("session replaced", "username", s.Username, "old", previous.ID, "new", s.ID)
	}
	logger.L.Debug("session registered", "username", s.Username, "session", s.ID, "total", total)
}

// Unregister removes the binding only when the given session is still the
// one registered for its username, so a stale disconnect arriving after a
// reconnect never evicts the newer session.
func (d *Directory) Unregister(s *Session) {
	d.mu.Lock()
	current, ok := d.byUser[s.Username]
	if ok && current.ID == s.ID {
		delete(d.byUser, s.Username)
	}
	d.mu.Unlock()

	logger.L.Debug("session unregistered", "username", s.Username, "session", s.ID)
}

// Resolve returns the live session for username, if any. It never blocks.
func (d *Directory) Resolve(username string) (*Session, bool) {
	d.mu.RLock()
	s, ok := d.byUser[username]
	d.mu.RUnlock()
	return s, ok
}

// Len reports how many usernames are currently connected.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}

// CloseAll shuts down every registered session. Used during server shutdown.
func (d *Directory) CloseAll(code int, reason string) {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.byUser))
	for _, s := range d.byUser {
		sessions = append(sessions, s)
	}
	d.byUser = make(map[string]*Session)
	d.mu.Unlock()

	for _, s := range sessions {
		s.Close(code, reason)
	}
	logger.L.Info("closed all sessions", "count", len(sessions))
}
