// Package session tracks which usernames are currently reachable over a live
// websocket and owns the per-connection outbound write path.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 128
)

// ErrClosed is returned by Send after the session has been closed.
var ErrClosed = errors.New("session: closed")

// ErrBufferFull is returned by Send when the outbound buffer overflows; the
// session is closed to keep backpressure bounded.
var ErrBufferFull = errors.New("session: send buffer full")

// Conn is the subset of *websocket.Conn the session writes through. Tests
// substitute an in-memory implementation.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live, addressable connection bound to a username. Outbound
// writes are serialized through a buffered channel drained by the write loop,
// so Send is safe for concurrent use.
type Session struct {
	ID       string
	Username string

	conn   Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

// New constructs a Session for the given username. The write loop is started
// by Directory.Register.
func New(username string, conn Conn) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
	}
}

// Send enqueues payload for delivery. A slow consumer with a full buffer gets
// its session closed rather than blocking the caller.
func (s *Session) Send(payload []byte) error {
	// Checked on its own first: in a combined select a ready closed channel
	// would race against the still-writable buffer and enqueue into a
	// session nothing drains.
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrClosed
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// Close terminates the session, sending a close frame with the given code and
// reason and stopping the write loop. Safe to call multiple times.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// Done is closed when the session has been shut down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.send:
			if err := s.writeMessage(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeMessage(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writePing() error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}
