package session

import (
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn recording writes and close state.
type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	closeCode int
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		f.frames = append(f.frames, append([]byte(nil), data...))
	}
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.closeCode = int(data[0])<<8 | int(data[1])
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) sentCloseCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestRegisterAndResolve(t *testing.T) {
	d := NewDirectory()
	conn := newFakeConn()
	s := New("alice", conn)

	d.Register(s)

	resolved, ok := d.Resolve("alice")
	require.True(t, ok)
	assert.Same(t, s, resolved)
	assert.Equal(t, 1, d.Len())

	_, ok = d.Resolve("nobody")
	assert.False(t, ok)
}

func TestRegisterReplacesPreviousSession(t *testing.T) {
	d := NewDirectory()
	oldConn := newFakeConn()
	oldSession := New("alice", oldConn)
	d.Register(oldSession)

	newConn := newFakeConn()
	newSession := New("alice", newConn)
	d.Register(newSession)

	resolved, ok := d.Resolve("alice")
	require.True(t, ok)
	assert.Same(t, newSession, resolved)
	assert.Equal(t, 1, d.Len())

	require.Eventually(t, oldConn.isClosed, time.Second, 10*time.Millisecond)
	assert.Equal(t, CloseReplaced, oldConn.sentCloseCode())

	// Delivery after replacement reaches only the new session.
	require.NoError(t, newSession.Send([]byte("hello")))
	require.Eventually(t, func() bool {
		return len(newConn.received()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, oldConn.received())
}

func TestStaleUnregisterKeepsNewerSession(t *testing.T) {
	d := NewDirectory()
	oldSession := New("alice", newFakeConn())
	d.Register(oldSession)

	newSession := New("alice", newFakeConn())
	d.Register(newSession)

	// The old connection's disconnect arrives after the replacement.
	d.Unregister(oldSession)

	resolved, ok := d.Resolve("alice")
	require.True(t, ok)
	assert.Same(t, newSession, resolved)
}

func TestUnregisterRemovesCurrentSession(t *testing.T) {
	d := NewDirectory()
	s := New("alice", newFakeConn())
	d.Register(s)

	d.Unregister(s)

	_, ok := d.Resolve("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestSendAfterCloseFails(t *testing.T) {
	// Repeated so a select that merely races the closed channel against the
	// writable buffer cannot pass by luck.
	for i := 0; i < 200; i++ {
		s := New("alice", newFakeConn())
		s.Close(websocket.CloseNormalClosure, "done")

		err := s.Send([]byte("too late"))
		require.ErrorIs(t, err, ErrClosed)
		require.Empty(t, s.send)
	}
}

func TestSendOverflowClosesSession(t *testing.T) {
	// No write loop runs, so the buffer never drains.
	s := New("alice", newFakeConn())

	var overflowed bool
	for i := 0; i <= sendBuffer; i++ {
		if err := s.Send([]byte("x")); err != nil {
			assert.ErrorIs(t, err, ErrBufferFull)
			overflowed = true
			break
		}
	}
	require.True(t, overflowed)

	select {
	case <-s.Done():
	default:
		t.Fatal("session should be closed after buffer overflow")
	}
}

func TestCloseAllShutsDownEverySession(t *testing.T) {
	d := NewDirectory()
	connA := newFakeConn()
	connB := newFakeConn()
	d.Register(New("alice", connA))
	d.Register(New("bob", connB))

	d.CloseAll(websocket.CloseGoingAway, "server shutting down")

	assert.Equal(t, 0, d.Len())
	require.Eventually(t, connA.isClosed, time.Second, 10*time.Millisecond)
	require.Eventually(t, connB.isClosed, time.Second, 10*time.Millisecond)
}
