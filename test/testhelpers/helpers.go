// Package testhelpers provides shared utilities for integration tests:
// websocket dialing against httptest servers, frame assertions, and
// form-encoded HTTP helpers.
package testhelpers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DialWebsocket connects to the /ws endpoint of an httptest server as the
// given username. The connection is closed automatically at test cleanup.
func DialWebsocket(t *testing.T, serverURL, username string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?username=" + url.QueryEscape(username)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	// Consume the handshake ack; once it arrives the session is registered
	// and addressable, which keeps multi-client tests deterministic.
	ack := ReadFrame(t, conn, 2*time.Second)
	if !strings.Contains(string(ack), "connected") {
		t.Fatalf("expected connected ack, got %s", ack)
	}
	return conn
}

// ReadFrame reads one text frame, failing the test if none arrives within
// the timeout.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) []byte {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a frame within %s: %v", timeout, err)
	}
	return payload
}

// AssertNoFrame verifies that no frame arrives on the connection within the
// given window.
func AssertNoFrame(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(window))
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, received: %s", payload)
	}
	if !strings.Contains(err.Error(), "timeout") && !websocket.IsUnexpectedCloseError(err) {
		// A read timeout is the expected outcome; close errors also mean no
		// data frame was delivered.
		t.Logf("read ended without data frame: %v", err)
	}
}

// PostForm sends a form-encoded POST and returns the response. The body is
// closed at test cleanup.
func PostForm(t *testing.T, targetURL string, values url.Values) *http.Response {
	t.Helper()

	resp, err := http.PostForm(targetURL, values)
	if err != nil {
		t.Fatalf("POST %s: %v", targetURL, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
