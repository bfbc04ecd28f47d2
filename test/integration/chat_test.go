// Package integration contains end-to-end tests that exercise the full
// server stack over real websocket connections: persistence, block
// enforcement, session replacement, and best-effort delivery.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rakhisingh42/Chat-Application/internal/chat"
	"github.com/rakhisingh42/Chat-Application/internal/config"
	"github.com/rakhisingh42/Chat-Application/internal/server"
	"github.com/rakhisingh42/Chat-Application/internal/session"
	"github.com/rakhisingh42/Chat-Application/internal/store"
	"github.com/rakhisingh42/Chat-Application/internal/uploads"
	"github.com/rakhisingh42/Chat-Application/test/testhelpers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// newTestServer assembles the full stack on a temporary database and upload
// directory and serves it from an httptest server.
func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "chat_test.db")
	cfg.Uploads.Dir = t.TempDir()
	cfg.Server.AllowedOrigins = []string{"*"}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	files, err := uploads.NewFileStore(cfg.Uploads.Dir, cfg.Uploads.AllowedExtensions)
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}

	directory := session.NewDirectory()
	registry := chat.NewBlockRegistry(st)
	engine := chat.NewEngine(st, registry, directory)
	go engine.Run()
	t.Cleanup(func() { _ = engine.Shutdown(time.Second) })

	gateway := server.NewGateway(engine, directory, registry, st, files, cfg)
	ts := httptest.NewServer(server.NewRouter(gateway))
	t.Cleanup(ts.Close)

	return ts, st
}

func sendJSON(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// waitForRows polls until the conversation between a and b has want rows.
func waitForRows(t *testing.T, st *store.Store, a, b string, want int) []store.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		messages, err := st.ListMessagesBetween(context.Background(), a, b, 0)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) == want {
			return messages
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d rows between %s and %s, found %d", want, a, b, len(messages))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func rowCount(t *testing.T, st *store.Store, a, b string) int {
	t.Helper()
	messages, err := st.ListMessagesBetween(context.Background(), a, b, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return len(messages)
}

func TestMessageDeliveredToConnectedReceiver(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")
	bob := testhelpers.DialWebsocket(t, ts.URL, "B")

	payload := `{"sender":"A","receiver":"B","message":"hi"}`
	sendJSON(t, alice, payload)

	frame := testhelpers.ReadFrame(t, bob, 2*time.Second)
	if string(frame) != payload {
		t.Errorf("receiver got %s, want the inbound payload verbatim", frame)
	}

	rows := waitForRows(t, st, "A", "B", 1)
	if rows[0].Sender != "A" || rows[0].Receiver != "B" || rows[0].Body != "hi" {
		t.Errorf("stored row mismatch: %+v", rows[0])
	}
}

func TestBlockedMessageLeavesNoTrace(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")
	bob := testhelpers.DialWebsocket(t, ts.URL, "B")

	resp := testhelpers.PostForm(t, ts.URL+"/block", url.Values{"blocker": {"B"}, "blocked": {"A"}})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	sendJSON(t, alice, `{"sender":"A","receiver":"B","message":"you will not see this"}`)

	testhelpers.AssertNoFrame(t, bob, 500*time.Millisecond)
	if n := rowCount(t, st, "A", "B"); n != 0 {
		t.Errorf("blocked message persisted %d rows, want 0", n)
	}
}

func TestUnblockRestoresDelivery(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")
	bob := testhelpers.DialWebsocket(t, ts.URL, "B")

	resp := testhelpers.PostForm(t, ts.URL+"/block", url.Values{"blocker": {"B"}, "blocked": {"A"}})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	payload := `{"sender":"A","receiver":"B","message":"hello again"}`
	sendJSON(t, alice, payload)

	// Give the engine time to suppress before unblocking.
	time.Sleep(200 * time.Millisecond)
	if n := rowCount(t, st, "A", "B"); n != 0 {
		t.Fatalf("suppressed message persisted %d rows, want 0", n)
	}

	resp = testhelpers.PostForm(t, ts.URL+"/unblock", url.Values{"blocker": {"B"}, "blocked": {"A"}})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	sendJSON(t, alice, payload)

	frame := testhelpers.ReadFrame(t, bob, 2*time.Second)
	if string(frame) != payload {
		t.Errorf("receiver got %s, want %s", frame, payload)
	}
	waitForRows(t, st, "A", "B", 1)
}

func TestOfflineReceiverStillPersists(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")

	sendJSON(t, alice, `{"sender":"A","receiver":"C","message":"anyone home?"}`)

	waitForRows(t, st, "A", "C", 1)

	// Best-effort delivery: no error surfaces to the sender.
	testhelpers.AssertNoFrame(t, alice, 300*time.Millisecond)
}

func TestSessionReplacementRoutesToNewestConnection(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")
	bobOld := testhelpers.DialWebsocket(t, ts.URL, "B")
	bobNew := testhelpers.DialWebsocket(t, ts.URL, "B")

	// The displaced connection receives the replacement close code.
	_ = bobOld.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := bobOld.ReadMessage(); !websocket.IsCloseError(err, session.CloseReplaced) {
		t.Errorf("old session read ended with %v, want close code %d", err, session.CloseReplaced)
	}

	payload := `{"sender":"A","receiver":"B","message":"to the new session"}`
	sendJSON(t, alice, payload)

	frame := testhelpers.ReadFrame(t, bobNew, 2*time.Second)
	if string(frame) != payload {
		t.Errorf("new session got %s, want %s", frame, payload)
	}
	waitForRows(t, st, "A", "B", 1)
}

func TestValidationErrorSurfacedToSender(t *testing.T) {
	ts, st := newTestServer(t)

	alice := testhelpers.DialWebsocket(t, ts.URL, "A")

	sendJSON(t, alice, `{"sender":"A","message":"missing receiver"}`)

	frame := testhelpers.ReadFrame(t, alice, 2*time.Second)
	var errorFrame chat.ErrorFrame
	if err := json.Unmarshal(frame, &errorFrame); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if errorFrame.Event != "error" || errorFrame.Code != chat.CodeValidationError {
		t.Errorf("unexpected error frame: %+v", errorFrame)
	}

	if n := rowCount(t, st, "A", ""); n != 0 {
		t.Errorf("invalid event persisted %d rows, want 0", n)
	}
}

func TestBlockingTwiceConflicts(t *testing.T) {
	ts, _ := newTestServer(t)

	values := url.Values{"blocker": {"B"}, "blocked": {"A"}}
	resp := testhelpers.PostForm(t, ts.URL+"/block", values)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	resp = testhelpers.PostForm(t, ts.URL+"/block", values)
	testhelpers.AssertStatusCode(t, resp, http.StatusConflict)
}

func TestUnblockIsIdempotentOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	values := url.Values{"blocker": {"B"}, "blocked": {"A"}}
	resp := testhelpers.PostForm(t, ts.URL+"/unblock", values)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)

	resp = testhelpers.PostForm(t, ts.URL+"/unblock", values)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
}

func TestWebsocketRequiresUsername(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}
