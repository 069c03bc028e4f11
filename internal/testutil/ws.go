package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSFrame is a decoded server frame. Data is left raw so each test can
// decode it into the type it expects.
type WSFrame struct {
	Type   string          `json:"type"`
	ChatID *string         `json:"chat_id"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

// ServeAs wraps h so every request carries user, then starts a test server.
func ServeAs(t *testing.T, h http.HandlerFunc, user TestUser) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, WithUser(r, user))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// DialWS opens a WebSocket to srv at path (which may carry a query string).
func DialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// WriteWS sends v as a JSON text frame.
func WriteWS(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// ReadFrameUntil reads frames until match returns true, failing the test
// after 5 seconds. Skipped frames are returned too, oldest first.
func ReadFrameUntil(t *testing.T, ws *websocket.Conn, match func(WSFrame) bool) (WSFrame, []WSFrame) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var skipped []WSFrame
	for {
		_ = ws.SetReadDeadline(deadline)
		var f WSFrame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("read frame (skipped %d): %v", len(skipped), err)
		}
		if match(f) {
			return f, skipped
		}
		skipped = append(skipped, f)
	}
}

// DecodeData unmarshals a frame's data into v.
func (f WSFrame) DecodeData(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s frame data %s: %v", f.Type, string(f.Data), err)
	}
}

// Eventually polls cond every 20ms until it holds or 5 seconds pass.
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
