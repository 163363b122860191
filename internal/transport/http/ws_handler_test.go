package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *testServer, query string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(s.engine)
	t.Cleanup(server.Close)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketChallengeFlow(t *testing.T) {
	s := newTestServer(t)
	u := s.registerUser(t, "Alice", "Hanbit", "blue")
	conn := dialWS(t, s, "userId="+u.ID+"&bankId=saa")

	// The attempt starts on connect.
	_, payload := readUntil(t, conn, "question")
	if payload["question"] == nil {
		t.Fatalf("expected a question, got %v", payload)
	}
	if _, leaked := payload["question"].(map[string]any)["answer"]; leaked {
		t.Fatalf("question must not carry its answer")
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"choices": []string{"right"}},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, verdict := readUntil(t, conn, "verdict")
	if verdict["correct"] != true {
		t.Fatalf("expected correct verdict, got %v", verdict)
	}
	readUntil(t, conn, "question")

	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, verdict = readUntil(t, conn, "verdict")
	if verdict["state"] != "succeeded" {
		t.Fatalf("expected succeeded, got %v", verdict["state"])
	}
	_, finished := readUntil(t, conn, "finished")
	if finished["verdict"] == nil {
		t.Fatalf("expected finished payload to carry the verdict")
	}

	// Answering an ended attempt is reported, the connection stays open.
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	readUntil(t, conn, "error")

	if err := conn.WriteJSON(map[string]any{"type": "restart"}); err != nil {
		t.Fatalf("write restart: %v", err)
	}
	_, restarted := readUntil(t, conn, "question")
	if restarted["state"] != "in_progress" {
		t.Fatalf("expected a fresh attempt, got %v", restarted["state"])
	}
}

func TestWebSocketHomeworkNavigation(t *testing.T) {
	s := newTestServer(t)
	u := s.registerUser(t, "Alice", "Hanbit", "blue")
	conn := dialWS(t, s, "userId="+u.ID+"&bankId=saa&mode=homework")
	readUntil(t, conn, "question")

	if err := conn.WriteJSON(map[string]any{"type": "navigate", "payload": map[string]any{"index": 1}}); err != nil {
		t.Fatalf("write navigate: %v", err)
	}
	_, moved := readUntil(t, conn, "question")
	if moved["cursor"] != float64(1) {
		t.Fatalf("expected cursor 1, got %v", moved["cursor"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "navigate", "payload": map[string]any{"index": 9}}); err != nil {
		t.Fatalf("write navigate: %v", err)
	}
	readUntil(t, conn, "error")

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, e := readUntil(t, conn, "error")
	if e["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %v", e)
	}
}

func TestWebSocketRejectsUnknownUser(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s, "userId=ghost&bankId=saa")
	_, e := readUntil(t, conn, "error")
	if !strings.Contains(e["message"].(string), "user not found") {
		t.Fatalf("unexpected error %v", e)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/ws", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// readUntil skips other message types (leaderboard pushes) until want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 10; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Type, msg.Payload
		}
		if msg.Type == "error" {
			t.Fatalf("unexpected error while waiting for %s: %v", want, msg.Payload)
		}
	}
	t.Fatalf("did not receive %s", want)
	return "", nil
}

func TestOutboxDropsAfterWriterStops(t *testing.T) {
	done := make(chan struct{})
	out := outbox{ch: make(chan outboundMessage[any], 1), done: done}

	if !out.push("question", nil) {
		t.Fatalf("expected the first message to be buffered")
	}
	close(done)

	pushed := make(chan bool, 1)
	go func() { pushed <- out.push("error", errorPayload{Message: "late"}) }()
	select {
	case ok := <-pushed:
		if ok {
			t.Fatalf("expected push to report the stopped writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("push blocked after the writer stopped")
	}
}
