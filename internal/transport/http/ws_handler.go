package http

import (
	"encoding/json"
	"net/http"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	play     *app.PlayService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(play *app.PlayService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		play:   play,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	BankID string      `json:"bankId"`
	Mode   domain.Mode `json:"mode"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type warningPayload struct {
	QuestionID int    `json:"questionId"`
	Message    string `json:"message"`
}

// outbox feeds the connection's writer goroutine. Once the writer has stopped, push
// drops messages instead of blocking.
type outbox struct {
	ch   chan outboundMessage[any]
	done <-chan struct{}
}

func (o outbox) push(msgType string, payload any) bool {
	select {
	case o.ch <- outboundMessage[any]{Type: msgType, Payload: payload}:
		return true
	case <-o.done:
		return false
	}
}

// ServeWS upgrades to a websocket and plays one user's attempts over it. With bankId
// in the query an attempt starts immediately; otherwise the current one is resumed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	bankID := r.URL.Query().Get("bankId")
	mode := modeOrDefault(domain.Mode(r.URL.Query().Get("mode")))
	if !mode.Valid() {
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var first app.AttemptView
	if bankID != "" {
		first, err = h.play.Start(ctx, userID, bankID, mode)
	} else {
		first, err = h.play.Current(ctx, userID, mode)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := h.play.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	out := outbox{ch: send, done: writerDone}

	// Only the writer goroutine touches conn for writes. On a failed write it closes
	// the connection so the read loop below ends too.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", zap.String("user_id", userID), zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	sendError := func(err error) {
		out.push("error", errorPayload{Message: err.Error()})
	}
	out.push("question", toAttemptView(first))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.BankID == "" {
				out.push("error", errorPayload{Message: "invalid start payload"})
				continue
			}
			next := modeOrDefault(payload.Mode)
			view, err := h.play.Start(ctx, userID, payload.BankID, next)
			if err != nil {
				sendError(err)
				continue
			}
			mode = next
			out.push("question", toAttemptView(view))
		case "answer":
			var sub domain.Submission
			if err := json.Unmarshal(inbound.Payload, &sub); err != nil {
				out.push("error", errorPayload{Message: "invalid answer payload"})
				continue
			}
			outcome, err := h.play.Answer(ctx, userID, mode, sub)
			if err != nil {
				sendError(err)
				continue
			}
			view := toOutcomeView(outcome)
			out.push("verdict", view.Verdict)
			if outcome.Verdict.Warning != "" {
				out.push("warning", warningPayload{
					QuestionID: outcome.Verdict.QuestionID,
					Message:    outcome.Verdict.Warning,
				})
			}
			if outcome.Attempt.Terminal() {
				out.push("finished", view)
			} else {
				out.push("question", view.Attempt)
			}
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.push("error", errorPayload{Message: "invalid navigate payload"})
				continue
			}
			view, err := h.play.Navigate(ctx, userID, payload.Index)
			if err != nil {
				sendError(err)
				continue
			}
			out.push("question", toAttemptView(view))
		case "restart":
			view, err := h.play.Restart(ctx, userID, mode)
			if err != nil {
				sendError(err)
				continue
			}
			out.push("question", toAttemptView(view))
		default:
			out.push("error", errorPayload{Message: "unsupported message type"})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
