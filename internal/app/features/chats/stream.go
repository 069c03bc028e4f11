// internal/app/features/chats/stream.go
package chats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	chatstore "github.com/dalemusser/donorlink/internal/app/store/chats"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/dalemusser/donorlink/internal/app/system/wsconn"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"go.uber.org/zap"
)

// clientFrame is what the browser sends: {"type":"open","chat_id":"..."}
// or {"type":"close"}.
type clientFrame struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

// messagesFrame carries the open chat's full message list. After a close
// it is sent once with an empty chat id and no messages.
type messagesFrame struct {
	Type   string           `json:"type"`
	ChatID string           `json:"chat_id"`
	Data   []models.Message `json:"data"`
}

// ServeStream upgrades to a WebSocket that pushes the caller's chat list
// and, while a chat is open, that chat's messages.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	meID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	conn, err := wsconn.Upgrade(w, r, h.Log)
	if err != nil {
		return
	}

	s := &chatSession{
		chats:  h.Chats,
		conn:   conn,
		userID: meID.Hex(),
		log:    h.Log.With(zap.String("conn_id", conn.ID()), zap.String("user_id", meID.Hex())),
	}
	defer s.release()

	s.list = h.Chats.SubscribeUserChats(s.userID, func(list []models.Chat) {
		conn.Send(wsconn.Frame{Type: "chats", Data: list})
	}, s.sendError)

	conn.Run(s.handleFrame)
}

// chatSession is the per-connection chat-open state. At most one message
// subscription is bound at a time. Subscription callbacks must not take mu:
// open and close hold it while waiting for the old subscription to stop.
type chatSession struct {
	chats  *chatstore.Store
	conn   *wsconn.Conn
	userID string
	log    *zap.Logger

	mu     sync.Mutex
	chatID string
	msgs   *live.Subscription
	list   *live.Subscription
}

func (s *chatSession) handleFrame(data []byte) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		s.conn.Send(wsconn.Error("invalid frame", "bad_frame"))
		return
	}
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "open":
		s.open(strings.TrimSpace(f.ChatID))
	case "close":
		s.close()
	default:
		s.conn.Send(wsconn.Error("unknown frame type", "bad_frame"))
	}
}

func (s *chatSession) open(chatID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	_, err := s.chats.GetChatFor(ctx, chatID, s.userID)
	cancel()
	switch {
	case errors.Is(err, chatstore.ErrNotFound):
		s.conn.Send(wsconn.Error("chat not found", "not_found"))
		return
	case errors.Is(err, chatstore.ErrNotParticipant):
		s.conn.Send(wsconn.Error("not a participant in this chat", "forbidden"))
		return
	case err != nil:
		s.sendError(err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgs != nil && s.chatID == chatID {
		return
	}
	s.msgs.Close()
	s.chatID = chatID
	s.msgs = s.chats.SubscribeMessages(chatID, func(msgs []models.Message) {
		s.conn.Send(messagesFrame{Type: "messages", ChatID: chatID, Data: msgs})
		s.markRead(chatID, msgs)
	}, s.sendError)
	s.log.Debug("chat opened", zap.String("chat_id", chatID))
}

func (s *chatSession) close() {
	s.mu.Lock()
	s.msgs.Close()
	s.msgs = nil
	s.chatID = ""
	s.mu.Unlock()

	s.conn.Send(messagesFrame{Type: "messages", ChatID: "", Data: []models.Message{}})
}

// release tears everything down when the connection ends.
func (s *chatSession) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs.Close()
	s.msgs = nil
	s.list.Close()
	s.list = nil
}

// markRead flags the other party's messages read once the reader has been
// shown them. It runs on the subscription goroutine.
func (s *chatSession) markRead(chatID string, msgs []models.Message) {
	unread := false
	for _, m := range msgs {
		if m.SenderID != s.userID && !m.Read {
			unread = true
			break
		}
	}
	if !unread {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	defer cancel()
	s.chats.MarkMessagesAsRead(ctx, chatID, s.userID)
}

func (s *chatSession) sendError(err error) {
	s.log.Warn("chat stream load failed", zap.Error(err))
	s.conn.Send(wsconn.Error("could not load chats", "unavailable"))
}
