// internal/app/features/chats/handler.go
package chats

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chatstore "github.com/dalemusser/donorlink/internal/app/store/chats"
	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves one-to-one chats over REST and the live chat stream.
type Handler struct {
	Chats *chatstore.Store
	Users *userstore.Store
	// SendLimit caps messages per sender. Nil means unlimited.
	SendLimit *ratelimit.Limiter
	Log       *zap.Logger
}

func NewHandler(chats *chatstore.Store, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Chats: chats, Users: users, Log: logger}
}

type createRequest struct {
	UserID string `json:"user_id"`
}

type sendRequest struct {
	Message string `json:"message"`
}

// HandleCreate opens (or reopens) the chat between the caller and user_id
// and returns it.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	meID, meName, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req createRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	otherID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.UserID))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "user_id is not a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	other, err := h.Users.GetByID(ctx, otherID)
	if errors.Is(err, userstore.ErrNotFound) {
		httpjson.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.Log.Error("chat peer lookup failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not open chat")
		return
	}

	chatID, err := h.Chats.CreateOrGetChat(ctx, meID.Hex(), other.ID.Hex(), other.Name, meName)
	if err != nil {
		h.writeChatError(w, err, "create chat failed")
		return
	}
	c, err := h.Chats.GetChat(ctx, chatID)
	if err != nil {
		h.writeChatError(w, err, "load chat failed")
		return
	}
	httpjson.OK(w, c)
}

// ServeList returns the caller's chats, most recent first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	meID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Chats.ListUserChats(ctx, meID.Hex())
	if err != nil {
		h.writeChatError(w, err, "list chats failed")
		return
	}
	httpjson.OK(w, list)
}

// ServeChat returns one chat the caller takes part in.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	meID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Chats.GetChatFor(ctx, chi.URLParam(r, "id"), meID.Hex())
	if err != nil {
		h.writeChatError(w, err, "load chat failed")
		return
	}
	httpjson.OK(w, c)
}

// ServeMessages returns a chat's messages oldest first.
func (h *Handler) ServeMessages(w http.ResponseWriter, r *http.Request) {
	meID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	chatID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Chats.GetChatFor(ctx, chatID, meID.Hex()); err != nil {
		h.writeChatError(w, err, "load chat failed")
		return
	}
	msgs, err := h.Chats.ListMessages(ctx, chatID)
	if err != nil {
		h.writeChatError(w, err, "list messages failed")
		return
	}
	httpjson.OK(w, msgs)
}

// HandleSend posts a message as the caller.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	meID, meName, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	var req sendRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msg, err := h.Chats.SendMessage(ctx, chi.URLParam(r, "id"), meID.Hex(), meName, req.Message)
	if err != nil {
		h.writeChatError(w, err, "send message failed")
		return
	}
	httpjson.Write(w, http.StatusCreated, msg)
}

// HandleMarkRead flags the other party's messages as read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	meID, _, ok := authz.Actor(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	chatID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Chats.GetChatFor(ctx, chatID, meID.Hex()); err != nil {
		h.writeChatError(w, err, "load chat failed")
		return
	}
	h.Chats.MarkMessagesAsRead(ctx, chatID, meID.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeChatError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, chatstore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, chatstore.ErrNotParticipant):
		httpjson.Error(w, http.StatusForbidden, "not a participant in this chat")
	case errors.Is(err, chatstore.ErrEmptyMessage),
		errors.Is(err, chatstore.ErrSameUser),
		errors.Is(err, chatstore.ErrMissingUser):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error(logMsg, zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
