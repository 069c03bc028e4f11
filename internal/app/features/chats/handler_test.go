package chats_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/features/chats"
	chatstore "github.com/dalemusser/donorlink/internal/app/store/chats"
	userstore "github.com/dalemusser/donorlink/internal/app/store/users"
	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/ratelimit"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/donorlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type chatEnv struct {
	db    *mongo.Database
	hub   *live.Hub
	store *chatstore.Store
	h     *chats.Handler
	asha  testutil.TestUser
	ravi  testutil.TestUser
	meera testutil.TestUser
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	db := testutil.SetupTestDBWithIndexes(t)
	fx := testutil.NewFixtures(t, db)
	ctx := testutil.Ctx(t)

	hub := live.NewHub(zap.NewNop())
	store := chatstore.New(db, hub, zap.NewNop())

	a := fx.CreateUser(ctx, "Asha", "asha@example.com", "O+", nil)
	r := fx.CreateUser(ctx, "Ravi", "ravi@example.com", "B+", nil)
	m := fx.CreateUser(ctx, "Meera", "meera@example.com", "A+", nil)

	return &chatEnv{
		db:    db,
		hub:   hub,
		store: store,
		h:     chats.NewHandler(store, userstore.New(db), zap.NewNop()),
		asha:  testutil.AsTestUser(a.ID, a.Name, a.Email, auth.RoleUser),
		ravi:  testutil.AsTestUser(r.ID, r.Name, r.Email, auth.RoleUser),
		meera: testutil.AsTestUser(m.ID, m.Name, m.Email, auth.RoleUser),
	}
}

func (e *chatEnv) openChat(t *testing.T, from, to testutil.TestUser) models.Chat {
	t.Helper()
	rec := testutil.NewRecorder()
	e.h.HandleCreate(rec, testutil.WithUser(
		testutil.NewJSONRequest(t, "POST", "/api/chats", map[string]string{"user_id": to.ID}), from))
	rec.AssertStatus(t, http.StatusOK)

	var c models.Chat
	rec.DecodeJSON(t, &c)
	return c
}

func TestHandleCreate(t *testing.T) {
	e := newChatEnv(t)

	c := e.openChat(t, e.asha, e.ravi)
	if c.ID != chatstore.ChatID(e.asha.ID, e.ravi.ID) {
		t.Errorf("chat id = %q, want derived id", c.ID)
	}
	if c.ParticipantNames[e.ravi.ID] != "Ravi" || c.ParticipantNames[e.asha.ID] != "Asha" {
		t.Errorf("participant names = %v", c.ParticipantNames)
	}

	again := e.openChat(t, e.ravi, e.asha)
	if again.ID != c.ID {
		t.Errorf("reopening from the other side gave %q, want %q", again.ID, c.ID)
	}
}

func TestHandleCreate_Errors(t *testing.T) {
	e := newChatEnv(t)

	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"self", e.asha.ID, http.StatusBadRequest},
		{"malformed id", "nope", http.StatusBadRequest},
		{"unknown user", primitive.NewObjectID().Hex(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.HandleCreate(rec, testutil.WithUser(
				testutil.NewJSONRequest(t, "POST", "/api/chats", map[string]string{"user_id": tt.userID}), e.asha))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestSendListAndRead(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)

	send := func(user testutil.TestUser, body string) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(t, "POST", "/api/chats/"+c.ID+"/messages", map[string]string{"message": body})
		req = testutil.WithChiURLParam(testutil.WithUser(req, user), "id", c.ID)
		rec := testutil.NewRecorder()
		e.h.HandleSend(rec, req)
		return rec
	}

	send(e.asha, "Need O+ at Ruby Hall").AssertStatus(t, http.StatusCreated)
	send(e.ravi, "<b>On my way</b>").AssertStatus(t, http.StatusCreated)
	send(e.asha, "   ").AssertStatus(t, http.StatusBadRequest)
	send(e.meera, "hello?").AssertStatus(t, http.StatusForbidden)

	rec := testutil.NewRecorder()
	e.h.ServeMessages(rec, testutil.WithChiURLParam(
		testutil.NewAuthenticatedRequest("GET", "/api/chats/"+c.ID+"/messages", e.asha), "id", c.ID))
	rec.AssertStatus(t, http.StatusOK)

	var msgs []models.Message
	rec.DecodeJSON(t, &msgs)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[1].Body != "On my way" {
		t.Errorf("second body = %q, want markup stripped", msgs[1].Body)
	}

	rec = testutil.NewRecorder()
	e.h.HandleMarkRead(rec, testutil.WithChiURLParam(
		testutil.NewAuthenticatedRequest("POST", "/api/chats/"+c.ID+"/read", e.asha), "id", c.ID))
	rec.AssertStatus(t, http.StatusNoContent)

	msgs, err := e.store.ListMessages(testutil.Ctx(t), c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if msgs[0].Read {
		t.Error("asha's own message must stay unread")
	}
	if !msgs[1].Read {
		t.Error("ravi's message should be read after asha marked the chat")
	}

	rec = testutil.NewRecorder()
	e.h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/api/chats", e.ravi))
	rec.AssertStatus(t, http.StatusOK)
	var list []models.Chat
	rec.DecodeJSON(t, &list)
	if len(list) != 1 || list[0].LastMessage != "On my way" {
		t.Errorf("chat list = %+v", list)
	}
}

func TestServeChat_Access(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)

	tests := []struct {
		name   string
		user   testutil.TestUser
		chatID string
		want   int
	}{
		{"participant", e.ravi, c.ID, http.StatusOK},
		{"outsider", e.meera, c.ID, http.StatusForbidden},
		{"missing chat", e.asha, chatstore.ChatID(e.asha.ID, e.meera.ID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.ServeChat(rec, testutil.WithChiURLParam(
				testutil.NewAuthenticatedRequest("GET", "/api/chats/"+tt.chatID, tt.user), "id", tt.chatID))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestRoutes_SendLimit(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)

	limiter := ratelimit.New(2, time.Minute)
	defer limiter.Stop()
	e.h.SendLimit = limiter

	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "t", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	router := chats.Routes(e.h, sm)

	send := func(user testutil.TestUser) int {
		rec := testutil.NewRecorder()
		req := testutil.NewJSONRequest(t, "POST", "/"+c.ID+"/messages", map[string]string{"message": "hello"})
		router.ServeHTTP(rec, testutil.WithUser(req, user))
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send(e.asha); code != http.StatusCreated {
			t.Fatalf("send %d = %d, want 201", i+1, code)
		}
	}
	if code := send(e.asha); code != http.StatusTooManyRequests {
		t.Errorf("third send = %d, want 429", code)
	}
	// The limit is per sender.
	if code := send(e.ravi); code != http.StatusCreated {
		t.Errorf("other sender = %d, want 201", code)
	}
}
