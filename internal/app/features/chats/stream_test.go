package chats_test

import (
	"testing"

	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/donorlink/internal/testutil"
)

func messagesFor(chatID string) func(testutil.WSFrame) bool {
	return func(f testutil.WSFrame) bool {
		return f.Type == "messages" && f.ChatID != nil && *f.ChatID == chatID
	}
}

func TestServeStream_ChatList(t *testing.T) {
	e := newChatEnv(t)
	srv := testutil.ServeAs(t, e.h.ServeStream, e.asha)
	ws := testutil.DialWS(t, srv, "/")

	first, _ := testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool { return f.Type == "chats" })
	var list []models.Chat
	first.DecodeData(t, &list)
	if len(list) != 0 {
		t.Fatalf("initial chat list = %d, want 0", len(list))
	}

	e.openChat(t, e.ravi, e.asha)

	next, _ := testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool {
		if f.Type != "chats" {
			return false
		}
		var l []models.Chat
		f.DecodeData(t, &l)
		return len(l) == 1
	})
	next.DecodeData(t, &list)
	if list[0].ParticipantNames[e.ravi.ID] != "Ravi" {
		t.Errorf("chat list entry = %+v", list[0])
	}
}

func TestServeStream_OpenDeliversAndMarksRead(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)
	ctx := testutil.Ctx(t)

	if _, err := e.store.SendMessage(ctx, c.ID, e.ravi.ID, "Ravi", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	srv := testutil.ServeAs(t, e.h.ServeStream, e.asha)
	ws := testutil.DialWS(t, srv, "/")
	testutil.WriteWS(t, ws, map[string]string{"type": "open", "chat_id": c.ID})

	f, _ := testutil.ReadFrameUntil(t, ws, messagesFor(c.ID))
	var msgs []models.Message
	f.DecodeData(t, &msgs)
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Fatalf("messages = %+v", msgs)
	}

	testutil.Eventually(t, "message marked read", func() bool {
		got, err := e.store.ListMessages(ctx, c.ID)
		return err == nil && len(got) == 1 && got[0].Read
	})

	if _, err := e.store.SendMessage(ctx, c.ID, e.ravi.ID, "Ravi", "are you there?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool {
		if !messagesFor(c.ID)(f) {
			return false
		}
		var m []models.Message
		f.DecodeData(t, &m)
		return len(m) == 2
	})
}

func TestServeStream_SwitchAndClose(t *testing.T) {
	e := newChatEnv(t)
	withRavi := e.openChat(t, e.asha, e.ravi)
	withMeera := e.openChat(t, e.asha, e.meera)
	ctx := testutil.Ctx(t)

	srv := testutil.ServeAs(t, e.h.ServeStream, e.asha)
	ws := testutil.DialWS(t, srv, "/")

	testutil.WriteWS(t, ws, map[string]string{"type": "open", "chat_id": withRavi.ID})
	testutil.ReadFrameUntil(t, ws, messagesFor(withRavi.ID))

	testutil.WriteWS(t, ws, map[string]string{"type": "open", "chat_id": withMeera.ID})
	testutil.ReadFrameUntil(t, ws, messagesFor(withMeera.ID))

	// The old chat's subscription is gone once the new chat's first frame
	// has arrived, so writes to it must not reach this connection.
	if _, err := e.store.SendMessage(ctx, withRavi.ID, e.ravi.ID, "Ravi", "old chat"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := e.store.SendMessage(ctx, withMeera.ID, e.meera.ID, "Meera", "new chat"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	_, skipped := testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool {
		if !messagesFor(withMeera.ID)(f) {
			return false
		}
		var m []models.Message
		f.DecodeData(t, &m)
		return len(m) == 1
	})
	for _, f := range skipped {
		if messagesFor(withRavi.ID)(f) {
			t.Fatal("received messages for a chat that was switched away from")
		}
	}

	testutil.WriteWS(t, ws, map[string]string{"type": "close"})
	closed, _ := testutil.ReadFrameUntil(t, ws, messagesFor(""))
	var none []models.Message
	closed.DecodeData(t, &none)
	if len(none) != 0 {
		t.Errorf("close frame carried %d messages", len(none))
	}

	// One subscription for the chat list remains.
	testutil.Eventually(t, "only the chat list subscription left", func() bool { return e.hub.Count() == 1 })
}

func TestServeStream_Errors(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)

	srv := testutil.ServeAs(t, e.h.ServeStream, e.meera)
	ws := testutil.DialWS(t, srv, "/")

	testutil.WriteWS(t, ws, map[string]string{"type": "open", "chat_id": c.ID})
	f, _ := testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool { return f.Type == "error" })
	if f.Code != "forbidden" {
		t.Errorf("code = %q, want forbidden", f.Code)
	}

	testutil.WriteWS(t, ws, map[string]string{"type": "dance"})
	f, _ = testutil.ReadFrameUntil(t, ws, func(f testutil.WSFrame) bool { return f.Type == "error" })
	if f.Code != "bad_frame" {
		t.Errorf("code = %q, want bad_frame", f.Code)
	}
}

func TestServeStream_ReleasesOnDisconnect(t *testing.T) {
	e := newChatEnv(t)
	c := e.openChat(t, e.asha, e.ravi)

	srv := testutil.ServeAs(t, e.h.ServeStream, e.asha)
	ws := testutil.DialWS(t, srv, "/")
	testutil.WriteWS(t, ws, map[string]string{"type": "open", "chat_id": c.ID})
	testutil.ReadFrameUntil(t, ws, messagesFor(c.ID))

	if e.hub.Count() != 2 {
		t.Fatalf("live subscriptions = %d, want 2", e.hub.Count())
	}
	ws.Close()
	testutil.Eventually(t, "subscriptions released", func() bool { return e.hub.Count() == 0 })
}
