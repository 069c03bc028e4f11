package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/store/audit"
	"github.com/dalemusser/donorlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestStore_GetByTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	newsID := primitive.NewObjectID()
	other := primitive.NewObjectID()

	for _, target := range []primitive.ObjectID{newsID, other} {
		target := target
		if err := store.Log(ctx, audit.Event{
			Category:   audit.CategoryModeration,
			EventType:  audit.EventNewsApproved,
			ActorID:    &actor,
			TargetKind: "news",
			TargetID:   &target,
			Success:    true,
		}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetByTarget(ctx, newsID, 10)
	if err != nil {
		t.Fatalf("GetByTarget failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for target, got %d", len(events))
	}
	if events[0].TargetKind != "news" {
		t.Errorf("TargetKind = %q, want news", events[0].TargetKind)
	}
}

func TestStore_QueryAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)

	events := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Timestamp: old, Success: true},
		{Category: audit.CategoryAuth, EventType: audit.EventLogout, Timestamp: now, Success: true},
		{Category: audit.CategoryModeration, EventType: audit.EventNGOVerified, Timestamp: now, Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	got, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 auth events, got %d", len(got))
	}
	if got[0].EventType != audit.EventLogout {
		t.Errorf("expected newest first, got %q", got[0].EventType)
	}

	since := now.Add(-time.Hour)
	n, err := store.CountByFilter(ctx, audit.QueryFilter{StartTime: &since})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountByFilter = %d, want 2", n)
	}
}
