package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/donorlink/internal/app/system/validators"
	"github.com/dalemusser/donorlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expectedCollections := []string{
		"users", "ngos", "camp_news", "chats", "messages",
		"camp_interest", "admins", "audit_events",
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}

	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}

	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestUsersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	valid := bson.M{
		"email":        "asha@example.com",
		"email_ci":     "asha@example.com",
		"name":         "Asha",
		"blood_group":  "O+",
		"is_available": true,
		"location":     bson.M{"lat": 19.07, "lng": 72.87},
	}
	if _, err := db.Collection("users").InsertOne(ctx, valid); err != nil {
		t.Errorf("Insert valid user failed: %v", err)
	}

	invalid := []struct {
		name string
		doc  bson.M
	}{
		{"missing fields", bson.M{"email": "x@example.com"}},
		{"bad blood group", bson.M{"email": "b@example.com", "email_ci": "b@example.com", "name": "B", "blood_group": "C+", "is_available": false}},
		{"blank name", bson.M{"email": "c@example.com", "email_ci": "c@example.com", "name": "   ", "blood_group": "A+", "is_available": false}},
		{"latitude out of range", bson.M{"email": "d@example.com", "email_ci": "d@example.com", "name": "D", "blood_group": "A+", "is_available": false, "location": bson.M{"lat": 95.0, "lng": 0.0}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Collection("users").InsertOne(ctx, tt.doc); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNGOsValidator_InvalidStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	doc := bson.M{
		"user_id":             primitive.NewObjectID(),
		"name":                "Helping Hands",
		"registration_number": "REG-1",
		"verification_status": "approved", // news status, not an NGO status
		"is_active":           true,
	}
	if _, err := db.Collection("ngos").InsertOne(ctx, doc); err == nil {
		t.Error("expected validation error for invalid verification_status")
	}

	doc["verification_status"] = "pending"
	if _, err := db.Collection("ngos").InsertOne(ctx, doc); err != nil {
		t.Errorf("Insert valid ngo failed: %v", err)
	}
}

func TestCampNewsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	doc := bson.M{
		"ngo_id":           primitive.NewObjectID(),
		"title":            "Camp",
		"camp_date":        time.Now().Add(24 * time.Hour),
		"status":           "pending",
		"views":            int64(0),
		"interested_count": int64(0),
	}
	if _, err := db.Collection("camp_news").InsertOne(ctx, doc); err != nil {
		t.Errorf("Insert valid camp news failed: %v", err)
	}

	doc["status"] = "verified"
	if _, err := db.Collection("camp_news").InsertOne(ctx, doc); err == nil {
		t.Error("expected validation error for invalid news status")
	}
}

func TestMessagesValidator_BlankBody(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	_, err := db.Collection("messages").InsertOne(ctx, bson.M{
		"chat_id":   "a_b",
		"sender_id": "a",
		"message":   "   ",
		"timestamp": time.Now(),
	})
	if err == nil {
		t.Error("expected validation error for whitespace-only message")
	}
}

func TestChatsValidator_RequiresTwoParticipants(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if _, err := db.Collection("chats").InsertOne(ctx, bson.M{"_id": "a_a", "participants": bson.A{"a"}}); err == nil {
		t.Error("expected validation error for single participant")
	}
	if _, err := db.Collection("chats").InsertOne(ctx, bson.M{"_id": "a_b", "participants": bson.A{"a", "b"}}); err != nil {
		t.Errorf("Insert valid chat failed: %v", err)
	}
}
