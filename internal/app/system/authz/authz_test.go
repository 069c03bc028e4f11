package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/donorlink/internal/app/system/auth"
	"github.com/dalemusser/donorlink/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)

	role, name, id, ok := authz.UserCtx(req)
	if ok {
		t.Fatal("expected ok=false without a user")
	}
	if role != "visitor" || name != "" || !id.IsZero() {
		t.Errorf("unexpected values: %q %q %s", role, name, id.Hex())
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-an-id", Role: auth.RoleAdmin})

	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("expected malformed id to fail closed")
	}
	if authz.IsAdmin(req) {
		t.Error("malformed id must not be treated as admin")
	}
}

func TestUserCtx_LowercasesRole(t *testing.T) {
	userID := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: userID, Name: "Asha", Role: "ADMIN"})

	role, name, id, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if role != "admin" || name != "Asha" || id.Hex() != userID {
		t.Errorf("got %q %q %s", role, name, id.Hex())
	}
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name string
		role string
		want bool
	}{
		{"admin", auth.RoleAdmin, true},
		{"user", auth.RoleUser, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: tt.role})
			if got := authz.IsAdmin(req); got != tt.want {
				t.Errorf("IsAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActor(t *testing.T) {
	userID := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: userID, Name: "Ravi", Role: auth.RoleUser})

	id, name, ok := authz.Actor(req)
	if !ok || id.Hex() != userID || name != "Ravi" {
		t.Errorf("Actor = %s %q %v", id.Hex(), name, ok)
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: auth.RoleUser})

	if !authz.HasAnyRole(req, " Admin ", "user") {
		t.Error("expected user role to match")
	}
	if authz.HasAnyRole(req, auth.RoleAdmin) {
		t.Error("did not expect admin role to match")
	}
	if role, ok := authz.Role(req); !ok || role != auth.RoleUser {
		t.Errorf("Role = %q %v", role, ok)
	}
}
