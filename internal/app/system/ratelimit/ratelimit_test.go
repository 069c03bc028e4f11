package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("k") {
		t.Error("third request should be limited")
	}
	if !l.Allow("other") {
		t.Error("other keys are independent")
	}
	if r := l.Remaining("k"); r != 0 {
		t.Errorf("Remaining = %d, want 0", r)
	}

	l.Reset("k")
	if !l.Allow("k") {
		t.Error("Reset should clear the window")
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	defer l.Stop()

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second request within window should be limited")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("request after window should be allowed")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()

	h := Middleware(l, func(r *http.Request) string { return r.Header.Get("X-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func(user string) int {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("u1"); code != http.StatusOK {
		t.Errorf("first = %d, want 200", code)
	}
	if code := do("u1"); code != http.StatusTooManyRequests {
		t.Errorf("second = %d, want 429", code)
	}
	if code := do(""); code != http.StatusOK {
		t.Errorf("empty key = %d, want 200", code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded list", "10.0.0.1, 10.0.0.2", "", "1.2.3.4:5", "10.0.0.1"},
		{"real ip", "", "10.0.0.9", "1.2.3.4:5", "10.0.0.9"},
		{"remote with port", "", "", "1.2.3.4:5", "1.2.3.4"},
		{"remote without port", "", "", "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_EmailLimit(t *testing.T) {
	ll := NewLoginLimiter()
	defer ll.Stop()

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		if ok, _ := ll.Check(req, "Donor@Example.com"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "10.0.0.2:1000"
	ok, kind := ll.Check(req, "donor@example.com")
	if ok || kind != "email" {
		t.Errorf("Check = (%v, %q), want (false, email)", ok, kind)
	}

	ll.ResetEmail("donor@example.com")
	if ok, _ := ll.Check(req, "donor@example.com"); !ok {
		t.Error("ResetEmail should clear the email window")
	}
}
