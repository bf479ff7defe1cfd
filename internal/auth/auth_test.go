package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123"

func TestDisabledUsesLocalOwner(t *testing.T) {
	a := New("", "")
	if a.Enabled() {
		t.Fatal("expected auth disabled")
	}
	id, err := a.Identify(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || id.ID != LocalOwnerID || id.Email != "" {
		t.Fatalf("unexpected identity %+v err=%v", id, err)
	}
	if _, err := a.Issue(Identity{ID: "x"}, time.Hour); err == nil {
		t.Fatal("issuing without a secret must fail")
	}
}

func TestIssueAndVerify(t *testing.T) {
	a := New(testSecret, "")
	tok, err := a.Issue(Identity{ID: "user-1", Email: "ana@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := a.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.ID != "user-1" || id.Email != "ana@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	a := New(testSecret, "")
	other := New("another-secret-of-16+", "")
	foreign, _ := other.Issue(Identity{ID: "user-1"}, time.Hour)

	expired := New(testSecret, "")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue(Identity{ID: "user-1"}, time.Hour)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "a@b.c"}).
		SignedString([]byte(testSecret))

	tests := map[string]string{
		"wrong secret": foreign,
		"expired":      old,
		"alg none":     none,
		"no subject":   noSubject,
		"garbage":      "not.a.token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := a.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := New(testSecret, "tally_token")
	tok, _ := a.Issue(Identity{ID: "user-9", Email: "u9@example.com"}, time.Hour)

	var got Identity
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusNoContent},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+tok) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "tally_token", Value: tok}) }, http.StatusNoContent},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = Identity{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusNoContent && got.ID != "user-9" {
				t.Fatalf("identity not propagated: %+v", got)
			}
		})
	}
}

func TestFromContextEmpty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no identity")
	}
	if _, ok := FromContext(WithIdentity(context.Background(), Identity{})); ok {
		t.Fatal("identity without id must not count")
	}
}
