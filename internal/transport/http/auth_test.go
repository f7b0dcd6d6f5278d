package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-assessment-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	tok, err := auth.Issue("s1", domain.RoleStudent, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	caller, err := auth.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if caller.UserID != "s1" || caller.Role != domain.RoleStudent {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	other, _ := NewAuthenticator("other-secret").Issue("s1", domain.RoleStudent, time.Now(), time.Hour)
	if _, err := auth.Verify(other); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	expired, _ := auth.Issue("s1", domain.RoleStudent, time.Now().Add(-2*time.Hour), time.Hour)
	if _, err := auth.Verify(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "s1"}).SignedString([]byte(testSecret))
	if _, err := auth.Verify(noRole); err == nil {
		t.Fatalf("expected token without role to fail")
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{Role: "teacher", RegisteredClaims: jwt.RegisteredClaims{Subject: "t1"}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := auth.Verify(unsigned); err == nil {
		t.Fatalf("expected unsigned token to fail")
	}
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	var seen Caller
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
	}))

	tok, _ := auth.Issue("t1", domain.RoleTeacher, time.Now(), time.Hour)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	if rec.Code != http.StatusOK || seen.UserID != "t1" || seen.Role != domain.RoleTeacher {
		t.Fatalf("expected caller from query token, got %d %+v", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
