package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"classroom-assessment-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID string
	Role   domain.Role
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type callerKey struct{}

var errBadToken = errors.New("invalid or missing token")

// Authenticator verifies HS256 bearer tokens. Identity issuance lives elsewhere; Issue
// exists for tooling and tests.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for userID with the given role.
func (a *Authenticator) Issue(userID string, role domain.Role, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

// Verify parses a raw token into a Caller.
func (a *Authenticator) Verify(raw string) (Caller, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Caller{}, errBadToken
	}
	role := domain.Role(c.Role)
	if c.Subject == "" || (role != domain.RoleTeacher && role != domain.RoleStudent) {
		return Caller{}, errBadToken
	}
	return Caller{UserID: c.Subject, Role: role}, nil
}

// Middleware rejects requests without a valid token. Browsers cannot set headers on
// websocket upgrades, so a `token` query parameter is accepted as well.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		caller, err := a.Verify(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// CallerFrom returns the caller stored by Middleware.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// requireRole wraps a handler that needs a specific role.
func requireRole(role domain.Role, next func(http.ResponseWriter, *http.Request, Caller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errBadToken.Error()})
			return
		}
		if role != "" && caller.Role != role {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "requires " + string(role) + " role"})
			return
		}
		next(w, r, caller)
	}
}

// anyRole accepts every authenticated caller.
func anyRole(next func(http.ResponseWriter, *http.Request, Caller)) http.HandlerFunc {
	return requireRole("", next)
}
