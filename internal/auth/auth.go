// Package auth resolves the current user from an HS256 JWT carried in the
// Authorization header or a cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// LocalOwnerID owns every record when authentication is disabled.
var LocalOwnerID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tally:local-owner")).String()

// Identity is the signed-in user. Email may be empty.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Claims is the token payload; the subject is the owner id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the current user, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.ID != ""
}

type Authenticator struct {
	secret []byte
	cookie string
	now    func() time.Time
}

// New returns an authenticator. An empty secret disables token checks and
// every request runs as the local owner.
func New(secret, cookie string) *Authenticator {
	if cookie == "" {
		cookie = "tally_token"
	}
	return &Authenticator{secret: []byte(secret), cookie: cookie, now: time.Now}
}

func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// Issue signs a token for id valid for ttl.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("auth disabled: no signing secret")
	}
	if strings.TrimSpace(id.ID) == "" {
		return "", errors.New("identity id is required")
	}
	now := a.now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns its identity.
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// Identify resolves the identity of r.
func (a *Authenticator) Identify(r *http.Request) (Identity, error) {
	if !a.Enabled() {
		return Identity{ID: LocalOwnerID}, nil
	}
	tokenString := bearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		if c, err := r.Cookie(a.cookie); err == nil {
			tokenString = c.Value
		}
	}
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}
	return a.Verify(tokenString)
}

// Middleware attaches the identity to the request context and answers 401
// when a token is required but missing or invalid.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Identify(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Authentication failed", "path", r.URL.Path, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
