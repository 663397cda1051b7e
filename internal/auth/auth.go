// internal/auth/auth.go
//
// JWT + cookie authentication.
// Responsibilities:
//   - Sign HS256 tokens carrying id/username with a configurable expiry.
//   - Read tokens from "Authorization: Bearer" or the auth cookie.
//   - Optional auth (decorate request when a valid token is present) and
//     required auth (401 otherwise).
//   - Anonymous visitor cookie so guest games can be claimed after signup.

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/connections/internal/users"
)

// AnonCookieName holds the anonymous visitor ID.
const AnonCookieName = "connections_anon"

var ErrInvalidToken = errors.New("invalid token")

// Config controls token signing and cookie attributes.
type Config struct {
	Secret     string
	Expiry     time.Duration
	CookieName string
	Secure     bool // production: Secure + SameSite=None
}

// UserLookup confirms a token's user still exists.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
}

// User is placed into request context by the middleware.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Manager signs and verifies tokens and provides the middleware.
type Manager struct {
	cfg   Config
	users UserLookup
	clock quartz.Clock
}

// NewManager constructs a Manager. A nil clock uses wall time.
func NewManager(cfg Config, lookup UserLookup, clock quartz.Clock) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Manager{cfg: cfg, users: lookup, clock: clock}
}

// Sign creates an HS256 token for the user and returns it with its expiry.
func (m *Manager) Sign(id, username string) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.cfg.Expiry)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(m.cfg.Secret))
	return ss, exp, err
}

// Verify parses a token and confirms its user still exists.
func (m *Manager) Verify(ctx context.Context, tok string) (*User, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(m.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return m.clock.Now() }))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, ErrInvalidToken
	}
	if _, err := m.users.FindByID(ctx, id); err != nil {
		return nil, ErrInvalidToken
	}
	return &User{ID: id, Username: username}, nil
}

// ctxUserKey is the context key type for storing *User.
type ctxUserKey struct{}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, u)
}

// FromContext returns the authenticated user or nil for guests.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(ctxUserKey{}).(*User)
	return u
}

// Optional decorates requests with the user when a valid token is present.
// It never rejects; used for routes where guests may play.
func (m *Manager) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := m.token(r); tok != "" {
				if u, err := m.Verify(r.Context(), tok); err == nil {
					r = r.WithContext(WithUser(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a valid token.
func (m *Manager) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := m.token(r)
			if tok == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			u, err := m.Verify(r.Context(), tok)
			if err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// token extracts a bearer token from the Authorization header or auth cookie.
func (m *Manager) token(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie writes the auth token cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, m.cookie(m.cfg.CookieName, token, exp))
}

// ClearCookie deletes the auth token cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	c := m.cookie(m.cfg.CookieName, "", time.Time{})
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// EnsureAnonID returns the anonymous visitor ID, setting the cookie if absent.
func (m *Manager) EnsureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(AnonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := genID()
	http.SetCookie(w, m.cookie(AnonCookieName, id, m.clock.Now().Add(180*24*time.Hour)))
	return id
}

func (m *Manager) cookie(name, value string, exp time.Time) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if m.cfg.Secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: sameSite,
		Expires:  exp,
	}
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
