// Package auth compares credentials and carries the signed session cookie.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/i18n"
)

type ctxKey string

const (
	sessionCookieName = "foodcore_session"
	subjectCtxKey     = ctxKey("subject")
	sessionLifetime   = 14 * 24 * time.Hour
)

// OwnerSubject identifies the system owner console session. Tenant users
// are identified by their (positive) user id.
const OwnerSubject int64 = -1

// Verifier reports whether a subject from a valid cookie is still logged in.
type Verifier func(ctx context.Context, subject int64) bool

// Sessions signs and verifies the session cookie.
type Sessions struct {
	secret   []byte
	verifier Verifier
	now      func() time.Time
}

func NewSessions(secret string, verifier Verifier) *Sessions {
	return &Sessions{secret: []byte(secret), verifier: verifier, now: time.Now}
}

func (s *Sessions) sign(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Create sets a signed cookie for subject.
func (s *Sessions) Create(w http.ResponseWriter, subject int64) {
	v := strconv.FormatInt(subject, 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    v + "." + s.sign(v),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(sessionLifetime),
	})
}

// Clear deletes the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Parse validates the cookie signature and returns the subject.
func (s *Sessions) Parse(r *http.Request) (int64, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	v, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(v))) {
		return 0, false
	}
	subject, err := strconv.ParseInt(v, 10, 64)
	if err != nil || subject == 0 {
		return 0, false
	}
	return subject, true
}

// WithSubject stores the subject in ctx.
func WithSubject(ctx context.Context, subject int64) context.Context {
	return context.WithValue(ctx, subjectCtxKey, subject)
}

// SubjectFromContext extracts the subject set by Middleware.
func SubjectFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(subjectCtxKey).(int64)
	return v, ok
}

// Middleware attaches the subject to the request context when the cookie
// is valid and the verifier still accepts it.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subject, ok := s.Parse(r); ok {
			if s.verifier == nil || s.verifier(r.Context(), subject) {
				r = r.WithContext(WithSubject(r.Context(), subject))
			} else {
				s.Clear(w)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 JSON when no subject is attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SubjectFromContext(r.Context()); !ok {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner only lets the system owner through.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		if !ok {
			unauthorized(w, r)
			return
		}
		if subject != OwnerSubject {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", i18n.T(i18n.LangFromContext(r.Context()), "forbidden"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", i18n.T(i18n.LangFromContext(r.Context()), "unauthorized"), nil)
}
