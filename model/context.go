package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Session carries the identity and tracing information of one authenticated
// dashboard user. The raw bearer token is kept so it can be forwarded to the
// maintenance API; the role is a UI hint only, the API enforces access.
type Session struct {
	Token         string
	SubjectID     string
	Email         string
	Name          string
	Role          Role
	Claims        map[string]any
	CorrelationID string
	TraceID       string
	SpanID        string
	Timezone      string
}

// Validate checks that all mandatory fields are present.
// Token and SubjectID must be non-empty.
func (s *Session) Validate() error {
	var errs []error
	if s.Token == "" {
		errs = append(errs, fmt.Errorf("Token is required"))
	}
	if s.SubjectID == "" {
		errs = append(errs, fmt.Errorf("SubjectID is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasRole reports whether the session belongs to one of the given roles.
func (s *Session) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Claim returns the value of the given claim key, or nil if not present.
func (s *Session) Claim(key string) any {
	if s.Claims == nil {
		return nil
	}
	return s.Claims[key]
}

// Location returns the time zone used to interpret calendar days for this
// session. Unknown or empty zones fall back to UTC.
func (s *Session) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Key identifies the session for caching. Two requests carrying the same
// token for the same subject share a key; a refreshed token gets a new one.
func (s *Session) Key() string {
	sum := sha256.Sum256([]byte(s.Token))
	return s.SubjectID + ":" + hex.EncodeToString(sum[:8])
}

type contextKey struct{}

// WithSession attaches a Session to the given context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFrom extracts the Session from the context, or returns nil if not
// present.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// MustSession extracts the Session from the context, panicking if it is not
// present. Only call it in handlers mounted behind the authentication
// middleware.
func MustSession(ctx context.Context) *Session {
	s := SessionFrom(ctx)
	if s == nil {
		panic("model: Session not found in context")
	}
	return s
}
