// Package activity carries activity notes from services to the request
// middleware that persists them. Services call Record with what happened;
// the middleware adds who, from where and with which outcome.
package activity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	KindReferral  Kind = "referral"
	KindUser      Kind = "user"
	KindPatient   Kind = "patient"
	KindDiagnosis Kind = "diagnosis"
	KindError     Kind = "error"
)

// ValidKind reports whether k is a known kind.
func ValidKind(k string) bool {
	switch Kind(k) {
	case KindReferral, KindUser, KindPatient, KindDiagnosis, KindError:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Note is one thing a service did on behalf of a request. ActorID overrides
// the authenticated caller, which login requests do not have yet.
type Note struct {
	Kind     Kind
	Action   string
	Details  string
	Severity Severity
	ActorID  uuid.UUID
}

type trailKey struct{}

type trail struct {
	mu    sync.Mutex
	notes []Note
}

// WithTrail returns a context that collects notes, and a function draining
// what was collected.
func WithTrail(ctx context.Context) (context.Context, func() []Note) {
	t := &trail{}
	return context.WithValue(ctx, trailKey{}, t), func() []Note {
		t.mu.Lock()
		defer t.mu.Unlock()
		out := t.notes
		t.notes = nil
		return out
	}
}

// Record adds n to the request trail. Without a trail it does nothing.
func Record(ctx context.Context, n Note) {
	t, ok := ctx.Value(trailKey{}).(*trail)
	if !ok {
		return
	}
	if n.Severity == "" {
		n.Severity = SeverityInfo
	}
	t.mu.Lock()
	t.notes = append(t.notes, n)
	t.mu.Unlock()
}
