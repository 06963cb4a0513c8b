package register

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup            ActivityEventType = "account.signup"
	ActivityEventStatusChanged     ActivityEventType = "account.status.changed"
	ActivityEventCodeIssued        ActivityEventType = "account.code.issued"
	ActivityEventCodeVerified      ActivityEventType = "account.code.verified"
	ActivityEventProfileCompleted  ActivityEventType = "account.profile.completed"
	ActivityEventPhotoAttached     ActivityEventType = "account.photo.attached"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefreshed    ActivityEventType = "auth.token.refreshed"
	ActivityEventTokenRevoked      ActivityEventType = "auth.token.revoked"
	ActivityEventPasswordReset     ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	FromStatus AuthStatus
	ToStatus   AuthStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
