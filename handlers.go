package register

import (
	"context"
)

// HandlerOption customizes the ambient collaborators of a command handler.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	logger   Logger
	activity ActivitySink
}

// WithHandlerLogger overrides the handler logger.
func WithHandlerLogger(logger Logger) HandlerOption {
	return func(o *handlerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHandlerActivitySink sets the handler's activity sink.
func WithHandlerActivitySink(sink ActivitySink) HandlerOption {
	return func(o *handlerOptions) {
		if sink != nil {
			o.activity = sink
		}
	}
}

func applyHandlerOptions(opts []HandlerOption, logger *Logger, activity *ActivitySink) {
	options := &handlerOptions{
		logger:   *logger,
		activity: *activity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	*logger = options.logger
	*activity = options.activity
}

// recordActivity publishes an event best-effort. Sink errors are logged
// and never fail the flow that produced the event.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("activity sink error for %s: %v", event.EventType, err)
	}
}

// accountIdentity adapts an Account record to the Identity interface.
type accountIdentity struct {
	account *Account
}

var _ Identity = accountIdentity{}

func (a accountIdentity) ID() string       { return a.account.ID.String() }
func (a accountIdentity) Username() string { return a.account.Username }
func (a accountIdentity) Email() string    { return a.account.Email }
func (a accountIdentity) Role() string     { return a.account.Role }
func (a accountIdentity) Status() AuthStatus {
	a.account.EnsureStatus()
	return a.account.Status
}

// NewIdentity exposes the account-to-identity adapter for callers that
// mint tokens outside the provided flows.
func NewIdentity(account *Account) Identity {
	return accountIdentity{account}
}

func codeTTLMinutes(code *VerificationCode) int {
	if code.CreatedAt != nil {
		return int(code.ExpiresAt.Sub(*code.CreatedAt).Minutes())
	}
	return int(DefaultCodeTTL.Minutes())
}

// registrationScopes returns the scopes for a token pair minted at the
// given status. Pairs stay registration scoped until the profile is done.
func registrationScopes(status AuthStatus) []string {
	if status.CanLogin() {
		return nil
	}
	return []string{ScopeRegistration}
}
