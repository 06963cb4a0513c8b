package register

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// AccountStateMachine owns the auth_status field and the legal moves
// between registration stages. Statuses are monotonic: a request to move
// backwards, or to a stage already reached, is an idempotent no-op.
type AccountStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, account *Account, target AuthStatus, opts ...TransitionOption) (*Account, error)
	TransitionTx(ctx context.Context, tx bun.IDB, actor ActorRef, account *Account, target AuthStatus, opts ...TransitionOption) (*Account, error)
	CurrentStatus(account *Account) AuthStatus
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock Clock) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// NewAccountStateMachine returns the default implementation backed by the
// provided repository.
func NewAccountStateMachine(accounts Accounts, opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		accounts: accounts,
		transitions: map[AuthStatus]map[AuthStatus]struct{}{
			StatusNew: {
				StatusCodeVerified: {},
			},
			StatusCodeVerified: {
				StatusDone: {},
			},
			StatusDone: {
				StatusPhotoDone: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type accountStateMachine struct {
	accounts     Accounts
	transitions  map[AuthStatus]map[AuthStatus]struct{}
	now          Clock
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata TransitionMetadata
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *accountStateMachine) Transition(ctx context.Context, actor ActorRef, account *Account, target AuthStatus, opts ...TransitionOption) (*Account, error) {
	return sm.TransitionTx(ctx, nil, actor, account, target, opts...)
}

func (sm *accountStateMachine) TransitionTx(ctx context.Context, tx bun.IDB, actor ActorRef, account *Account, target AuthStatus, opts ...TransitionOption) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "account is nil",
		})
	}

	account.EnsureStatus()
	from := account.Status

	if !target.IsValid() {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	// Moves to the current stage or an earlier one are idempotent no-ops:
	// auth_status never regresses.
	if target.Rank() <= from.Rank() {
		return account, nil
	}

	if !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	options := sm.buildTransitionOptions(opts...)

	updated, err := sm.updateStatus(ctx, tx, account.ID, target)
	if err != nil {
		return nil, err
	}

	if updated != nil && updated.Status != "" {
		account.Status = updated.Status
	} else {
		account.Status = target
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      actor,
		AccountID:  account.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   sm.transitionMetadata(options.cloneMetadata()),
	})

	return account, nil
}

func (sm *accountStateMachine) CurrentStatus(account *Account) AuthStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}

func (sm *accountStateMachine) updateStatus(ctx context.Context, tx bun.IDB, id uuid.UUID, target AuthStatus) (*Account, error) {
	if tx != nil {
		return sm.accounts.UpdateAuthStatusTx(ctx, tx, id, target)
	}
	return sm.accounts.UpdateAuthStatus(ctx, id, target)
}

func (sm *accountStateMachine) canTransition(from, to AuthStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *accountStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *accountStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *accountStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
