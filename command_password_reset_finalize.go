package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type FinalizePasswordResetMessage struct {
	AccountID       uuid.UUID `json:"account_id"`
	Password        string    `json:"password"`
	ConfirmPassword string    `json:"confirm_password"`
	OnResponse      func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.By(requireUUID)),
		validation.Field(&e.Password, validation.Required),
		validation.Field(&e.ConfirmPassword, validation.Required),
	)
}

type FinalizePasswordResetResponse struct {
	AccountID string
	Success   bool
}

// FinalizePasswordResetHandler replaces the credential hash without
// checking the old password or the auth status. The low friction path is
// deliberate: code possession proved email ownership upstream.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	policy   PasswordPolicy
	logger   Logger
	activity ActivitySink
}

// NewFinalizePasswordResetHandler wires the reset password flow.
func NewFinalizePasswordResetHandler(repo RepositoryManager, hasher PasswordHasher, policy PasswordPolicy, opts ...HandlerOption) *FinalizePasswordResetHandler {
	h := &FinalizePasswordResetHandler{
		repo:     repo,
		hasher:   hasher,
		policy:   policy,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if err := h.policy.Check(event.Password); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := h.repo.Accounts().ResetPassword(ctx, event.AccountID, hash); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: event.AccountID.String(), Type: "account"},
		AccountID: event.AccountID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			AccountID: event.AccountID.String(),
			Success:   true,
		})
	}

	return nil
}
