package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	AccountID string
	Success   bool
}

// InitializePasswordResetHandler resolves an email to an account and
// sends a reset code. Unlike login, this flow discloses existence: an
// unknown email fails with AccountNotFound.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	codes    CodeManager
	mailer   Mailer
	logger   Logger
	activity ActivitySink
}

// NewInitializePasswordResetHandler wires the forgot password flow.
func NewInitializePasswordResetHandler(repo RepositoryManager, codes CodeManager, mailer Mailer, opts ...HandlerOption) *InitializePasswordResetHandler {
	h := &InitializePasswordResetHandler{
		repo:     repo,
		codes:    codes,
		mailer:   mailer,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"email": NormalizeEmail(event.Email),
			})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	code, err := h.codes.Issue(ctx, account.ID)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset code")
	}

	dispatchMail(h.logger, h.mailer, MailMessage{
		Template:  TemplatePasswordReset,
		Recipient: account.Email,
		Variables: map[string]any{
			"first_name":  account.FirstName,
			"email":       account.Email,
			"code":        code.Code,
			"ttl_minutes": codeTTLMinutes(code),
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCodeIssued,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			AccountID: account.ID.String(),
			Success:   true,
		})
	}

	return nil
}
