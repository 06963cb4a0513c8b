package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type ResendCodeMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	OnResponse func(resp *ResendCodeResponse)
}

func (e ResendCodeMessage) Type() string { return "account.resend_code" }

func (e ResendCodeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.By(requireUUID)),
	)
}

type ResendCodeResponse struct {
	Code    *VerificationCode
	Success bool
}

// ResendCodeHandler issues a fresh verification code for an account that
// lost or never received the previous one. The single-active-code rule is
// checked up front and enforced again by the conditional insert.
type ResendCodeHandler struct {
	repo     RepositoryManager
	codes    CodeManager
	mailer   Mailer
	now      Clock
	logger   Logger
	activity ActivitySink
}

// NewResendCodeHandler wires the resend flow.
func NewResendCodeHandler(repo RepositoryManager, codes CodeManager, mailer Mailer, opts ...HandlerOption) *ResendCodeHandler {
	h := &ResendCodeHandler{
		repo:     repo,
		codes:    codes,
		mailer:   mailer,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *ResendCodeHandler) Execute(ctx context.Context, event ResendCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during code resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendCodeHandler) execute(ctx context.Context, event ResendCodeMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid resend payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByID(ctx, event.AccountID.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found").
			WithTextCode(TextCodeAccountNotFound)
	}

	// Cheap pre-check before generating a code. The conditional insert
	// below remains the authoritative guard under concurrency.
	if _, err := h.repo.VerificationCodes().ActiveForAccount(ctx, account.ID, h.now()); err == nil {
		return ErrCodeStillActive.WithMetadata(map[string]any{
			"account_id": account.ID.String(),
		})
	} else if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for active code")
	}

	code, err := h.codes.Issue(ctx, account.ID)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification code")
	}

	dispatchMail(h.logger, h.mailer, MailMessage{
		Template:  TemplateVerificationCode,
		Recipient: account.Email,
		Variables: map[string]any{
			"first_name":  account.FirstName,
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
		event.OnResponse(&ResendCodeResponse{
			Code:    code,
			Success: true,
		})
	}

	return nil
}
