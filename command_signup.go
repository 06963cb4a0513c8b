package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "account.signup" }

func (e SignupMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		// empty is fine, the repository defaults it to ordinary_user
		validation.Field(&e.Role, validation.In(RoleOrdinaryUser, RoleManager, RoleAdmin)),
	)
}

// SignupResponse carries the new account and its registration scoped
// token pair. The tokens only unlock verify and resend until the profile
// is complete.
type SignupResponse struct {
	Account *Account
	Tokens  *TokenPair
	Success bool
}

// SignupHandler creates a NEW account from an email, issues the first
// verification code inside the same transaction, and dispatches it by
// email off the request path.
type SignupHandler struct {
	repo     RepositoryManager
	codes    CodeManager
	tokens   TokenService
	mailer   Mailer
	logger   Logger
	activity ActivitySink
}

// NewSignupHandler wires the signup flow.
func NewSignupHandler(repo RepositoryManager, codes CodeManager, tokens TokenService, mailer Mailer, opts ...HandlerOption) *SignupHandler {
	h := &SignupHandler{
		repo:     repo,
		codes:    codes,
		tokens:   tokens,
		mailer:   mailer,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)
	account := &Account{}
	var code *VerificationCode

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, email); err == nil {
			return ErrDuplicateEmail.WithMetadata(map[string]any{
				"email": email,
			})
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		account.Email = email
		account.Role = event.Role
		account.Status = StatusNew
		account.Username = ProvisionalUsername()
		account.ProvisionalUsername = true
		account.PasswordHash = ProvisionalPasswordHash()
		account.ProvisionalPassword = true
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}

		var err error
		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			// unique constraint backstop for concurrent signups
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account").
				WithTextCode(TextCodeDuplicateEmail)
		}

		if code, err = h.codes.IssueTx(ctx, tx, account.ID); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	dispatchMail(h.logger, h.mailer, MailMessage{
		Template:  TemplateVerificationCode,
		Recipient: account.Email,
		Variables: map[string]any{
			"code":        code.Code,
			"ttl_minutes": codeTTLMinutes(code),
		},
	})

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
	})

	pair, err := h.tokens.IssuePair(accountIdentity{account}, ScopeRegistration)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue registration tokens")
	}

	if event.OnResponse != nil {
		event.OnResponse(&SignupResponse{
			Account: account,
			Tokens:  pair,
			Success: true,
		})
	}

	return nil
}
