package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyCodeMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Code       string    `json:"code"`
	OnResponse func(resp *VerifyCodeResponse)
}

func (e VerifyCodeMessage) Type() string { return "account.verify_code" }

func (e VerifyCodeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.By(requireUUID)),
		validation.Field(&e.Code, validation.Required, validation.Length(DefaultCodeLength, DefaultCodeLength)),
	)
}

// VerifyCodeResponse carries the account's status after confirmation and
// a fresh token pair reflecting it.
type VerifyCodeResponse struct {
	Account *Account
	Tokens  *TokenPair
	Success bool
}

// VerifyCodeHandler confirms a submitted code and advances a NEW account
// to CODE_VERIFIED. Confirmation and the status change commit in one
// transaction.
type VerifyCodeHandler struct {
	repo     RepositoryManager
	codes    CodeManager
	tokens   TokenService
	sm       AccountStateMachine
	logger   Logger
	activity ActivitySink
}

// NewVerifyCodeHandler wires the code confirmation flow.
func NewVerifyCodeHandler(repo RepositoryManager, codes CodeManager, tokens TokenService, sm AccountStateMachine, opts ...HandlerOption) *VerifyCodeHandler {
	h := &VerifyCodeHandler{
		repo:     repo,
		codes:    codes,
		tokens:   tokens,
		sm:       sm,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *VerifyCodeHandler) Execute(ctx context.Context, event VerifyCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during code verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyCodeHandler) execute(ctx context.Context, event VerifyCodeMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.repo.Accounts().GetByID(ctx, event.AccountID.String()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found").
				WithTextCode(TextCodeAccountNotFound)
		}

		if _, err = h.codes.VerifyTx(ctx, tx, account.ID, event.Code); err != nil {
			return err
		}

		// Re-confirming after CODE_VERIFIED is a no-op by rank.
		if account, err = h.sm.TransitionTx(ctx, tx,
			ActorRef{ID: account.ID.String(), Type: "account"},
			account, StatusCodeVerified,
			WithTransitionReason("verification code confirmed"),
		); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "code verification transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCodeVerified,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
	})

	pair, err := h.tokens.IssuePair(accountIdentity{account}, registrationScopes(account.Status)...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue tokens after verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyCodeResponse{
			Account: account,
			Tokens:  pair,
			Success: true,
		})
	}

	return nil
}

func requireUUID(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return goerrors.New("must be a valid account id", goerrors.CategoryBadInput)
	}
	return nil
}
