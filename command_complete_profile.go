package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is assumed when a phone number omits the country code.
var DefaultPhoneRegion = "US"

type CompleteProfileMessage struct {
	AccountID       uuid.UUID `json:"account_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Username        string    `json:"username"`
	Phone           string    `json:"phone"`
	Password        string    `json:"password"`
	ConfirmPassword string    `json:"confirm_password"`
	OnResponse      func(resp *CompleteProfileResponse)
}

func (e CompleteProfileMessage) Type() string { return "account.complete_profile" }

func (e CompleteProfileMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.By(requireUUID)),
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 128)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 128)),
		validation.Field(&e.Username, validation.Required, validation.Match(usernameRe)),
		validation.Field(&e.Password, validation.Required),
		validation.Field(&e.ConfirmPassword, validation.Required),
	)
}

// CompleteProfileResponse carries the finished account and its first full
// token pair.
type CompleteProfileResponse struct {
	Account *Account
	Tokens  *TokenPair
	Success bool
}

// CompleteProfileHandler turns a CODE_VERIFIED account into a DONE one:
// real name, chosen username, chosen password. Provisional credential
// flags clear here and nowhere else.
type CompleteProfileHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	hasher   PasswordHasher
	policy   PasswordPolicy
	sm       AccountStateMachine
	logger   Logger
	activity ActivitySink
}

// NewCompleteProfileHandler wires the profile completion flow.
func NewCompleteProfileHandler(repo RepositoryManager, tokens TokenService, hasher PasswordHasher, policy PasswordPolicy, sm AccountStateMachine, opts ...HandlerOption) *CompleteProfileHandler {
	h := &CompleteProfileHandler{
		repo:     repo,
		tokens:   tokens,
		hasher:   hasher,
		policy:   policy,
		sm:       sm,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *CompleteProfileHandler) Execute(ctx context.Context, event CompleteProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteProfileHandler) execute(ctx context.Context, event CompleteProfileMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile payload").
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if err := h.policy.Check(event.Password); err != nil {
		return err
	}

	phone, err := normalizePhone(event.Phone)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.repo.Accounts().GetByID(ctx, event.AccountID.String()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found").
				WithTextCode(TextCodeAccountNotFound)
		}

		account.EnsureStatus()
		if account.Status == StatusNew {
			return ErrInvalidTransition.WithMetadata(map[string]any{
				"from":   account.Status,
				"to":     StatusDone,
				"reason": "email not verified",
			})
		}

		if err := h.ensureUsernameAvailable(ctx, tx, account.ID, event.Username); err != nil {
			return err
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Username = event.Username
		account.Phone = phone
		account.PasswordHash = hash
		account.ProvisionalUsername = false
		account.ProvisionalPassword = false

		if account, err = h.repo.Accounts().UpdateTx(ctx, tx, account, repository.UpdateByID(account.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
		}

		if account, err = h.sm.TransitionTx(ctx, tx,
			ActorRef{ID: account.ID.String(), Type: "account"},
			account, StatusDone,
			WithTransitionReason("profile completed"),
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile completion transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventProfileCompleted,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
	})

	pair, err := h.tokens.IssuePair(accountIdentity{account})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue tokens after profile completion")
	}

	if event.OnResponse != nil {
		event.OnResponse(&CompleteProfileResponse{
			Account: account,
			Tokens:  pair,
			Success: true,
		})
	}

	return nil
}

func (h *CompleteProfileHandler) ensureUsernameAvailable(ctx context.Context, tx bun.IDB, accountID uuid.UUID, username string) error {
	existing, err := h.repo.Accounts().GetByUsernameTx(ctx, tx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
	}

	if existing.ID == accountID {
		return nil
	}

	return goerrors.New("username is already taken", goerrors.CategoryConflict).
		WithTextCode(TextCodeValidationFailure).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"username": username,
		})
}

// normalizePhone formats a phone number as E.164. Empty input is allowed,
// the field is optional.
func normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("phone number is not valid", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidationFailure).
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
