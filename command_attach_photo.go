package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AttachPhotoMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Photo      string    `json:"photo"`
	OnResponse func(resp *AttachPhotoResponse)
}

func (e AttachPhotoMessage) Type() string { return "account.attach_photo" }

func (e AttachPhotoMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.By(requireUUID)),
		validation.Field(&e.Photo, validation.Required, validation.Length(1, 512)),
	)
}

type AttachPhotoResponse struct {
	Account *Account
	Success bool
}

// AttachPhotoHandler stores a photo reference on the account. The
// done -> photo_done transition only fires for accounts already DONE;
// attaching earlier keeps the reference and leaves the status alone.
type AttachPhotoHandler struct {
	repo     RepositoryManager
	sm       AccountStateMachine
	logger   Logger
	activity ActivitySink
}

// NewAttachPhotoHandler wires the photo attachment flow.
func NewAttachPhotoHandler(repo RepositoryManager, sm AccountStateMachine, opts ...HandlerOption) *AttachPhotoHandler {
	h := &AttachPhotoHandler{
		repo:     repo,
		sm:       sm,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	applyHandlerOptions(opts, &h.logger, &h.activity)
	return h
}

func (h *AttachPhotoHandler) Execute(ctx context.Context, event AttachPhotoMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during photo attachment",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AttachPhotoHandler) execute(ctx context.Context, event AttachPhotoMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid photo payload").
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

		if _, err = h.repo.Accounts().AttachPhotoTx(ctx, tx, account.ID, event.Photo); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store photo reference")
		}
		account.Photo = event.Photo

		account.EnsureStatus()
		if account.Status == StatusDone {
			if account, err = h.sm.TransitionTx(ctx, tx,
				ActorRef{ID: account.ID.String(), Type: "account"},
				account, StatusPhotoDone,
				WithTransitionReason("profile photo attached"),
			); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "photo attachment transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPhotoAttached,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
	})

	if event.OnResponse != nil {
		event.OnResponse(&AttachPhotoResponse{
			Account: account,
			Success: true,
		})
	}

	return nil
}
