package register

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"provisional_password" = FALSE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var TrackAccountLoginSQL = `UPDATE "accounts" AS "acc"
SET
	"loggedin_at" = ?
WHERE
	("acc".id = ?)
	AND "acc"."deleted_at" IS NULL;`

// Accounts is the persistence surface for account records.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	GetByLoginIdentifier(ctx context.Context, identifier LoginIdentifier) (*Account, error)

	UpdateAuthStatus(ctx context.Context, id uuid.UUID, status AuthStatus) (*Account, error)
	UpdateAuthStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AuthStatus) (*Account, error)

	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	AttachPhoto(ctx context.Context, id uuid.UUID, photo string) (*Account, error)
	AttachPhotoTx(ctx context.Context, tx bun.IDB, id uuid.UUID, photo string) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// NewAccountsRepository builds the bun backed Accounts repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "email", NormalizeEmail(email))
}

func (a *accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *accounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.getByColumnTx(ctx, tx, "username", strings.TrimSpace(username))
}

// GetByLoginIdentifier dispatches on the classified identifier kind so an
// email value never matches a username column and vice versa.
func (a *accounts) GetByLoginIdentifier(ctx context.Context, identifier LoginIdentifier) (*Account, error) {
	switch identifier.Kind {
	case IdentifierEmail:
		return a.GetByEmail(ctx, identifier.Value)
	default:
		return a.GetByUsername(ctx, identifier.Value)
	}
}

func (a *accounts) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) UpdateAuthStatus(ctx context.Context, id uuid.UUID, status AuthStatus) (*Account, error) {
	return a.UpdateAuthStatusTx(ctx, a.db, id, status)
}

func (a *accounts) UpdateAuthStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AuthStatus) (*Account, error) {
	record := &Account{
		ID:     id,
		Status: status,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(TrackAccountLoginSQL, loggedInAt, account.ID).Exec(ctx)
	return err
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) AttachPhoto(ctx context.Context, id uuid.UUID, photo string) (*Account, error) {
	return a.AttachPhotoTx(ctx, a.db, id, photo)
}

func (a *accounts) AttachPhotoTx(ctx context.Context, tx bun.IDB, id uuid.UUID, photo string) (*Account, error) {
	record := &Account{
		ID:    id,
		Photo: photo,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleOrdinaryUser
	}

	record.EnsureStatus()
	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
