package register

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IssueVerificationCodeSQL inserts a code only when the account has no
// active one. Zero rows back means the previous code is still live.
var IssueVerificationCodeSQL = `INSERT INTO "verification_codes"
	("id", "account_id", "code", "expires_at", "confirmed", "created_at")
SELECT ?, ?, ?, ?, FALSE, ?
WHERE NOT EXISTS (
	SELECT 1 FROM "verification_codes" AS "vc"
	WHERE "vc"."account_id" = ?
	AND "vc"."confirmed" = FALSE
	AND "vc"."expires_at" >= ?
) RETURNING *;`

// ConfirmVerificationCodeSQL marks the matching active code as confirmed.
// Zero rows back means the code is wrong, already used, or expired; the
// three cases are indistinguishable to the caller.
var ConfirmVerificationCodeSQL = `UPDATE "verification_codes" AS "vc"
SET
	"confirmed" = TRUE
WHERE
	"vc"."account_id" = ?
AND "vc"."code" = ?
AND "vc"."confirmed" = FALSE
AND "vc"."expires_at" >= ?
RETURNING *;`

// VerificationCodes is the persistence surface for one time codes.
type VerificationCodes interface {
	repository.Repository[*VerificationCode]

	Issue(ctx context.Context, accountID uuid.UUID, code string, expiresAt, now time.Time) (*VerificationCode, error)
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, expiresAt, now time.Time) (*VerificationCode, error)

	Confirm(ctx context.Context, accountID uuid.UUID, code string, now time.Time) (*VerificationCode, error)
	ConfirmTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, now time.Time) (*VerificationCode, error)

	ActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (*VerificationCode, error)
}

type verificationCodes struct {
	repository.Repository[*VerificationCode]
	db *bun.DB
}

var (
	_ VerificationCodes                         = (*verificationCodes)(nil)
	_ repository.Repository[*VerificationCode] = (*verificationCodes)(nil)
)

// NewVerificationCodesRepository builds the bun backed codes repository.
func NewVerificationCodesRepository(db *bun.DB) VerificationCodes {
	repo := repository.NewRepository[*VerificationCode](db, repository.ModelHandlers[*VerificationCode]{
		NewRecord: func() *VerificationCode { return &VerificationCode{} },
		GetID: func(c *VerificationCode) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *VerificationCode, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &verificationCodes{
		Repository: repo,
		db:         db,
	}
}

func (r *verificationCodes) Issue(ctx context.Context, accountID uuid.UUID, code string, expiresAt, now time.Time) (*VerificationCode, error) {
	return r.IssueTx(ctx, r.db, accountID, code, expiresAt, now)
}

func (r *verificationCodes) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, expiresAt, now time.Time) (*VerificationCode, error) {
	res, err := r.Repository.RawTx(ctx, tx, IssueVerificationCodeSQL,
		uuid.New().String(),
		accountID.String(),
		code,
		expiresAt,
		now,
		accountID.String(),
		now,
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrCodeStillActive.WithMetadata(map[string]any{
			"account_id": accountID.String(),
		})
	}

	return res[0], nil
}

func (r *verificationCodes) Confirm(ctx context.Context, accountID uuid.UUID, code string, now time.Time) (*VerificationCode, error) {
	return r.ConfirmTx(ctx, r.db, accountID, code, now)
}

func (r *verificationCodes) ConfirmTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, now time.Time) (*VerificationCode, error) {
	res, err := r.Repository.RawTx(ctx, tx, ConfirmVerificationCodeSQL,
		accountID.String(),
		code,
		now,
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrInvalidOrExpiredCode.WithMetadata(map[string]any{
			"account_id": accountID.String(),
		})
	}

	return res[0], nil
}

func (r *verificationCodes) ActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (*VerificationCode, error) {
	record := &VerificationCode{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID.String()).
		Where("?TableAlias.confirmed = FALSE").
		Where("?TableAlias.expires_at >= ?", now).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}
