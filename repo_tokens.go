package register

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RevocationStore answers whether a refresh token's JTI has been revoked
// and records new revocations.
type RevocationStore interface {
	IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
	Revoke(ctx context.Context, jti, accountID uuid.UUID, expiresAt time.Time) error
}

// RevokedTokens is the persistence surface for the refresh token denylist.
type RevokedTokens interface {
	repository.Repository[*RevokedToken]
	RevocationStore

	Prune(ctx context.Context, now time.Time) (int64, error)
}

var PruneRevokedTokensSQL = `DELETE FROM "revoked_tokens"
WHERE "expires_at" < ?;`

type revokedTokens struct {
	repository.Repository[*RevokedToken]
	db *bun.DB
}

var (
	_ RevokedTokens                         = (*revokedTokens)(nil)
	_ repository.Repository[*RevokedToken] = (*revokedTokens)(nil)
)

// NewRevokedTokensRepository builds the bun backed denylist repository.
// Rows are keyed by the refresh token's JTI.
func NewRevokedTokensRepository(db *bun.DB) RevokedTokens {
	repo := repository.NewRepository[*RevokedToken](db, repository.ModelHandlers[*RevokedToken]{
		NewRecord: func() *RevokedToken { return &RevokedToken{} },
		GetID: func(t *RevokedToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RevokedToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &revokedTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *revokedTokens) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	_, err := r.Repository.GetByID(ctx, jti.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *revokedTokens) Revoke(ctx context.Context, jti, accountID uuid.UUID, expiresAt time.Time) error {
	record := &RevokedToken{
		ID:        jti,
		AccountID: accountID,
		ExpiresAt: expiresAt,
	}

	_, err := r.Repository.Create(ctx, record)
	return err
}

// Prune drops denylist rows whose tokens have expired on their own. A
// revoked token past its natural expiry fails validation regardless.
func (r *revokedTokens) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewRaw(PruneRevokedTokensSQL, now).Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}
