package register

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	repository "github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	VerificationCodes() VerificationCodes
	RevokedTokens() RevokedTokens
}

type mngr struct {
	db            *bun.DB
	accounts      Accounts
	codes         VerificationCodes
	revokedTokens RevokedTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		accounts:      NewAccountsRepository(db),
		codes:         NewVerificationCodesRepository(db),
		revokedTokens: NewRevokedTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.codes == nil {
		return errors.New("repository verification codes should be initialized")
	}

	if m.revokedTokens == nil {
		return errors.New("repository revoked tokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) VerificationCodes() VerificationCodes {
	return m.codes
}

func (m mngr) RevokedTokens() RevokedTokens {
	return m.revokedTokens
}
