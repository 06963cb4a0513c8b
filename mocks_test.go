package register_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-register"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts mocks the Accounts repository. The embedded interface
// covers the generic repository surface; only the methods the flows call
// are implemented.
type MockAccounts struct {
	register.Accounts
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*register.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*register.Account, error) {
	args := m.Called(ctx, email)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*register.Account, error) {
	args := m.Called(ctx, tx, email)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*register.Account, error) {
	args := m.Called(ctx, tx, username)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) GetByLoginIdentifier(ctx context.Context, identifier register.LoginIdentifier) (*register.Account, error) {
	args := m.Called(ctx, identifier)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *register.Account) (*register.Account, error) {
	args := m.Called(ctx, tx, account)
	created, _ := args.Get(0).(*register.Account)
	return created, args.Error(1)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, record *register.Account, criteria ...repository.UpdateCriteria) (*register.Account, error) {
	args := m.Called(ctx, tx, record)
	updated, _ := args.Get(0).(*register.Account)
	return updated, args.Error(1)
}

func (m *MockAccounts) UpdateAuthStatus(ctx context.Context, id uuid.UUID, status register.AuthStatus) (*register.Account, error) {
	args := m.Called(ctx, id, status)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) UpdateAuthStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status register.AuthStatus) (*register.Account, error) {
	args := m.Called(ctx, tx, id, status)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

func (m *MockAccounts) TrackSuccessfulLogin(ctx context.Context, account *register.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) AttachPhotoTx(ctx context.Context, tx bun.IDB, id uuid.UUID, photo string) (*register.Account, error) {
	args := m.Called(ctx, tx, id, photo)
	account, _ := args.Get(0).(*register.Account)
	return account, args.Error(1)
}

// MockVerificationCodes mocks the codes repository.
type MockVerificationCodes struct {
	register.VerificationCodes
	mock.Mock
}

func (m *MockVerificationCodes) Issue(ctx context.Context, accountID uuid.UUID, code string, expiresAt, now time.Time) (*register.VerificationCode, error) {
	args := m.Called(ctx, accountID, code, expiresAt, now)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockVerificationCodes) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, expiresAt, now time.Time) (*register.VerificationCode, error) {
	args := m.Called(ctx, tx, accountID, code, expiresAt, now)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockVerificationCodes) Confirm(ctx context.Context, accountID uuid.UUID, code string, now time.Time) (*register.VerificationCode, error) {
	args := m.Called(ctx, accountID, code, now)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockVerificationCodes) ConfirmTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string, now time.Time) (*register.VerificationCode, error) {
	args := m.Called(ctx, tx, accountID, code, now)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockVerificationCodes) ActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (*register.VerificationCode, error) {
	args := m.Called(ctx, accountID, now)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

// MockCodeManager mocks code issuance and verification.
type MockCodeManager struct {
	mock.Mock
}

func (m *MockCodeManager) Issue(ctx context.Context, accountID uuid.UUID) (*register.VerificationCode, error) {
	args := m.Called(ctx, accountID)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockCodeManager) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*register.VerificationCode, error) {
	args := m.Called(ctx, tx, accountID)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockCodeManager) Verify(ctx context.Context, accountID uuid.UUID, code string) (*register.VerificationCode, error) {
	args := m.Called(ctx, accountID, code)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

func (m *MockCodeManager) VerifyTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*register.VerificationCode, error) {
	args := m.Called(ctx, tx, accountID, code)
	vc, _ := args.Get(0).(*register.VerificationCode)
	return vc, args.Error(1)
}

// MockRevocationStore mocks the refresh token denylist lookups.
type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevocationStore) Revoke(ctx context.Context, jti, accountID uuid.UUID, expiresAt time.Time) error {
	args := m.Called(ctx, jti, accountID, expiresAt)
	return args.Error(0)
}

// MockMailer records dispatched mail without delivering anything.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg register.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockRepositoryManager wires the repository mocks together. RunInTx runs
// the closure inline with a zero transaction, which the mocks ignore.
type MockRepositoryManager struct {
	mock.Mock
	accounts *MockAccounts
	codes    *MockVerificationCodes
	revoked  *MockRevokedTokens
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		accounts: &MockAccounts{},
		codes:    &MockVerificationCodes{},
		revoked:  &MockRevokedTokens{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() register.Accounts {
	return m.accounts
}

func (m *MockRepositoryManager) VerificationCodes() register.VerificationCodes {
	return m.codes
}

func (m *MockRepositoryManager) RevokedTokens() register.RevokedTokens {
	return m.revoked
}

// MockRevokedTokens mocks the denylist repository.
type MockRevokedTokens struct {
	register.RevokedTokens
	mock.Mock
}

func (m *MockRevokedTokens) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevokedTokens) Revoke(ctx context.Context, jti, accountID uuid.UUID, expiresAt time.Time) error {
	args := m.Called(ctx, jti, accountID, expiresAt)
	return args.Error(0)
}

func (m *MockRevokedTokens) Prune(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// captureMailer delivers each message to a channel so tests can wait on
// the goroutine that dispatches mail off the request path.
type captureMailer struct {
	ch chan register.MailMessage
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{ch: make(chan register.MailMessage, 4)}
}

func (c *captureMailer) Send(ctx context.Context, msg register.MailMessage) error {
	c.ch <- msg
	return nil
}

func (c *captureMailer) waitForMail(t *testing.T) register.MailMessage {
	t.Helper()
	select {
	case msg := <-c.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected a mail dispatch")
		return register.MailMessage{}
	}
}

// stubActivitySink collects every recorded event for assertions.
type stubActivitySink struct {
	events []register.ActivityEvent
}

func (s *stubActivitySink) Record(ctx context.Context, event register.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubActivitySink) eventTypes() []register.ActivityEventType {
	types := make([]register.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}
