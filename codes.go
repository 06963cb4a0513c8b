package register

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// DefaultCodeLength is the number of digits in a verification code
	DefaultCodeLength = 4
	// DefaultCodeTTL is how long a code stays valid after issuance
	DefaultCodeTTL = 5 * time.Minute
)

// CodeManager issues and verifies one time numeric codes. At most one
// active code exists per account: issuing while a live code exists fails
// with ErrCodeStillActive, which doubles as the resend rate limit.
type CodeManager interface {
	Issue(ctx context.Context, accountID uuid.UUID) (*VerificationCode, error)
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*VerificationCode, error)
	Verify(ctx context.Context, accountID uuid.UUID, code string) (*VerificationCode, error)
	VerifyTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*VerificationCode, error)
}

// CodeManagerOption customizes code issuance.
type CodeManagerOption func(*codeManager)

// WithCodeClock injects a custom clock (useful for tests).
func WithCodeClock(clock Clock) CodeManagerOption {
	return func(m *codeManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithCodeTTL overrides the code lifetime. The expiry is absolute,
// computed once at issuance.
func WithCodeTTL(ttl time.Duration) CodeManagerOption {
	return func(m *codeManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithCodeLength overrides the number of digits.
func WithCodeLength(length int) CodeManagerOption {
	return func(m *codeManager) {
		if length > 0 {
			m.length = length
		}
	}
}

type codeManager struct {
	codes  VerificationCodes
	now    Clock
	ttl    time.Duration
	length int
}

// NewCodeManager builds a CodeManager on top of the codes repository.
func NewCodeManager(codes VerificationCodes, opts ...CodeManagerOption) CodeManager {
	m := &codeManager{
		codes:  codes,
		now:    time.Now,
		ttl:    DefaultCodeTTL,
		length: DefaultCodeLength,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m *codeManager) Issue(ctx context.Context, accountID uuid.UUID) (*VerificationCode, error) {
	return m.IssueTx(ctx, nil, accountID)
}

func (m *codeManager) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*VerificationCode, error) {
	code, err := GenerateNumericCode(m.length)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)

	if tx != nil {
		return m.codes.IssueTx(ctx, tx, accountID, code, expiresAt, now)
	}
	return m.codes.Issue(ctx, accountID, code, expiresAt, now)
}

func (m *codeManager) Verify(ctx context.Context, accountID uuid.UUID, code string) (*VerificationCode, error) {
	return m.VerifyTx(ctx, nil, accountID, code)
}

func (m *codeManager) VerifyTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*VerificationCode, error) {
	now := m.now()

	if tx != nil {
		return m.codes.ConfirmTx(ctx, tx, accountID, code, now)
	}
	return m.codes.Confirm(ctx, accountID, code, now)
}

// GenerateNumericCode draws each digit independently from crypto/rand.
// Leading zeros are legal: "0042" is a valid 4 digit code.
func GenerateNumericCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
